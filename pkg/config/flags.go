package config

import (
	"github.com/spf13/pflag"
)

// Flags binds the command-line overrides shared by the binaries. A flag
// only overrides the loaded config when it was given explicitly.
type Flags struct {
	fs         *pflag.FlagSet
	configPath string
	corpus     string
	b          float64
	k          float64
	idf        string
	shards     int
	workers    int
	policy     string
	refine     bool
	logLevel   string
}

// RegisterFlags adds the shared flags to fs. defaultConfigPath may be empty,
// in which case built-in defaults are used unless --config is given.
func RegisterFlags(fs *pflag.FlagSet, defaultConfigPath string) *Flags {
	d := defaultConfig()
	f := &Flags{fs: fs}
	fs.StringVarP(&f.configPath, "config", "c", defaultConfigPath, "path to YAML config file")
	fs.StringVar(&f.corpus, "corpus", d.Index.CorpusPath, "corpus file, one tab-separated record per line")
	fs.Float64Var(&f.b, "b", d.Index.B, "BM25 length normalisation weight")
	fs.Float64Var(&f.k, "k", d.Index.K, "BM25 term frequency saturation (\"inf\" disables saturation)")
	fs.StringVar(&f.idf, "idf", d.Index.IDF, "IDF variant: classic or smoothed")
	fs.IntVar(&f.shards, "shards", d.Index.Shards, "concurrent shards for the first build pass")
	fs.IntVar(&f.workers, "workers", d.Index.Workers, "goroutines scoring terms in the second build pass")
	fs.StringVar(&f.policy, "policy", d.Search.Policy, "unknown keyword policy: union or strict")
	fs.BoolVar(&f.refine, "refinements", d.Search.Refinements, "apply popularity ranking refinements")
	fs.StringVar(&f.logLevel, "log-level", d.Logging.Level, "debug, info, warn or error")
	return f
}

// Load loads the config file named by --config and applies every flag that
// was set on the command line.
func (f *Flags) Load() (*Config, error) {
	cfg, err := Load(f.configPath)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	return cfg, nil
}

func (f *Flags) apply(cfg *Config) {
	if f.fs.Changed("corpus") {
		cfg.Index.CorpusPath = f.corpus
	}
	if f.fs.Changed("b") {
		cfg.Index.B = f.b
	}
	if f.fs.Changed("k") {
		cfg.Index.K = f.k
	}
	if f.fs.Changed("idf") {
		cfg.Index.IDF = f.idf
	}
	if f.fs.Changed("shards") {
		cfg.Index.Shards = f.shards
	}
	if f.fs.Changed("workers") {
		cfg.Index.Workers = f.workers
	}
	if f.fs.Changed("policy") {
		cfg.Search.Policy = f.policy
	}
	if f.fs.Changed("refinements") {
		cfg.Search.Refinements = f.refine
	}
	if f.fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
}
