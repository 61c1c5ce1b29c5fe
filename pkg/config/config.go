// Package config loads configuration in three layers: built-in defaults, an
// optional YAML file, then RL_* environment variables. Command-line flags
// registered with RegisterFlags are applied last.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Index      IndexConfig      `yaml:"index"`
	Search     SearchConfig     `yaml:"search"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Refinement RefinementConfig `yaml:"refinement"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// IndexConfig holds the corpus location and the BM25 build parameters. B and
// K have no meaningful defaults for a given corpus; the values below are the
// conventional starting point. K accepts ".inf" in YAML and "inf" in the
// environment.
type IndexConfig struct {
	CorpusPath string  `yaml:"corpusPath"`
	B          float64 `yaml:"b"`
	K          float64 `yaml:"k"`
	IDF        string  `yaml:"idf"`
	Shards     int     `yaml:"shards"`
	Workers    int     `yaml:"workers"`
}

// SearchConfig controls query resolution and result limits.
type SearchConfig struct {
	Policy       string `yaml:"policy"`
	DefaultLimit int    `yaml:"defaultLimit"`
	MaxResults   int    `yaml:"maxResults"`
	Refinements  bool   `yaml:"refinements"`
}

// EvaluationConfig controls benchmark evaluation runs and where their results
// are reported.
type EvaluationConfig struct {
	BenchmarkPath string `yaml:"benchmarkPath"`
	Concurrency   int    `yaml:"concurrency"`
	StoreRuns     bool   `yaml:"storeRuns"`
	PublishRuns   bool   `yaml:"publishRuns"`
}

// RefinementConfig holds the weights of the popularity refinement.
type RefinementConfig struct {
	SitelinkWeight float64 `yaml:"sitelinkWeight"`
	RatingWeight   float64 `yaml:"ratingWeight"`
	MinRatingCount int     `yaml:"minRatingCount"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents      string `yaml:"searchEvents"`
	EvaluationReports string `yaml:"evaluationReports"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads the YAML file at path, if any, over the defaults and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			CorpusPath: "data/example.tsv",
			B:          0.75,
			K:          1.75,
			IDF:        "classic",
			Shards:     1,
			Workers:    4,
		},
		Search: SearchConfig{
			Policy:       "union",
			DefaultLimit: 10,
			MaxResults:   100,
		},
		Evaluation: EvaluationConfig{
			BenchmarkPath: "data/example-benchmark.tsv",
			Concurrency:   4,
		},
		Refinement: RefinementConfig{
			SitelinkWeight: 0.1,
			RatingWeight:   0.05,
			MinRatingCount: 10,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "relevancelab",
			User:            "relevancelab",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				SearchEvents:      "search-events",
				EvaluationReports: "evaluation-reports",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// envBindings maps RL_* variables onto config fields. Values that do not
// parse are ignored with a warning and the field keeps its value.
func envBindings(cfg *Config) map[string]func(string) error {
	return map[string]func(string) error{
		"RL_SERVER_PORT":               intVar(&cfg.Server.Port),
		"RL_INDEX_CORPUS_PATH":         stringVar(&cfg.Index.CorpusPath),
		"RL_INDEX_B":                   floatVar(&cfg.Index.B),
		"RL_INDEX_K":                   floatVar(&cfg.Index.K),
		"RL_INDEX_IDF":                 stringVar(&cfg.Index.IDF),
		"RL_INDEX_SHARDS":              intVar(&cfg.Index.Shards),
		"RL_INDEX_WORKERS":             intVar(&cfg.Index.Workers),
		"RL_SEARCH_POLICY":             stringVar(&cfg.Search.Policy),
		"RL_SEARCH_REFINEMENTS":        boolVar(&cfg.Search.Refinements),
		"RL_EVALUATION_BENCHMARK_PATH": stringVar(&cfg.Evaluation.BenchmarkPath),
		"RL_EVALUATION_CONCURRENCY":    intVar(&cfg.Evaluation.Concurrency),
		"RL_EVALUATION_STORE_RUNS":     boolVar(&cfg.Evaluation.StoreRuns),
		"RL_EVALUATION_PUBLISH_RUNS":   boolVar(&cfg.Evaluation.PublishRuns),
		"RL_POSTGRES_HOST":             stringVar(&cfg.Postgres.Host),
		"RL_POSTGRES_PORT":             intVar(&cfg.Postgres.Port),
		"RL_POSTGRES_DATABASE":         stringVar(&cfg.Postgres.Database),
		"RL_POSTGRES_USER":             stringVar(&cfg.Postgres.User),
		"RL_POSTGRES_PASSWORD":         stringVar(&cfg.Postgres.Password),
		"RL_KAFKA_ENABLED":             boolVar(&cfg.Kafka.Enabled),
		"RL_KAFKA_BROKERS":             listVar(&cfg.Kafka.Brokers),
		"RL_REDIS_ENABLED":             boolVar(&cfg.Redis.Enabled),
		"RL_REDIS_ADDR":                stringVar(&cfg.Redis.Addr),
		"RL_REDIS_PASSWORD":            stringVar(&cfg.Redis.Password),
		"RL_LOGGING_LEVEL":             stringVar(&cfg.Logging.Level),
		"RL_LOGGING_FORMAT":            stringVar(&cfg.Logging.Format),
	}
}

func applyEnvOverrides(cfg *Config) {
	for name, set := range envBindings(cfg) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		if err := set(v); err != nil {
			slog.Warn("ignoring invalid environment override", "variable", name, "error", err)
		}
	}
}

func stringVar(p *string) func(string) error {
	return func(v string) error {
		*p = v
		return nil
	}
}

func intVar(p *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*p = n
		}
		return err
	}
}

// floatVar accepts "inf" and "+Inf" as well as plain numbers.
func floatVar(p *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			*p = f
		}
		return err
	}
}

func boolVar(p *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*p = b
		}
		return err
	}
}

func listVar(p *[]string) func(string) error {
	return func(v string) error {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*p = items
		return nil
	}
}
