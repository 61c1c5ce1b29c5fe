// query builds an index over a corpus and answers keyword queries typed on
// standard input, printing the title and description of the best matches.
//
//	query data/example.tsv
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/logger"
)

const prompt = "Input keywords to search for: "

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("query", pflag.ContinueOnError)
	flags := config.RegisterFlags(flagSet, "")
	top := flagSet.IntP("top", "n", 3, "matches printed per query")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("usage: query [flags] [corpus file]")
	}
	if flagSet.NArg() == 1 {
		if err := flagSet.Set("corpus", flagSet.Arg(0)); err != nil {
			return err
		}
	}

	cfg, err := flags.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !flagSet.Changed("log-level") {
		cfg.Logging.Level = "warn"
	}
	logger.Setup(cfg.Logging.Level, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := bootstrap.Engine(ctx, cfg, nil)
	if err != nil {
		return err
	}
	return repl(ctx, os.Stdin, os.Stdout, engine, bootstrap.SelectRefiner(cfg), *top)
}

type searcher interface {
	Execute(ctx context.Context, query string, limit int, refiner ranker.Refiner) (*executor.SearchResult, error)
}

// repl answers one query per input line until in is exhausted or ctx is
// cancelled.
func repl(ctx context.Context, in io.Reader, out io.Writer, engine searcher, refiner ranker.Refiner, top int) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		result, err := engine.Execute(ctx, query, top, refiner)
		if err != nil {
			return err
		}
		if len(result.Results) == 0 {
			fmt.Fprintln(out, "No matches found")
			continue
		}
		for _, hit := range result.Results {
			fmt.Fprintf(out, "Title: %s\nDescription: %s\n\n", hit.Title, hit.Description)
		}
	}
}
