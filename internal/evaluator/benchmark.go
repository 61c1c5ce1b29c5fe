package evaluator

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/errors"
)

// Entry is one benchmark query with the ids of the documents judged
// relevant for it.
type Entry struct {
	Query    string
	Relevant IDSet
}

type Benchmark []Entry

// ReadBenchmark parses lines of the form query<TAB>id id id. Blank lines
// are skipped. A line without a tab, with a non-numeric or non-positive id,
// or without any id fails with ErrMalformedRecord.
func ReadBenchmark(r io.Reader) (Benchmark, error) {
	var bench Benchmark
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		query, ids, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrMalformedRecord, http.StatusBadRequest,
				"benchmark line %d: no tab between query and ids", lineNo)
		}
		fields := strings.Fields(ids)
		if len(fields) == 0 {
			return nil, apperrors.Newf(apperrors.ErrMalformedRecord, http.StatusBadRequest,
				"benchmark line %d: no relevant ids", lineNo)
		}
		relevant := make(IDSet, len(fields))
		for _, f := range fields {
			id, err := strconv.Atoi(f)
			if err != nil || id < 1 {
				return nil, apperrors.Newf(apperrors.ErrMalformedRecord, http.StatusBadRequest,
					"benchmark line %d: bad document id %q", lineNo, f)
			}
			relevant[id] = struct{}{}
		}
		bench = append(bench, Entry{Query: strings.TrimSpace(query), Relevant: relevant})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading benchmark: %w", err)
	}
	return bench, nil
}

func LoadBenchmark(path string) (Benchmark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening benchmark: %w", err)
	}
	defer f.Close()
	return ReadBenchmark(f)
}
