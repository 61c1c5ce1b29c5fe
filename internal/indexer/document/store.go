package document

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/errors"
)

// Store owns the ingested documents. Ingest assigns ids 1, 2, 3, ... in call
// order, so ids are strictly increasing in ingestion order; the index builder
// depends on this to keep posting lists sorted without sorting them.
//
// A Store has a single writer. Once ingestion is finished it is read-only and
// safe for concurrent readers.
type Store struct {
	docs        []Document
	totalLength int
}

func NewStore() *Store {
	return &Store{}
}

// Ingest parses one corpus record and appends it under the next id.
func (s *Store) Ingest(line string) (Document, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, "\t")
	if len(fields) < MinFields {
		return Document{}, apperrors.Newf(apperrors.ErrMalformedRecord, http.StatusBadRequest,
			"record %d has %d field(s), need at least %d", len(s.docs)+1, len(fields), MinFields)
	}
	doc := Document{
		ID:          len(s.docs) + 1,
		Title:       fields[0],
		Description: fields[1],
		Length:      tokenizer.Count(line),
	}
	doc.extras(fields)
	s.docs = append(s.docs, doc)
	s.totalLength += doc.Length
	return doc, nil
}

// Get returns the document with the given 1-based id.
func (s *Store) Get(id int) (Document, error) {
	if id < 1 || id > len(s.docs) {
		return Document{}, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound,
			"id %d outside 1..%d", id, len(s.docs))
	}
	return s.docs[id-1], nil
}

// Length returns the token count of document id, or 0 if it does not exist.
func (s *Store) Length(id int) int {
	if id < 1 || id > len(s.docs) {
		return 0
	}
	return s.docs[id-1].Length
}

func (s *Store) Count() int {
	return len(s.docs)
}

func (s *Store) TotalLength() int {
	return s.totalLength
}

// AverageLength is the mean document length, 0 for an empty store.
func (s *Store) AverageLength() float64 {
	if len(s.docs) == 0 {
		return 0
	}
	return float64(s.totalLength) / float64(len(s.docs))
}

// ReadLines reads a corpus file into records, one per non-blank line.
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return lines, nil
}
