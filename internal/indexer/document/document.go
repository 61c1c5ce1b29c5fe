// Package document holds the corpus records the index is built from. Records
// are tab-separated lines of the form
//
//	title<TAB>description[<TAB>rating count<TAB>rating<TAB>sitelink count]
//
// and are numbered from 1 in the order they are ingested.
package document

import (
	"strconv"
	"strings"
)

// MinFields is the number of tab-separated fields a record must carry.
const MinFields = 2

// Document is one ingested record. Length is the token count of the whole
// raw line, title and description combined. The numeric fields are optional
// and only feed ranking refinements; they are zero when absent or malformed.
type Document struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Length        int     `json:"length"`
	RatingCount   int     `json:"rating_count,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	SitelinkCount int     `json:"sitelink_count,omitempty"`
}

// extras fills the optional trailing fields of d from fields[MinFields:].
func (d *Document) extras(fields []string) {
	if len(fields) > 2 {
		d.RatingCount, _ = strconv.Atoi(strings.TrimSpace(fields[2]))
	}
	if len(fields) > 3 {
		d.Rating, _ = strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	}
	if len(fields) > 4 {
		d.SitelinkCount, _ = strconv.Atoi(strings.TrimSpace(fields[4]))
	}
}
