package timetable

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/gocarina/gocsv"

	"github.com/dgallion1/enrollgest/internal/course"
)

// CSVSource serves catalog sections from a CSV export with one column per
// CatalogRecord field (crn, code, name, ...). The file covers a single term.
type CSVSource struct {
	Path string
}

// Lookup returns the rows whose course code belongs to subject. An empty
// subject returns every row. term is accepted for interface parity only.
func (s CSVSource) Lookup(ctx context.Context, subject, term string) ([]course.CatalogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if term != "" {
		if err := ValidateTerm(term); err != nil {
			return nil, err
		}
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog csv: %w", err)
	}
	defer f.Close()

	var rows []course.CatalogRecord
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("decode catalog csv %s: %w", s.Path, err)
	}

	out := make([]course.CatalogRecord, 0, len(rows))
	for _, r := range rows {
		if subject == "" || InSubject(r.Code, subject) {
			out = append(out, r)
		}
	}
	return out, nil
}

// InSubject reports whether a course code such as "CS-5000" or "CS 5000"
// belongs to subject.
func InSubject(code, subject string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	subject = strings.ToUpper(subject)
	if !strings.HasPrefix(code, subject) {
		return false
	}
	rest := code[len(subject):]
	return rest == "" || !unicode.IsLetter(rune(rest[0]))
}
