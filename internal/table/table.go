// Package table rebuilds the enrollment table of a timetable PDF from
// positioned text tokens and pulls CRN, seats and capacity out of each row.
package table

import (
	"errors"
	"log/slog"

	"github.com/dgallion1/enrollgest/internal/course"
)

// ErrNoHeader marks a document whose first page carries no header line.
var ErrNoHeader = errors.New("table: no header found on first page")

// PageStats counts what one page contributed.
type PageStats struct {
	Page      int `json:"page"`
	Tokens    int `json:"tokens"`
	Assigned  int `json:"assigned"`
	Rows      int `json:"rows"`
	Extracted int `json:"extracted"`
}

// Result is the outcome of extracting one document.
type Result struct {
	Records  []course.ExtractedRecord `json:"records"`
	Rejected int                      `json:"rejected"`
	Header   HeaderModel              `json:"header"`
	Pages    []PageStats              `json:"pages"`
	// Skipped is set when the document produced nothing for a structural
	// reason. It is informational only.
	Skipped error `json:"-"`
}

// Extractor runs header location, column resolution, row clustering, record
// extraction and validation over one document. It holds no state between
// calls and may be shared.
type Extractor struct {
	opts Options
	log  *slog.Logger
}

// NewExtractor returns an Extractor. A nil logger discards output.
func NewExtractor(opts Options, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Extractor{opts: opts.withDefaults(), log: log}
}

// Options returns the effective tunables.
func (e *Extractor) Options() Options { return e.opts }

// Extract returns the validated records of doc. Column bands come from the
// first page header and are reused on every page. On the first page only
// tokens below the header are data.
func (e *Extractor) Extract(doc *course.Document) Result {
	log := e.log.With("file", doc.Filename)
	if len(doc.Pages) == 0 || len(doc.Pages[0].Tokens) == 0 {
		log.Warn("document has no tokens on first page")
		return Result{Skipped: ErrNoHeader}
	}

	header := FindHeaderTokens(doc.Pages[0].Tokens, e.opts.ExpectedHeaders)
	if len(header) == 0 {
		log.Warn("no header found")
		return Result{Skipped: ErrNoHeader}
	}
	model := ResolveColumns(header, e.opts)
	log.Info("resolved columns", "columns", len(model.Bands), "header_bottom", model.HeaderBottom)

	res := Result{Header: model}
	var all []course.ExtractedRecord
	for i, page := range doc.Pages {
		startY := 0.0
		if i == 0 {
			startY = model.HeaderBottom
		}
		assigned := AssignColumns(page.Tokens, model, startY)
		rows := ClusterRows(assigned, e.opts.RowGapThreshold)
		recs := ExtractRows(rows)
		all = append(all, recs...)

		ps := PageStats{
			Page:      i + 1,
			Tokens:    len(page.Tokens),
			Assigned:  len(assigned),
			Rows:      len(rows),
			Extracted: len(recs),
		}
		res.Pages = append(res.Pages, ps)
		log.Info("page extracted", "page", ps.Page, "tokens", ps.Tokens, "rows", ps.Rows, "records", ps.Extracted)
	}

	res.Records, res.Rejected = Validate(all, log)
	log.Info("extraction complete", "records", len(res.Records), "rejected", res.Rejected)
	return res
}
