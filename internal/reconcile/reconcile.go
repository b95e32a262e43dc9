// Package reconcile joins PDF enrollment records with catalog sections by CRN.
package reconcile

import (
	"log/slog"

	"github.com/dgallion1/enrollgest/internal/course"
	"github.com/dgallion1/enrollgest/internal/table"
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	Merged []course.MergedRecord `json:"merged"`
	// UnmatchedCatalogCRNs are catalog sections with no PDF line, in catalog order.
	UnmatchedCatalogCRNs []string `json:"unmatched_crns"`
	// UnmatchedPDFCRNs are PDF lines with no catalog section, in PDF order.
	UnmatchedPDFCRNs []string `json:"unmatched_pdf_crns"`
	Stats            Stats    `json:"stats"`
}

// Reconciler merges validated PDF records into catalog records.
type Reconciler struct {
	log *slog.Logger
}

// NewReconciler returns a Reconciler. A nil logger discards output.
func NewReconciler(log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{log: log}
}

// Reconcile walks the catalog in order and emits a merged record for every
// section whose CRN appears in pdf. PDF records are re-validated first; when
// the same CRN occurs twice in pdf the later record wins. A catalog CRN seen
// a second time is counted as a catalog error and not merged again. Merged
// records missing a CRN or course code are dropped and counted.
func (r *Reconciler) Reconcile(pdf []course.ExtractedRecord, catalog []course.CatalogRecord) Result {
	valid := make([]course.ExtractedRecord, 0, len(pdf))
	pdfErrors := 0
	for _, rec := range pdf {
		if !table.ValidateRecord(rec) {
			pdfErrors++
			r.log.Warn("invalid pdf record", "crn", rec.CRN, "seats", rec.Seats, "capacity", rec.Capacity)
			continue
		}
		valid = append(valid, rec)
	}

	lookup := make(map[string]course.ExtractedRecord, len(valid))
	for _, rec := range valid {
		lookup[rec.CRN] = rec
	}

	res := Result{
		Merged:               []course.MergedRecord{},
		UnmatchedCatalogCRNs: []string{},
		UnmatchedPDFCRNs:     []string{},
	}
	seen := make(map[string]bool, len(catalog))
	timetableErrors := 0
	mergeRejected := 0

	for _, c := range catalog {
		if c.CRN == "" {
			timetableErrors++
			r.log.Warn("catalog section without crn", "code", c.Code, "name", c.Name)
			continue
		}
		if seen[c.CRN] {
			timetableErrors++
			r.log.Warn("duplicate catalog crn", "crn", c.CRN)
			continue
		}
		seen[c.CRN] = true

		rec, ok := lookup[c.CRN]
		if !ok {
			res.UnmatchedCatalogCRNs = append(res.UnmatchedCatalogCRNs, c.CRN)
			continue
		}
		merged := course.Merge(c, rec)
		if !validMerged(merged) {
			mergeRejected++
			r.log.Warn("merged record rejected", "crn", merged.CRN, "code", merged.Code)
			continue
		}
		res.Merged = append(res.Merged, merged)
	}

	reported := make(map[string]bool)
	for _, rec := range valid {
		if seen[rec.CRN] || reported[rec.CRN] {
			continue
		}
		reported[rec.CRN] = true
		res.UnmatchedPDFCRNs = append(res.UnmatchedPDFCRNs, rec.CRN)
	}

	res.Stats = computeStats(len(valid), len(catalog), res.Merged)
	res.Stats.UnmatchedCRNs = len(res.UnmatchedCatalogCRNs)
	res.Stats.UnmatchedPDFCRNs = len(res.UnmatchedPDFCRNs)
	res.Stats.PDFErrors = pdfErrors
	res.Stats.MergeRejected = mergeRejected
	res.Stats.TimetableErrors = timetableErrors

	r.log.Info("merge statistics",
		"total_pdf_courses", res.Stats.TotalPDFCourses,
		"total_timetable_courses", res.Stats.TotalTimetableCourses,
		"total_merged_courses", res.Stats.TotalMergedCourses,
		"match_rate", res.Stats.MatchRate,
		"pdf_errors", pdfErrors,
		"timetable_errors", timetableErrors,
	)
	if len(res.UnmatchedCatalogCRNs) > 0 {
		r.log.Warn("unmatched catalog crns", "crns", res.UnmatchedCatalogCRNs)
	}
	if len(res.UnmatchedPDFCRNs) > 0 {
		r.log.Warn("unmatched pdf crns", "crns", res.UnmatchedPDFCRNs)
	}
	return res
}

// validMerged is the second gate: catalog fields can be missing even when the
// PDF side is fine.
func validMerged(m course.MergedRecord) bool {
	return m.CRN != "" && m.Code != ""
}
