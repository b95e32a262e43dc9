package reconcile

import "github.com/dgallion1/enrollgest/internal/course"

// Stats is the audit trail of a reconciliation pass.
type Stats struct {
	TotalPDFCourses       int     `json:"total_pdf_courses"`
	TotalTimetableCourses int     `json:"total_timetable_courses"`
	TotalMergedCourses    int     `json:"total_merged_courses"`
	MatchRate             float64 `json:"match_rate"`

	UnmatchedCRNs    int `json:"unmatched_crns"`
	UnmatchedPDFCRNs int `json:"unmatched_pdf_crns"`
	PDFErrors        int `json:"pdf_errors"`
	MergeRejected    int `json:"merge_rejected"`
	TimetableErrors  int `json:"timetable_errors"`

	UniqueCourses int     `json:"unique_courses"`
	AvgCapacity   float64 `json:"avg_capacity"`
	AvgSeatsTaken float64 `json:"avg_seats_taken"`
}

func computeStats(pdfTotal, catalogTotal int, merged []course.MergedRecord) Stats {
	s := Stats{
		TotalPDFCourses:       pdfTotal,
		TotalTimetableCourses: catalogTotal,
		TotalMergedCourses:    len(merged),
	}
	if catalogTotal > 0 {
		s.MatchRate = float64(len(merged)) / float64(catalogTotal)
	}
	if len(merged) == 0 {
		return s
	}

	codes := make(map[string]struct{}, len(merged))
	var capSum, seatSum int
	for _, m := range merged {
		codes[m.Code] = struct{}{}
		capSum += m.Capacity
		seatSum += m.Seats
	}
	s.UniqueCourses = len(codes)
	s.AvgCapacity = float64(capSum) / float64(len(merged))
	s.AvgSeatsTaken = float64(seatSum) / float64(len(merged))
	return s
}

// Combine sums the counters of per-file passes and recomputes the rates.
// Averages are weighted by merged count. UniqueCourses is summed, so a code
// present in two files counts twice.
func Combine(parts ...Stats) Stats {
	var out Stats
	var capSum, seatSum float64
	for _, p := range parts {
		out.TotalPDFCourses += p.TotalPDFCourses
		out.TotalTimetableCourses += p.TotalTimetableCourses
		out.TotalMergedCourses += p.TotalMergedCourses
		out.UnmatchedCRNs += p.UnmatchedCRNs
		out.UnmatchedPDFCRNs += p.UnmatchedPDFCRNs
		out.PDFErrors += p.PDFErrors
		out.MergeRejected += p.MergeRejected
		out.TimetableErrors += p.TimetableErrors
		out.UniqueCourses += p.UniqueCourses
		capSum += p.AvgCapacity * float64(p.TotalMergedCourses)
		seatSum += p.AvgSeatsTaken * float64(p.TotalMergedCourses)
	}
	if out.TotalTimetableCourses > 0 {
		out.MatchRate = float64(out.TotalMergedCourses) / float64(out.TotalTimetableCourses)
	}
	if out.TotalMergedCourses > 0 {
		out.AvgCapacity = capSum / float64(out.TotalMergedCourses)
		out.AvgSeatsTaken = seatSum / float64(out.TotalMergedCourses)
	}
	return out
}
