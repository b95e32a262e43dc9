package table

import (
	"log/slog"

	"github.com/dgallion1/enrollgest/internal/course"
)

// ValidateRecord checks an extracted record. Returns true if valid.
func ValidateRecord(r course.ExtractedRecord) bool {
	if len(r.CRN) != 5 || !isDigits(r.CRN) {
		return false
	}
	if r.Capacity < 0 {
		return false
	}
	return r.Seats >= 0 && r.Seats <= r.Capacity
}

// Validate drops invalid records, keeping the order of the rest.
func Validate(records []course.ExtractedRecord, log *slog.Logger) ([]course.ExtractedRecord, int) {
	valid := make([]course.ExtractedRecord, 0, len(records))
	rejected := 0
	for _, r := range records {
		if ValidateRecord(r) {
			valid = append(valid, r)
			continue
		}
		rejected++
		if log != nil {
			log.Debug("record rejected", "crn", r.CRN, "seats", r.Seats, "capacity", r.Capacity)
		}
	}
	if rejected > 0 && log != nil {
		log.Warn("validation rejected records", "rejected", rejected, "valid", len(valid))
	}
	return valid, rejected
}
