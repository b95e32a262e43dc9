package table

import (
	"strconv"

	"github.com/dgallion1/enrollgest/internal/course"
)

// RowAccumulator collects the fields of one record while a row is walked.
// The zero value is an empty accumulator.
type RowAccumulator struct {
	CRN         string
	Seats       int
	Capacity    int
	HasCRN      bool
	HasSeats    bool
	HasCapacity bool
}

// Complete reports whether all three fields have been observed.
func (a RowAccumulator) Complete() bool {
	return a.HasCRN && a.HasSeats && a.HasCapacity
}

// TryComplete emits a record when the accumulator is complete and returns a
// fresh accumulator in its place. Otherwise it returns acc unchanged.
func TryComplete(acc RowAccumulator) (course.ExtractedRecord, bool, RowAccumulator) {
	if !acc.Complete() {
		return course.ExtractedRecord{}, false, acc
	}
	rec := course.ExtractedRecord{CRN: acc.CRN, Seats: acc.Seats, Capacity: acc.Capacity}
	return rec, true, RowAccumulator{}
}

// Observe applies one column-tagged token to the accumulator.
//
// Seats takes a digit string or the literal "Full" (zero seats), once.
// Capacity takes a digit string, once. CRN takes any five digit string and
// replaces an earlier one. Everything else is ignored.
func (a RowAccumulator) Observe(t ColumnToken) RowAccumulator {
	switch t.Column {
	case ColumnSeats:
		if a.HasSeats {
			break
		}
		if t.Text == "Full" {
			a.Seats, a.HasSeats = 0, true
		} else if n, ok := parseDigits(t.Text); ok {
			a.Seats, a.HasSeats = n, true
		}
	case ColumnCapacity:
		if a.HasCapacity {
			break
		}
		if n, ok := parseDigits(t.Text); ok {
			a.Capacity, a.HasCapacity = n, true
		}
	case ColumnCRN:
		if len(t.Text) == 5 && isDigits(t.Text) {
			a.CRN, a.HasCRN = t.Text, true
		}
	}
	return a
}

// ExtractRow walks a row in its stored order, feeding acc. Each time the
// accumulator completes a record is emitted and accumulation restarts, so a
// row carrying two full triples yields two records. The returned accumulator
// holds whatever was left incomplete.
func ExtractRow(row Row, acc RowAccumulator) ([]course.ExtractedRecord, RowAccumulator) {
	var out []course.ExtractedRecord
	for _, t := range row {
		acc = acc.Observe(t)
		rec, ok, next := TryComplete(acc)
		if ok {
			out = append(out, rec)
		}
		acc = next
	}
	return out, acc
}

// ExtractRows runs ExtractRow over every row with a fresh accumulator each.
func ExtractRows(rows []Row) []course.ExtractedRecord {
	var out []course.ExtractedRecord
	for _, row := range rows {
		recs, _ := ExtractRow(row, RowAccumulator{})
		out = append(out, recs...)
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseDigits(s string) (int, bool) {
	if !isDigits(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
