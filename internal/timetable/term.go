package timetable

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidTerm is returned for a malformed term identifier.
var ErrInvalidTerm = errors.New("invalid term")

// Term codes appended to the four digit year.
const (
	Spring   = "01"
	SummerI  = "06"
	SummerII = "07"
	Fall     = "09"
	Winter   = "12"
)

// TermNames maps term codes to display names.
var TermNames = map[string]string{
	Spring:   "Spring",
	SummerI:  "Summer I",
	SummerII: "Summer II",
	Fall:     "Fall",
	Winter:   "Winter",
}

// EngineeringSubjects are the subject codes the enrollment report covers.
var EngineeringSubjects = []string{
	"AOE", "BC", "BSE", "CEE", "CHE", "CS", "ECE", "ENGE", "ENGR", "ESM", "ISE", "ME", "MINE", "MSE", "NSEG",
}

// ValidateTerm checks a "YYYYTT" term identifier.
func ValidateTerm(term string) error {
	if len(term) != 6 {
		return fmt.Errorf("%w %q: want YYYYTT", ErrInvalidTerm, term)
	}
	if _, err := strconv.Atoi(term[:4]); err != nil {
		return fmt.Errorf("%w %q: year is not numeric", ErrInvalidTerm, term)
	}
	if _, ok := TermNames[term[4:]]; !ok {
		return fmt.Errorf("%w %q: unknown term code %q", ErrInvalidTerm, term, term[4:])
	}
	return nil
}

// MakeTerm builds a term identifier from a year and term code.
func MakeTerm(year int, code string) (string, error) {
	term := fmt.Sprintf("%04d%s", year, code)
	if err := ValidateTerm(term); err != nil {
		return "", err
	}
	return term, nil
}

// DefaultTerm is the most recent of Spring, Summer I, Summer II and Fall that
// has started by now's month.
func DefaultTerm(now time.Time) string {
	month := int(now.Month())
	code := 1
	for _, m := range []int{1, 6, 7, 9} {
		if m <= month {
			code = m
		}
	}
	return fmt.Sprintf("%04d%02d", now.Year(), code)
}

// TermLabel renders a term for reports, e.g. "Fall 2024".
func TermLabel(term string) string {
	if ValidateTerm(term) != nil {
		return term
	}
	return TermNames[term[4:]] + " " + term[:4]
}
