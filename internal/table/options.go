package table

// ExpectedHeaders is the timetable PDF column vocabulary in canonical order.
var ExpectedHeaders = []string{
	"CRN", "Course", "Title", "Schedule Type", "Modality", "Cr Hrs", "Seats",
	"Capacity", "Instructor", "Days", "Begin", "End", "Location", "on",
}

// Column names the record extractor reads.
const (
	ColumnCRN      = "CRN"
	ColumnSeats    = "Seats"
	ColumnCapacity = "Capacity"
)

const (
	// DefaultRowGap is the vertical gap (layout units) that starts a new row.
	DefaultRowGap = 10.0
	// DefaultTolerance applies to columns missing from the tolerance map.
	DefaultTolerance = 5.0
	// lastColumnOverflow extends the final band past any page width.
	lastColumnOverflow = 1000.0
	// maxHeaderLines caps how many physical lines a wrapped header may span.
	maxHeaderLines = 5
)

// Options are the tunables of the table reconstruction engine.
type Options struct {
	RowGapThreshold  float64            `yaml:"row_gap_threshold"`
	ColumnTolerances map[string]float64 `yaml:"column_tolerances"`
	ExpectedHeaders  []string           `yaml:"expected_headers"`
}

// DefaultOptions returns the reference tunables.
func DefaultOptions() Options {
	return Options{
		RowGapThreshold: DefaultRowGap,
		ColumnTolerances: map[string]float64{
			"CRN":           5.0,
			"Course":        5.0,
			"Title":         15.0,
			"Schedule Type": 8.0,
			"Modality":      15.0,
			"Cr Hrs":        5.0,
			"Seats":         5.0,
			"Capacity":      8.0,
			"Instructor":    15.0,
			"Days":          5.0,
			"Begin":         8.0,
			"End":           8.0,
			"Location":      10.0,
			"on":            5.0,
		},
		ExpectedHeaders: append([]string(nil), ExpectedHeaders...),
	}
}

// withDefaults fills zero-valued fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RowGapThreshold <= 0 {
		o.RowGapThreshold = d.RowGapThreshold
	}
	if len(o.ColumnTolerances) == 0 {
		o.ColumnTolerances = d.ColumnTolerances
	}
	if len(o.ExpectedHeaders) == 0 {
		o.ExpectedHeaders = d.ExpectedHeaders
	}
	return o
}

func (o Options) tolerance(column string) float64 {
	if t, ok := o.ColumnTolerances[column]; ok {
		return t
	}
	return DefaultTolerance
}
