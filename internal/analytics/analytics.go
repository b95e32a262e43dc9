// Package analytics derives reports from merged course records.
package analytics

import (
	"log/slog"
	"regexp"
	"strconv"

	"github.com/dgallion1/enrollgest/internal/course"
)

// IgnoredNames are non-lecture catalog entries expected to have near-zero
// enrollment.
var IgnoredNames = []string{
	"Research and Dissertation",
	"Project and Report",
	"Independent Study",
	"Research and Thesis",
	"Final Examination",
	"Seminar",
	"Capstone Project",
}

const (
	DefaultGraduateFloor          = 5000
	DefaultUnderenrolledThreshold = 6
)

// Options are the report tunables.
type Options struct {
	GraduateFloor          int      `yaml:"graduate_floor"`
	UnderenrolledThreshold int      `yaml:"underenrolled_threshold"`
	IgnoredNames           []string `yaml:"ignored_names"`
}

// DefaultOptions returns the reference tunables.
func DefaultOptions() Options {
	return Options{
		GraduateFloor:          DefaultGraduateFloor,
		UnderenrolledThreshold: DefaultUnderenrolledThreshold,
		IgnoredNames:           append([]string(nil), IgnoredNames...),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.GraduateFloor <= 0 {
		o.GraduateFloor = d.GraduateFloor
	}
	if o.UnderenrolledThreshold <= 0 {
		o.UnderenrolledThreshold = d.UnderenrolledThreshold
	}
	if o.IgnoredNames == nil {
		o.IgnoredNames = d.IgnoredNames
	}
	return o
}

var digitRun = regexp.MustCompile(`\d+`)

// CourseLevel returns the first run of digits in code.
func CourseLevel(code string) (int, bool) {
	m := digitRun.FindString(code)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Analyzer computes graduate and underenrolled reports.
type Analyzer struct {
	opts    Options
	ignored map[string]bool
	log     *slog.Logger
}

// NewAnalyzer returns an Analyzer. A nil logger discards output.
func NewAnalyzer(opts Options, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	opts = opts.withDefaults()
	ignored := make(map[string]bool, len(opts.IgnoredNames))
	for _, n := range opts.IgnoredNames {
		ignored[n] = true
	}
	return &Analyzer{opts: opts, ignored: ignored, log: log}
}

// FilterGraduate keeps records whose course level is at least the graduate
// floor. Codes without digits are dropped.
func (a *Analyzer) FilterGraduate(records []course.MergedRecord) []course.MergedRecord {
	out := make([]course.MergedRecord, 0, len(records))
	for _, r := range records {
		if lvl, ok := CourseLevel(r.Code); ok && lvl >= a.opts.GraduateFloor {
			out = append(out, r)
		}
	}
	return out
}

// FindUnderenrolled groups graduate records by (code, name), skipping ignored
// names, and returns the groups whose summed seats fall below the threshold.
// Each group is reported through its first section with seats and capacity
// replaced by the group totals. Groups keep first-seen order.
func (a *Analyzer) FindUnderenrolled(graduate []course.MergedRecord) []course.CourseGroup {
	type key struct{ code, name string }
	var order []key
	groups := make(map[key]*course.CourseGroup)

	for _, r := range graduate {
		if a.ignored[r.Name] {
			continue
		}
		k := key{r.Code, r.Name}
		g, ok := groups[k]
		if !ok {
			g = &course.CourseGroup{MergedRecord: r}
			g.Seats, g.Capacity = 0, 0
			groups[k] = g
			order = append(order, k)
		}
		g.Seats += r.Seats
		g.Capacity += r.Capacity
		g.Sections++
	}

	out := make([]course.CourseGroup, 0)
	for _, k := range order {
		g := groups[k]
		if g.Seats >= a.opts.UnderenrolledThreshold {
			continue
		}
		g.CrossListed = g.Sections > 1
		out = append(out, *g)
		a.log.Info("underenrolled course", "code", g.Code, "crn", g.CRN, "seats", g.Seats, "cross_listed", g.CrossListed)
	}
	a.log.Info("underenrolled search complete", "groups", len(order), "underenrolled", len(out))
	return out
}
