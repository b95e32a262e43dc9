package table

import (
	"sort"
	"strings"

	"github.com/dgallion1/enrollgest/internal/course"
)

type headerColumn struct {
	name   string
	x0, x1 float64
}

// ResolveColumns turns header tokens into contiguous column bands.
//
// Each expected name takes the first unused header token containing it;
// names with no token are dropped. Matched columns are ordered by x0. The
// first band starts at x0 minus the column tolerance, every later band starts
// halfway between the previous provisional right edge (x1 + tolerance) and its
// own x0. A second pass replaces each shared boundary with the midpoint of the
// provisional right edge and the next provisional left edge, so adjacent bands
// meet exactly. The last band extends far past the page.
func ResolveColumns(header []course.Token, opts Options) HeaderModel {
	opts = opts.withDefaults()

	used := make([]bool, len(header))
	var cols []headerColumn
	for _, name := range opts.ExpectedHeaders {
		needle := strings.ToLower(name)
		for i, t := range header {
			if used[i] || !strings.Contains(strings.ToLower(t.Text), needle) {
				continue
			}
			used[i] = true
			cols = append(cols, headerColumn{name: name, x0: t.X0, x1: t.X1})
			break
		}
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].x0 < cols[j].x0 })

	provisional := make([]ColumnBand, len(cols))
	for i, c := range cols {
		tol := opts.tolerance(c.name)
		left := c.x0 - tol
		if i > 0 {
			left = (provisional[i-1].Right + c.x0) / 2.0
		}
		right := c.x1 + tol
		if i == len(cols)-1 {
			right = c.x1 + lastColumnOverflow
		}
		provisional[i] = ColumnBand{Name: c.name, Left: left, Right: right}
	}

	bands := make([]ColumnBand, len(provisional))
	copy(bands, provisional)
	for i := 0; i < len(provisional)-1; i++ {
		mid := (provisional[i].Right + provisional[i+1].Left) / 2.0
		bands[i].Right = mid
		bands[i+1].Left = mid
	}

	return HeaderModel{Bands: bands, HeaderBottom: headerBottom(header)}
}

// BandFor returns the band fully containing [x0, x1], if any.
func (m HeaderModel) BandFor(x0, x1 float64) (ColumnBand, bool) {
	for _, b := range m.Bands {
		if x0 >= b.Left && x1 <= b.Right {
			return b, true
		}
	}
	return ColumnBand{}, false
}
