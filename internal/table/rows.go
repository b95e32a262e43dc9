package table

import (
	"sort"

	"github.com/dgallion1/enrollgest/internal/course"
)

// ColumnToken is a data token tagged with the band it fell into.
type ColumnToken struct {
	course.Token
	Column string
}

// Row is one visual table row. Rows only live for the duration of a page.
type Row []ColumnToken

// AssignColumns keeps tokens below startY and tags each with the first band
// that fully contains it. Tokens that fit no band are dropped.
func AssignColumns(tokens []course.Token, model HeaderModel, startY float64) []ColumnToken {
	out := make([]ColumnToken, 0, len(tokens))
	for _, t := range tokens {
		if t.Y0 <= startY {
			continue
		}
		band, ok := model.BandFor(t.X0, t.X1)
		if !ok {
			continue
		}
		out = append(out, ColumnToken{Token: t, Column: band.Name})
	}
	return out
}

// ClusterRows sorts tokens by y0 and splits them into rows wherever the gap to
// the previous token's y0 exceeds gap.
func ClusterRows(tokens []ColumnToken, gap float64) []Row {
	if len(tokens) == 0 {
		return nil
	}
	sorted := make([]ColumnToken, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y0 < sorted[j].Y0 })

	var rows []Row
	current := Row{sorted[0]}
	lastY := sorted[0].Y0
	for _, t := range sorted[1:] {
		if t.Y0-lastY > gap {
			rows = append(rows, current)
			current = Row{t}
		} else {
			current = append(current, t)
		}
		lastY = t.Y0
	}
	return append(rows, current)
}
