package table

import (
	"math"
	"sort"
	"strings"

	"github.com/dgallion1/enrollgest/internal/course"
)

// ColumnBand is the horizontal extent assigned to one named column.
type ColumnBand struct {
	Name  string  `json:"name"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// HeaderModel is the column layout resolved from the first page header.
type HeaderModel struct {
	Bands        []ColumnBand `json:"bands"`
	HeaderBottom float64      `json:"header_bottom_y"`
}

// FindHeaderTokens returns the tokens of the header line(s) sorted by x0.
// Tokens are grouped into lines by y0 rounded to one decimal. A line is part
// of the header when more than half of the expected names occur in it
// (case-insensitive substring of a token). Scanning stops once maxHeaderLines
// header lines are collected. An empty result means no header was found.
func FindHeaderTokens(tokens []course.Token, expected []string) []course.Token {
	lines := make(map[float64][]course.Token)
	for _, t := range tokens {
		key := math.Round(t.Y0*10) / 10
		lines[key] = append(lines[key], t)
	}
	keys := make([]float64, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	lowered := make([]string, len(expected))
	for i, h := range expected {
		lowered[i] = strings.ToLower(h)
	}

	var header []course.Token
	found := 0
	for _, k := range keys {
		line := lines[k]
		if float64(countHeaderMatches(line, lowered)) > float64(len(expected))*0.5 {
			header = append(header, line...)
			found++
		}
		if found >= maxHeaderLines {
			break
		}
	}

	sort.SliceStable(header, func(i, j int) bool { return header[i].X0 < header[j].X0 })
	return header
}

func countHeaderMatches(line []course.Token, expected []string) int {
	texts := make([]string, len(line))
	for i, t := range line {
		texts[i] = strings.ToLower(t.Text)
	}
	n := 0
	for _, h := range expected {
		for _, text := range texts {
			if strings.Contains(text, h) {
				n++
				break
			}
		}
	}
	return n
}

// headerBottom is the largest y1 among header tokens, i.e. the lowest edge on
// the page.
func headerBottom(header []course.Token) float64 {
	bottom := 0.0
	for i, t := range header {
		if i == 0 || t.Y1 > bottom {
			bottom = t.Y1
		}
	}
	return bottom
}
