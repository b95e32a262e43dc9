package timetable

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/enrollgest/internal/course"
)

// ErrNoSections is returned when the response has no results table.
var ErrNoSections = errors.New("no section table in response")

// ParseSections reads the section rows of the results table. Only rows
// without attributes are sections; their cells map positionally onto crn,
// code, name, lecture type, modality, credits, capacity, instructor, days,
// start, end, location and exam type. Short rows fill what they can.
func ParseSections(r io.Reader) ([]course.CatalogRecord, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	tbl := findTable(doc)
	if tbl == nil {
		return nil, ErrNoSections
	}

	records := []course.CatalogRecord{}
	for _, tr := range findAll(tbl, "tr") {
		if len(tr.Attr) != 0 {
			continue
		}
		cells := findAll(tr, "td")
		if len(cells) == 0 {
			continue
		}
		values := make([]string, len(cells))
		for i, td := range cells {
			values[i] = cellText(td)
		}
		records = append(records, sectionFromCells(values))
	}
	return records, nil
}

func sectionFromCells(v []string) course.CatalogRecord {
	at := func(i int) string {
		if i < len(v) {
			return v[i]
		}
		return ""
	}
	// Index 6 is the catalog capacity; enrollment capacity comes from the PDF.
	return course.CatalogRecord{
		CRN:         at(0),
		Code:        at(1),
		Name:        at(2),
		LectureType: at(3),
		Modality:    at(4),
		Credits:     at(5),
		Instructor:  at(7),
		Days:        at(8),
		StartTime:   at(9),
		EndTime:     at(10),
		Location:    at(11),
		ExamType:    at(12),
	}
}

// cellText flattens a cell: newlines removed, hyphens turned into spaces,
// then trimmed.
func cellText(n *html.Node) string {
	s := textContent(n)
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.TrimSpace(s)
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTable(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "table" && hasClass(n, "dataentrytable") {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTable(c); t != nil {
			return t
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, f := range strings.Fields(a.Val) {
			if f == class {
				return true
			}
		}
	}
	return false
}
