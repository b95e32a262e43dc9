package parser

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/enrollgest/internal/course"
)

const (
	// LineTolerance is the vertical distance within which glyphs share a line.
	LineTolerance = 3.0
	// WordGap is the horizontal gap that always starts a new word.
	WordGap = 3.0
	// relativeGap starts a new word when the gap exceeds this fraction of the
	// previous glyph's width.
	relativeGap = 0.3
	// baselineRatio places the glyph top above the baseline.
	baselineRatio = 0.8

	defaultWidth  = 612.0
	defaultHeight = 792.0
)

// PDFParser reads positioned words from a PDF.
type PDFParser struct {
	validate bool
	log      *slog.Logger
}

// NewPDFParser returns a parser. With validate set the PDF structure is
// checked before any text is read.
func NewPDFParser(validate bool, log *slog.Logger) *PDFParser {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &PDFParser{validate: validate, log: log}
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*course.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	if p.validate {
		pages, err := Validate(data)
		if err != nil {
			return nil, fmt.Errorf("validate %s: %w", filename, err)
		}
		p.log.Debug("pdf validated", "file", filename, "pages", pages)
	}

	doc, err := readDocument(data, filename)
	if err != nil {
		return nil, err
	}

	tokens := 0
	for _, pg := range doc.Pages {
		tokens += len(pg.Tokens)
	}
	p.log.Info("pdf parsed", "file", filename, "pages", len(doc.Pages), "tokens", tokens)
	return doc, nil
}

// readDocument converts a reader panic into an error for this document.
func readDocument(data []byte, filename string) (doc *course.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = fmt.Errorf("read %s: pdf reader panic: %v", filename, rec)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filename, err)
	}

	doc = &course.Document{Filename: filename}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		width, height := mediaBox(page)
		content := page.Content()

		glyphs := make([]glyph, 0, len(content.Text))
		for _, t := range content.Text {
			glyphs = append(glyphs, flip(t, height))
		}
		doc.Pages = append(doc.Pages, course.Page{
			Index:  i - 1,
			Width:  width,
			Height: height,
			Tokens: groupWords(glyphs, i-1),
		})
	}
	return doc, nil
}

func mediaBox(page pdflib.Page) (float64, float64) {
	box := page.V.Key("MediaBox")
	if box.Kind() != pdflib.Array || box.Len() != 4 {
		return defaultWidth, defaultHeight
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return defaultWidth, defaultHeight
	}
	return w, h
}

// glyph is one text run in top-left page coordinates.
type glyph struct {
	X0, Y0, X1, Y1 float64
	S              string
}

// flip converts a baseline-anchored run to a top-left box.
func flip(t pdflib.Text, pageHeight float64) glyph {
	y0 := pageHeight - (t.Y + baselineRatio*t.FontSize)
	return glyph{
		X0: t.X,
		Y0: y0,
		X1: t.X + t.W,
		Y1: y0 + t.FontSize,
		S:  t.S,
	}
}

// groupWords joins glyphs into words. Glyphs are bucketed into lines by
// LineTolerance, ordered left to right, and split on whitespace or gaps.
func groupWords(glyphs []glyph, page int) []course.Token {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := make([]glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y0 < sorted[j].Y0 })

	var lines [][]glyph
	var lineY float64
	for _, g := range sorted {
		if len(lines) == 0 || g.Y0-lineY > LineTolerance {
			lines = append(lines, nil)
			lineY = g.Y0
		}
		lines[len(lines)-1] = append(lines[len(lines)-1], g)
	}

	var out []course.Token
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X0 < line[j].X0 })
		out = append(out, lineWords(line, page)...)
	}
	return out
}

func lineWords(line []glyph, page int) []course.Token {
	var out []course.Token
	var cur *course.Token
	var text strings.Builder
	var prev glyph

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = text.String()
		out = append(out, *cur)
		cur = nil
		text.Reset()
	}

	for _, g := range line {
		s := g.S
		if strings.TrimFunc(s, unicode.IsSpace) == "" {
			flush()
			prev = g
			continue
		}
		if cur != nil {
			gap := g.X0 - prev.X1
			if gap > WordGap || gap > relativeGap*(prev.X1-prev.X0) {
				flush()
			}
		}
		if cur == nil {
			cur = &course.Token{X0: g.X0, Y0: g.Y0, X1: g.X1, Y1: g.Y1, Page: page}
		}
		text.WriteString(strings.TrimSpace(s))
		cur.X1 = max(cur.X1, g.X1)
		cur.Y0 = min(cur.Y0, g.Y0)
		cur.Y1 = max(cur.Y1, g.Y1)
		prev = g
		if strings.TrimRightFunc(s, unicode.IsSpace) != s {
			flush()
		}
	}
	flush()
	return out
}
