package parser

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/enrollgest/internal/course"
)

// textRun is one string shown at (x, y) in PDF user space.
type textRun struct {
	x, y float64
	s    string
}

// buildPDF writes a PDF with one page per entry in pages. Every glyph of the
// Helvetica font is 500 units wide, so a 10pt run advances 5pt per character.
func buildPDF(pages ...[]textRun) []byte {
	widths := strings.TrimSpace(strings.Repeat("500 ", 95))
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled in below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding " +
			"/FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>",
	}
	var kids []string
	for _, runs := range pages {
		var content strings.Builder
		for _, r := range runs {
			fmt.Fprintf(&content, "BT /F1 10 Tf %g %g Td (%s) Tj ET\n", r.x, r.y, r.s)
		}
		stream := content.String()
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
		contentRef := len(objects)
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentRef))
		kids = append(kids, fmt.Sprintf("%d 0 R", len(objects)))
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func timetablePDF() []byte {
	return buildPDF(
		[]textRun{{72, 700, "12345"}, {150, 700, "Full"}, {72, 680, "CRN"}},
		[]textRun{{72, 700, "23456"}},
	)
}

func tokenTexts(tokens []course.Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func TestPDFParser_ReadsPositionedWords(t *testing.T) {
	doc, err := NewPDFParser(false, nil).Parse(bytes.NewReader(timetablePDF()), "cs.pdf")
	require.NoError(t, err)
	assert.Equal(t, "cs.pdf", doc.Filename)
	require.Len(t, doc.Pages, 2)

	first := doc.Pages[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 612.0, first.Width)
	assert.Equal(t, 792.0, first.Height)
	require.Equal(t, []string{"12345", "Full", "CRN"}, tokenTexts(first.Tokens))

	crn := first.Tokens[0]
	assert.InDelta(t, 72, crn.X0, 1e-6)
	assert.InDelta(t, 97, crn.X1, 1e-6)
	assert.InDelta(t, 84, crn.Y0, 1e-6, "792 - (700 + 0.8*10)")
	assert.InDelta(t, 94, crn.Y1, 1e-6)

	second := doc.Pages[1]
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, []string{"23456"}, tokenTexts(second.Tokens))
	assert.Equal(t, 1, second.Tokens[0].Page)
}

func TestPDFParser_ValidatesFirst(t *testing.T) {
	data := timetablePDF()
	pages, err := Validate(data)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)

	doc, err := NewPDFParser(true, nil).Parse(bytes.NewReader(data), "cs.pdf")
	require.NoError(t, err)
	assert.Len(t, doc.Pages, 2)
}

func chars(s string, x, y, w float64) []glyph {
	var out []glyph
	for _, r := range s {
		out = append(out, glyph{X0: x, Y0: y, X1: x + w, Y1: y + 10, S: string(r)})
		x += w
	}
	return out
}

func TestFlip(t *testing.T) {
	g := flip(pdflib.Text{X: 10, Y: 700, W: 20, FontSize: 10, S: "CRN"}, 792)
	assert.Equal(t, 84.0, g.Y0)
	assert.Equal(t, 94.0, g.Y1)
	assert.Equal(t, 10.0, g.X0)
	assert.Equal(t, 30.0, g.X1)
}

func TestGroupWords_SplitsOnGapAndSpace(t *testing.T) {
	var glyphs []glyph
	glyphs = append(glyphs, chars("12345", 10, 100, 5)...)
	glyphs = append(glyphs, chars("Full", 340, 101, 5)...)
	glyphs = append(glyphs, chars("Intro to", 60, 100, 5)...)

	words := groupWords(glyphs, 2)
	assert.Equal(t, []string{"12345", "Intro", "to", "Full"}, tokenTexts(words))
	for _, w := range words {
		assert.Equal(t, 2, w.Page, "token %q", w.Text)
	}
	assert.Equal(t, 10.0, words[0].X0)
	assert.Equal(t, 35.0, words[0].X1)
}

func TestGroupWords_SeparateLines(t *testing.T) {
	var glyphs []glyph
	glyphs = append(glyphs, chars("B", 10, 120, 5)...)
	glyphs = append(glyphs, chars("A", 10, 100, 5)...)

	assert.Equal(t, []string{"A", "B"}, tokenTexts(groupWords(glyphs, 0)), "top-to-bottom order")
}

func TestGroupWords_MultiCharRuns(t *testing.T) {
	glyphs := []glyph{
		{X0: 10, Y0: 50, X1: 40, Y1: 60, S: "Seats "},
		{X0: 45, Y0: 50, X1: 60, Y1: 60, S: "20"},
	}
	assert.Equal(t, []string{"Seats", "20"}, tokenTexts(groupWords(glyphs, 0)))
}

func TestGroupWords_Empty(t *testing.T) {
	assert.Nil(t, groupWords(nil, 0))
}

func TestPDFParser_RejectsGarbage(t *testing.T) {
	_, err := NewPDFParser(false, nil).Parse(strings.NewReader("not a pdf"), "x.pdf")
	assert.Error(t, err)
}

func TestValidate_RejectsGarbage(t *testing.T) {
	_, err := Validate([]byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
}

func TestIsSupportedExtension(t *testing.T) {
	cases := map[string]bool{
		"timetable.pdf": true,
		"TIMETABLE.PDF": true,
		"notes.txt":     false,
		"noext":         false,
	}
	for name, want := range cases {
		assert.Equal(t, want, IsSupportedExtension(name), name)
	}
}

func TestForFile(t *testing.T) {
	_, err := ForFile("a.pdf", false, nil)
	require.NoError(t, err)
	_, err = ForFile("a.docx", false, nil)
	assert.Error(t, err)
}
