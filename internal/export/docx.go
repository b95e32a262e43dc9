package export

import (
	"bytes"
	"fmt"

	"github.com/fumiama/go-docx"
)

// DOCX renders the report as a Word document: a title, one paragraph per
// file and one per underenrolled course.
func (r Report) DOCX() ([]byte, error) {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText(r.Title).Size("32").Bold()

	doc.AddParagraph().AddText("Files").Size("26").Bold()
	for _, f := range r.Files {
		p := doc.AddParagraph()
		p.AddText(f.File).Bold()
		if f.Error != "" {
			p.AddText(fmt.Sprintf(": failed: %s", f.Error))
			continue
		}
		p.AddText(fmt.Sprintf(": %s %s, %d merged of %d catalog sections (%.1f%% matched), %d PDF records",
			f.Subject, f.Term, f.Courses, f.Stats.TotalTimetableCourses, f.Stats.MatchRate*100, f.Stats.TotalPDFCourses))
	}

	doc.AddParagraph().AddText("Underenrolled graduate courses").Size("26").Bold()
	if len(r.Underenrolled) == 0 {
		doc.AddParagraph().AddText("None.")
	}
	for _, g := range r.Underenrolled {
		p := doc.AddParagraph()
		p.AddText(fmt.Sprintf("%s %s", g.Code, g.Name)).Bold()
		line := fmt.Sprintf(" (CRN %s, %s): %d of %d seats", g.CRN, g.Instructor, g.Seats, g.Capacity)
		if g.CrossListed {
			line += fmt.Sprintf(", cross-listed across %d sections", g.Sections)
		}
		p.AddText(line)
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}
