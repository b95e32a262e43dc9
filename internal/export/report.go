package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/enrollgest/internal/course"
	"github.com/dgallion1/enrollgest/internal/reconcile"
)

// FileSummary is one processed PDF in a task report.
type FileSummary struct {
	File    string          `json:"file"`
	Subject string          `json:"subject_code,omitempty"`
	Term    string          `json:"term_year,omitempty"`
	Courses int             `json:"courses"`
	Stats   reconcile.Stats `json:"stats"`
	Error   string          `json:"error,omitempty"`
}

// Report is the human-readable summary of a task.
type Report struct {
	Title         string
	Files         []FileSummary
	Underenrolled []course.CourseGroup
}

// Markdown renders the report source.
func (r Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeText(r.Title))

	b.WriteString("## Files\n\n")
	b.WriteString("| File | Subject | Term | Merged | PDF | Catalog | Match rate | Status |\n")
	b.WriteString("|---|---|---|---:|---:|---:|---:|---|\n")
	for _, f := range r.Files {
		status := "ok"
		if f.Error != "" {
			status = "failed: " + f.Error
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %d | %.1f%% | %s |\n",
			cellEscape(f.File), cellEscape(f.Subject), cellEscape(f.Term), f.Courses,
			f.Stats.TotalPDFCourses, f.Stats.TotalTimetableCourses, f.Stats.MatchRate*100, cellEscape(status))
	}

	b.WriteString("\n## Underenrolled graduate courses\n\n")
	if len(r.Underenrolled) == 0 {
		b.WriteString("None.\n")
		return b.String()
	}
	b.WriteString("| Code | Name | CRN | Instructor | Seats | Capacity | Cross-listed |\n")
	b.WriteString("|---|---|---|---|---:|---:|---|\n")
	for _, g := range r.Underenrolled {
		cross := "no"
		if g.CrossListed {
			cross = fmt.Sprintf("yes (%d sections)", g.Sections)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %d | %s |\n",
			cellEscape(g.Code), cellEscape(g.Name), cellEscape(g.CRN), cellEscape(g.Instructor),
			g.Seats, g.Capacity, cross)
	}
	return b.String()
}

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.Table))
	sanitize = bluemonday.UGCPolicy()
)

// HTML renders the report to sanitized HTML.
func (r Report) HTML() ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(r.Markdown()), &body); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	safe := sanitize.SanitizeBytes(body.Bytes())

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	out.WriteString(html.EscapeString(r.Title))
	out.WriteString("</title></head><body>\n")
	out.Write(safe)
	out.WriteString("</body></html>\n")
	return out.Bytes(), nil
}

func cellEscape(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return escapeText(strings.ReplaceAll(s, "|", "\\|"))
}

// escapeText neutralises characters Markdown would treat as markup.
func escapeText(s string) string {
	r := strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
