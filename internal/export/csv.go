// Package export renders merged course data as CSV, XLSX, HTML and DOCX.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// Format is an output file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
	FormatDOCX Format = "docx"
)

// ParseFormats reads a comma-separated format list. CSV is always included.
func ParseFormats(s string) ([]Format, error) {
	out := []Format{FormatCSV}
	seen := map[Format]bool{FormatCSV: true}
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" || seen[f] {
			continue
		}
		switch f {
		case FormatXLSX, FormatHTML, FormatDOCX:
		default:
			return nil, fmt.Errorf("unknown export format %q", f)
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

// WriteCSV writes rows with a header taken from their csv tags.
func WriteCSV[T any](w io.Writer, rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// CSVBytes is WriteCSV into memory.
func CSVBytes[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
