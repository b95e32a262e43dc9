package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/enrollgest/internal/course"
)

var mergedColumns = []string{
	"crn", "code", "name", "lecture_type", "modality", "credits", "instructor",
	"days", "start_time", "end_time", "location", "exam_type", "seats", "capacity",
}

func mergedRow(m course.MergedRecord) []any {
	return []any{
		m.CRN, m.Code, m.Name, m.LectureType, m.Modality, m.Credits, m.Instructor,
		m.Days, m.StartTime, m.EndTime, m.Location, m.ExamType, m.Seats, m.Capacity,
	}
}

// Workbook is the spreadsheet view of one task.
type Workbook struct {
	Merged        []course.MergedRecord
	Graduate      []course.MergedRecord
	Underenrolled []course.CourseGroup
}

// XLSX renders the workbook with one sheet per section.
func (wb Workbook) XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", "Merged"); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}
	if err := writeSheet(f, "Merged", mergedColumns, rowsOf(wb.Merged), bold); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet("Graduate"); err != nil {
		return nil, fmt.Errorf("xlsx new sheet: %w", err)
	}
	if err := writeSheet(f, "Graduate", mergedColumns, rowsOf(wb.Graduate), bold); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet("Underenrolled"); err != nil {
		return nil, fmt.Errorf("xlsx new sheet: %w", err)
	}
	groupColumns := append(append([]string{}, mergedColumns...), "cross_listed", "sections")
	groupRows := make([][]any, len(wb.Underenrolled))
	for i, g := range wb.Underenrolled {
		groupRows[i] = append(mergedRow(g.MergedRecord), g.CrossListed, g.Sections)
	}
	if err := writeSheet(f, "Underenrolled", groupColumns, groupRows, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func rowsOf(records []course.MergedRecord) [][]any {
	out := make([][]any, len(records))
	for i, m := range records {
		out[i] = mergedRow(m)
	}
	return out
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("xlsx %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("xlsx %s header style: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
