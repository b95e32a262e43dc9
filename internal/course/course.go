package course

// Token is a positioned text fragment from one PDF page.
// Coordinates use a top-left origin: y grows down the page.
type Token struct {
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	Text string  `json:"text"`
	Page int     `json:"page"` // 0-based page index
}

// Page is the token stream of a single page, in reader order.
type Page struct {
	Index  int
	Width  float64
	Height float64
	Tokens []Token
}

// Document is a parsed PDF as a sequence of pages.
type Document struct {
	Filename string
	Pages    []Page
}

// ExtractedRecord is one enrollment line recovered from a PDF table.
type ExtractedRecord struct {
	CRN      string `json:"crn" csv:"crn"`
	Seats    int    `json:"seats" csv:"seats"`
	Capacity int    `json:"capacity" csv:"capacity"`
}

// CatalogRecord is section metadata supplied by the timetable service.
type CatalogRecord struct {
	CRN         string `json:"crn" csv:"crn"`
	Code        string `json:"code" csv:"code"`
	Name        string `json:"name" csv:"name"`
	LectureType string `json:"lecture_type" csv:"lecture_type"`
	Modality    string `json:"modality" csv:"modality"`
	Credits     string `json:"credits" csv:"credits"`
	Instructor  string `json:"instructor" csv:"instructor"`
	Days        string `json:"days" csv:"days"`
	StartTime   string `json:"start_time" csv:"start_time"`
	EndTime     string `json:"end_time" csv:"end_time"`
	Location    string `json:"location" csv:"location"`
	ExamType    string `json:"exam_type" csv:"exam_type"`
}

// MergedRecord is a catalog record enriched with PDF enrollment figures.
// Field order is the export column order.
type MergedRecord struct {
	CRN         string `json:"crn" csv:"crn"`
	Code        string `json:"code" csv:"code"`
	Name        string `json:"name" csv:"name"`
	LectureType string `json:"lecture_type" csv:"lecture_type"`
	Modality    string `json:"modality" csv:"modality"`
	Credits     string `json:"credits" csv:"credits"`
	Instructor  string `json:"instructor" csv:"instructor"`
	Days        string `json:"days" csv:"days"`
	StartTime   string `json:"start_time" csv:"start_time"`
	EndTime     string `json:"end_time" csv:"end_time"`
	Location    string `json:"location" csv:"location"`
	ExamType    string `json:"exam_type" csv:"exam_type"`
	Seats       int    `json:"seats" csv:"seats"`
	Capacity    int    `json:"capacity" csv:"capacity"`
}

// Merge combines a catalog record with the matching PDF record.
func Merge(c CatalogRecord, r ExtractedRecord) MergedRecord {
	return MergedRecord{
		CRN:         c.CRN,
		Code:        c.Code,
		Name:        c.Name,
		LectureType: c.LectureType,
		Modality:    c.Modality,
		Credits:     c.Credits,
		Instructor:  c.Instructor,
		Days:        c.Days,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		Location:    c.Location,
		ExamType:    c.ExamType,
		Seats:       r.Seats,
		Capacity:    r.Capacity,
	}
}

// CourseGroup is an underenrolled course identity (code, name). The embedded
// record is the group's first section with seats and capacity replaced by
// group totals.
type CourseGroup struct {
	MergedRecord
	CrossListed bool `json:"cross_listed" csv:"cross_listed"`
	Sections    int  `json:"sections" csv:"sections"`
}
