package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/enrollgest/internal/course"
)

func catalog(crn, code, name string) course.CatalogRecord {
	return course.CatalogRecord{CRN: crn, Code: code, Name: name, Instructor: "Staff"}
}

func TestReconcile_SingleMatch(t *testing.T) {
	pdf := []course.ExtractedRecord{{CRN: "12345", Seats: 0, Capacity: 20}}
	cat := []course.CatalogRecord{catalog("12345", "CS-5000", "Foo")}

	res := NewReconciler(nil).Reconcile(pdf, cat)

	require.Len(t, res.Merged, 1)
	m := res.Merged[0]
	assert.Equal(t, "CS-5000", m.Code)
	assert.Equal(t, "Foo", m.Name)
	assert.Equal(t, "Staff", m.Instructor)
	assert.Equal(t, 0, m.Seats)
	assert.Equal(t, 20, m.Capacity)
	assert.Equal(t, 1.0, res.Stats.MatchRate)
	assert.Empty(t, res.UnmatchedCatalogCRNs)
	assert.Empty(t, res.UnmatchedPDFCRNs)
}

func TestReconcile_CatalogWithoutPDFLine(t *testing.T) {
	pdf := []course.ExtractedRecord{{CRN: "12345", Seats: 0, Capacity: 20}}
	cat := []course.CatalogRecord{catalog("54321", "CS-5000", "Foo")}

	res := NewReconciler(nil).Reconcile(pdf, cat)

	assert.Empty(t, res.Merged)
	assert.Equal(t, []string{"54321"}, res.UnmatchedCatalogCRNs)
	assert.Equal(t, []string{"12345"}, res.UnmatchedPDFCRNs)
	assert.Equal(t, 0.0, res.Stats.MatchRate)
	assert.Equal(t, 1, res.Stats.UnmatchedCRNs)
}

func TestReconcile_EmptyCatalog(t *testing.T) {
	res := NewReconciler(nil).Reconcile([]course.ExtractedRecord{{CRN: "12345", Seats: 1, Capacity: 2}}, nil)
	assert.Equal(t, 0.0, res.Stats.MatchRate)
	assert.Equal(t, 0, res.Stats.TotalTimetableCourses)
	assert.NotNil(t, res.Merged)
}

func TestReconcile_LastPDFRecordWins(t *testing.T) {
	pdf := []course.ExtractedRecord{
		{CRN: "12345", Seats: 1, Capacity: 20},
		{CRN: "12345", Seats: 7, Capacity: 30},
	}
	res := NewReconciler(nil).Reconcile(pdf, []course.CatalogRecord{catalog("12345", "CS-5000", "Foo")})

	require.Len(t, res.Merged, 1)
	assert.Equal(t, 7, res.Merged[0].Seats)
	assert.Equal(t, 30, res.Merged[0].Capacity)
}

func TestReconcile_DuplicateCatalogCRNMergesOnce(t *testing.T) {
	pdf := []course.ExtractedRecord{{CRN: "12345", Seats: 1, Capacity: 20}}
	cat := []course.CatalogRecord{
		catalog("12345", "CS-5000", "Foo"),
		catalog("12345", "CS-5000", "Foo again"),
	}

	res := NewReconciler(nil).Reconcile(pdf, cat)

	require.Len(t, res.Merged, 1)
	assert.Equal(t, "Foo", res.Merged[0].Name)
	assert.Equal(t, 1, res.Stats.TimetableErrors)
}

func TestReconcile_SecondGateRejectsMissingCode(t *testing.T) {
	pdf := []course.ExtractedRecord{{CRN: "12345", Seats: 1, Capacity: 20}}
	res := NewReconciler(nil).Reconcile(pdf, []course.CatalogRecord{catalog("12345", "", "Foo")})

	assert.Empty(t, res.Merged)
	assert.Equal(t, 1, res.Stats.MergeRejected)
	assert.Empty(t, res.UnmatchedCatalogCRNs)
}

func TestReconcile_InvalidPDFRecordsCounted(t *testing.T) {
	pdf := []course.ExtractedRecord{
		{CRN: "12345", Seats: 30, Capacity: 20},
		{CRN: "123", Seats: 1, Capacity: 20},
		{CRN: "23456", Seats: 1, Capacity: 20},
	}
	cat := []course.CatalogRecord{catalog("12345", "CS-5000", "Foo"), catalog("23456", "CS-5100", "Bar")}

	res := NewReconciler(nil).Reconcile(pdf, cat)

	assert.Equal(t, 2, res.Stats.PDFErrors)
	assert.Equal(t, 1, res.Stats.TotalPDFCourses)
	require.Len(t, res.Merged, 1)
	assert.Equal(t, "23456", res.Merged[0].CRN)
	assert.Equal(t, []string{"12345"}, res.UnmatchedCatalogCRNs)
}

func TestReconcile_MissingCatalogCRN(t *testing.T) {
	res := NewReconciler(nil).Reconcile(nil, []course.CatalogRecord{catalog("", "CS-5000", "Foo")})
	assert.Equal(t, 1, res.Stats.TimetableErrors)
	assert.Empty(t, res.UnmatchedCatalogCRNs)
}

func TestReconcile_StatsBounds(t *testing.T) {
	pdf := []course.ExtractedRecord{
		{CRN: "11111", Seats: 1, Capacity: 10},
		{CRN: "22222", Seats: 2, Capacity: 10},
		{CRN: "33333", Seats: 3, Capacity: 10},
	}
	cat := []course.CatalogRecord{
		catalog("11111", "CS-5000", "A"),
		catalog("22222", "CS-5000", "A"),
		catalog("44444", "CS-5100", "B"),
		catalog("55555", "CS-5200", "C"),
	}

	s := NewReconciler(nil).Reconcile(pdf, cat).Stats

	assert.GreaterOrEqual(t, s.MatchRate, 0.0)
	assert.LessOrEqual(t, s.MatchRate, 1.0)
	assert.LessOrEqual(t, s.TotalMergedCourses, min(s.TotalPDFCourses, s.TotalTimetableCourses))
	assert.Equal(t, 0.5, s.MatchRate)
	assert.Equal(t, 1, s.UniqueCourses)
	assert.Equal(t, 10.0, s.AvgCapacity)
	assert.Equal(t, 1.5, s.AvgSeatsTaken)
}

func TestReconcile_Idempotent(t *testing.T) {
	pdf := []course.ExtractedRecord{
		{CRN: "11111", Seats: 1, Capacity: 10},
		{CRN: "22222", Seats: 2, Capacity: 10},
	}
	cat := []course.CatalogRecord{catalog("22222", "CS-5000", "A"), catalog("11111", "CS-5100", "B")}
	r := NewReconciler(nil)

	a, err := json.Marshal(r.Reconcile(pdf, cat))
	require.NoError(t, err)
	b, err := json.Marshal(r.Reconcile(pdf, cat))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestCombine(t *testing.T) {
	a := Stats{TotalPDFCourses: 2, TotalTimetableCourses: 4, TotalMergedCourses: 2, AvgCapacity: 10, AvgSeatsTaken: 2}
	b := Stats{TotalPDFCourses: 1, TotalTimetableCourses: 4, TotalMergedCourses: 2, AvgCapacity: 20, AvgSeatsTaken: 4}

	got := Combine(a, b)

	assert.Equal(t, 3, got.TotalPDFCourses)
	assert.Equal(t, 8, got.TotalTimetableCourses)
	assert.Equal(t, 0.5, got.MatchRate)
	assert.Equal(t, 15.0, got.AvgCapacity)
	assert.Equal(t, 3.0, got.AvgSeatsTaken)
}
