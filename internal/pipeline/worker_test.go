package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/enrollgest/internal/blobstore"
	"github.com/dgallion1/enrollgest/internal/course"
	"github.com/dgallion1/enrollgest/internal/export"
	"github.com/dgallion1/enrollgest/internal/timetable"
)

type cell struct {
	text   string
	x0, x1 float64
}

var headerCells = []cell{
	{"CRN", 10, 30}, {"Course", 50, 80}, {"Title", 100, 130}, {"Schedule Type", 160, 220},
	{"Modality", 240, 280}, {"Cr Hrs", 300, 325}, {"Seats", 340, 365}, {"Capacity", 380, 420},
	{"Instructor", 440, 490}, {"Days", 510, 535}, {"Begin", 550, 575}, {"End", 590, 610},
	{"Location", 630, 670}, {"on", 690, 700},
}

func tokens(y float64, cells ...cell) []course.Token {
	out := make([]course.Token, len(cells))
	for i, c := range cells {
		out[i] = course.Token{X0: c.x0, X1: c.x1, Y0: y, Y1: y + 10, Text: c.text}
	}
	return out
}

// timetableDoc builds a one-page document with a header and one row per
// {crn, seats, capacity} triple.
func timetableDoc(name string, rows ...[3]string) *course.Document {
	page := tokens(100, headerCells...)
	for i, r := range rows {
		page = append(page, tokens(float64(120+20*i), cell{r[0], 10, 30}, cell{r[1], 340, 360}, cell{r[2], 385, 395})...)
	}
	return &course.Document{Filename: name, Pages: []course.Page{{Index: 0, Width: 792, Height: 612, Tokens: page}}}
}

type fakeCatalog struct {
	mu       sync.Mutex
	sections map[string][]course.CatalogRecord
	errs     []error
	calls    int
}

func (f *fakeCatalog) Lookup(ctx context.Context, subject, term string) ([]course.CatalogRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.sections[subject], nil
}

func csSections() map[string][]course.CatalogRecord {
	return map[string][]course.CatalogRecord{
		"CS": {
			{CRN: "12345", Code: "CS 5000", Name: "Foo", Instructor: "Smith"},
			{CRN: "23456", Code: "CS 5000", Name: "Foo", Instructor: "Jones"},
			{CRN: "34567", Code: "CS 3000", Name: "Bar"},
		},
	}
}

func newTestWorker(t *testing.T, catalog timetable.CatalogSource, formats ...export.Format) (*Worker, blobstore.BlobStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := blobstore.NewLocalStore(dir)
	require.NoError(t, err)
	w := NewWorker(Deps{
		Catalog:            catalog,
		Store:              store,
		Formats:            formats,
		MaxConcurrentFiles: 2,
	}, nil)
	w.backoff = func(int) time.Duration { return 0 }
	w.now = func() time.Time { return time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC) }
	return w, store, dir
}

func stubParse(rows ...[3]string) func(string, []byte) (*course.Document, error) {
	return func(filename string, data []byte) (*course.Document, error) {
		return timetableDoc(filename, rows...), nil
	}
}

func TestProcessDocument(t *testing.T) {
	w, _, _ := newTestWorker(t, &fakeCatalog{sections: csSections()})
	doc := timetableDoc("cs.pdf", [3]string{"12345", "2", "10"}, [3]string{"23456", "3", "15"})

	res, err := w.ProcessDocument(context.Background(), doc, "CS", "202409")
	require.NoError(t, err)
	require.Len(t, res.Extraction.Records, 2)
	require.Len(t, res.Reconciled.Merged, 2)
	assert.Len(t, res.Graduate, 2)

	st := res.Reconciled.Stats
	assert.Equal(t, 3, st.TotalTimetableCourses)
	assert.Equal(t, 2, st.TotalPDFCourses)
	assert.Equal(t, 2, st.TotalMergedCourses)
	assert.Equal(t, []string{"34567"}, res.Reconciled.UnmatchedCatalogCRNs)
}

func TestProcessDocument_RetriesTransientCatalogErrors(t *testing.T) {
	cat := &fakeCatalog{
		sections: csSections(),
		errs: []error{
			&timetable.RetryableError{StatusCode: 503},
			&timetable.RetryableError{StatusCode: 429},
		},
	}
	w, _, _ := newTestWorker(t, cat)

	res, err := w.ProcessDocument(context.Background(), timetableDoc("cs.pdf", [3]string{"12345", "2", "10"}), "CS", "202409")
	require.NoError(t, err)
	assert.Equal(t, 3, cat.calls)
	assert.Len(t, res.Reconciled.Merged, 1)
}

func TestProcessDocument_RetriesExhausted(t *testing.T) {
	cat := &fakeCatalog{errs: []error{
		&timetable.RetryableError{StatusCode: 503},
		&timetable.RetryableError{StatusCode: 503},
		&timetable.RetryableError{StatusCode: 503},
		&timetable.RetryableError{StatusCode: 503},
	}}
	w, _, _ := newTestWorker(t, cat)

	_, err := w.ProcessDocument(context.Background(), timetableDoc("cs.pdf"), "CS", "202409")
	require.Error(t, err)
	assert.True(t, IsRetryable(err), "wrapped error stays retryable: %v", err)
	assert.Equal(t, MaxRetries, cat.calls)
}

func TestProcessDocument_NonRetryableFailsImmediately(t *testing.T) {
	cat := &fakeCatalog{errs: []error{errors.New("bad request")}}
	w, _, _ := newTestWorker(t, cat)

	_, err := w.ProcessDocument(context.Background(), timetableDoc("cs.pdf"), "CS", "202409")
	require.Error(t, err)
	assert.Equal(t, 1, cat.calls)
}

func TestProcessDocument_NoHeaderStillReconciles(t *testing.T) {
	w, _, _ := newTestWorker(t, &fakeCatalog{sections: csSections()})
	doc := &course.Document{Filename: "blank.pdf", Pages: []course.Page{{Index: 0}}}

	res, err := w.ProcessDocument(context.Background(), doc, "CS", "202409")
	require.NoError(t, err)
	assert.Empty(t, res.Reconciled.Merged)
	assert.Equal(t, 3, res.Reconciled.Stats.TotalTimetableCourses)
}

func putUpload(t *testing.T, store blobstore.BlobStore, taskID, name string) string {
	t.Helper()
	key := blobstore.UploadKey(taskID, name)
	_, err := store.Put(context.Background(), key, strings.NewReader("%PDF"), "application/pdf")
	require.NoError(t, err)
	return key
}

func assertUploadsDeleted(t *testing.T, store blobstore.BlobStore, task *Task) {
	t.Helper()
	for _, f := range task.Files() {
		_, _, err := store.Get(context.Background(), f.UploadKey)
		assert.ErrorIs(t, err, blobstore.ErrNotFound, "upload %s should be deleted", f.UploadKey)
	}
}

func TestProcess_TaskLifecycle(t *testing.T) {
	w, store, _ := newTestWorker(t, &fakeCatalog{sections: csSections()},
		export.FormatCSV, export.FormatXLSX, export.FormatHTML, export.FormatDOCX)
	w.parse = func(filename string, data []byte) (*course.Document, error) {
		if filename == "bad.pdf" {
			return nil, fmt.Errorf("open pdf %s: malformed", filename)
		}
		return timetableDoc(filename, [3]string{"12345", "2", "10"}, [3]string{"23456", "3", "15"}), nil
	}

	task := NewTask(nil)
	task.files = []FileInput{
		{Filename: "cs.pdf", Subject: "CS", Term: "202409", UploadKey: putUpload(t, store, task.ID, "cs.pdf")},
		{Filename: "bad.pdf", Subject: "CS", Term: "202409", UploadKey: putUpload(t, store, task.ID, "bad.pdf")},
	}

	w.Process(context.Background(), task)

	snap := task.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status, snap.Error)
	assert.Equal(t, 100.0, snap.Progress)

	files := snap.Result.Files
	require.Len(t, files, 2)
	assert.Equal(t, "cs.pdf", files[0].File, "results keep submission order")
	assert.Equal(t, "bad.pdf", files[1].File)
	assert.Empty(t, files[0].Error)
	assert.Equal(t, 2, files[0].Courses)
	assert.Contains(t, files[1].Error, "malformed")
	assert.Equal(t, 2, snap.Result.Graduate)
	assert.Equal(t, 1, snap.Result.Underenrolled)

	var want []string
	for _, suffix := range []string{
		"merged-courses.csv", "all-graduate-courses.csv", "underenrolled-courses.csv",
		"enrollment.xlsx", "report.html", "report.docx",
	} {
		want = append(want, task.ID+"/20240901-120000-"+suffix)
	}
	require.Equal(t, want, snap.Result.ResultFiles)

	rc, _, err := store.Get(context.Background(), snap.Result.ResultFiles[2])
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Contains(t, string(data), ",5,25,true,2", "cross-listed group totals")

	assertUploadsDeleted(t, store, task)
}

// cancelAwareStore fails deletes on a cancelled context, as S3 does.
type cancelAwareStore struct {
	blobstore.BlobStore
}

func (s cancelAwareStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.BlobStore.Delete(ctx, key)
}

func TestProcess_CancelledTaskStillDeletesUploads(t *testing.T) {
	w, store, _ := newTestWorker(t, &fakeCatalog{sections: csSections()})
	w.store = cancelAwareStore{store}
	w.parse = stubParse([3]string{"12345", "2", "10"})

	task := NewTask(nil)
	task.files = []FileInput{{Filename: "cs.pdf", Subject: "CS", Term: "202409", UploadKey: putUpload(t, store, task.ID, "cs.pdf")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Process(ctx, task)

	assert.True(t, task.Terminal())
	assertUploadsDeleted(t, store, task)
}

func TestProcess_NoGraduateCoursesWritesNoReports(t *testing.T) {
	w, store, _ := newTestWorker(t, &fakeCatalog{sections: csSections()})
	w.parse = stubParse([3]string{"34567", "1", "10"})
	task := NewTask(nil)
	task.files = []FileInput{{Filename: "cs.pdf", Subject: "CS", Term: "202409", UploadKey: putUpload(t, store, task.ID, "cs.pdf")}}

	w.Process(context.Background(), task)

	snap := task.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.Len(t, snap.Result.ResultFiles, 1)
	assert.True(t, strings.HasSuffix(snap.Result.ResultFiles[0], "merged-courses.csv"))
}

func TestMetrics_Handler(t *testing.T) {
	w, store, _ := newTestWorker(t, &fakeCatalog{sections: csSections()})
	w.parse = stubParse([3]string{"12345", "2", "10"})
	task := NewTask(nil)
	task.files = []FileInput{{Filename: "cs.pdf", Subject: "CS", Term: "202409", UploadKey: putUpload(t, store, task.ID, "cs.pdf")}}
	w.Process(context.Background(), task)

	rec := httptest.NewRecorder()
	w.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, line := range []string{
		`enrollgest_tasks_total{status="completed"} 1`,
		`enrollgest_files_total{outcome="ok"} 1`,
		`enrollgest_records_total{stage="merged"} 1`,
		"enrollgest_match_rate_bucket",
	} {
		assert.Contains(t, body, line)
	}
}

func TestOrchestrator_RunsSubmittedTask(t *testing.T) {
	w, store, _ := newTestWorker(t, &fakeCatalog{sections: csSections()})
	w.parse = stubParse([3]string{"12345", "2", "10"})
	orch := NewOrchestrator(OrchestratorConfig{WorkerCount: 2, MaxQueueSize: 4}, w, nil)
	orch.Start(context.Background())
	defer orch.Stop()

	task := NewTask(nil)
	task.files = []FileInput{{Filename: "cs.pdf", Subject: "CS", Term: "202409", UploadKey: putUpload(t, store, task.ID, "cs.pdf")}}
	require.NoError(t, orch.Submit(task))
	require.Same(t, task, orch.GetTask(task.ID))

	require.Eventually(t, task.Terminal, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, StatusCompleted, task.Snapshot().Status)
}

func TestOrchestrator_QueueFull(t *testing.T) {
	w, _, _ := newTestWorker(t, &fakeCatalog{})
	orch := NewOrchestrator(OrchestratorConfig{WorkerCount: 1, MaxQueueSize: 1}, w, nil)

	require.NoError(t, orch.Submit(NewTask(nil)))
	second := NewTask(nil)
	require.Error(t, orch.Submit(second))
	assert.Equal(t, StatusFailed, second.Snapshot().Status)
	assert.Equal(t, 1, orch.QueueDepth())
}

func TestSweepResults(t *testing.T) {
	dir := t.TempDir()
	store, err := blobstore.NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()
	for _, key := range []string{"old/a.csv", "new/b.csv"} {
		_, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), "")
		require.NoError(t, err)
	}
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old", "a.csv"), past, past))

	removed, err := SweepResults(ctx, store, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	left, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new/b.csv", left[0].Key)
}

func TestBackoff_Grows(t *testing.T) {
	for attempt := range 6 {
		d := Backoff(attempt)
		base := min(time.Duration(1<<uint(attempt))*time.Second, 30*time.Second)
		assert.GreaterOrEqual(t, d, base, "attempt %d", attempt)
		assert.Less(t, d, base+base/2, "attempt %d", attempt)
	}
}
