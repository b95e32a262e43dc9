package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dgallion1/enrollgest/internal/analytics"
	"github.com/dgallion1/enrollgest/internal/blobstore"
	"github.com/dgallion1/enrollgest/internal/course"
	"github.com/dgallion1/enrollgest/internal/export"
	"github.com/dgallion1/enrollgest/internal/parser"
	"github.com/dgallion1/enrollgest/internal/reconcile"
	"github.com/dgallion1/enrollgest/internal/table"
	"github.com/dgallion1/enrollgest/internal/timetable"
)

// Output file names, slugged into result keys.
const (
	MergedFile        = "Merged Courses.csv"
	GraduateFile      = "All Graduate Courses.csv"
	UnderenrolledFile = "Underenrolled Courses.csv"
	WorkbookFile      = "Enrollment.xlsx"
	ReportHTMLFile    = "Report.html"
	ReportDOCXFile    = "Report.docx"
)

// Deps are the collaborators a Worker needs.
type Deps struct {
	Catalog   timetable.CatalogSource
	Store     blobstore.BlobStore
	Table     table.Options
	Analytics analytics.Options
	Metrics   *Metrics

	ValidatePDF        bool
	Formats            []export.Format
	MaxConcurrentFiles int
}

// Worker runs the extraction and reconciliation flow for tasks.
type Worker struct {
	catalog    timetable.CatalogSource
	store      blobstore.BlobStore
	extractor  *table.Extractor
	reconciler *reconcile.Reconciler
	analyzer   *analytics.Analyzer
	metrics    *Metrics
	log        *slog.Logger
	tracer     trace.Tracer

	formats            []export.Format
	maxConcurrentFiles int

	parse   func(filename string, data []byte) (*course.Document, error)
	backoff func(int) time.Duration
	now     func() time.Time
}

func NewWorker(d Deps, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if d.MaxConcurrentFiles <= 0 {
		d.MaxConcurrentFiles = 1
	}
	if len(d.Formats) == 0 {
		d.Formats = []export.Format{export.FormatCSV}
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	return &Worker{
		catalog:            d.Catalog,
		store:              d.Store,
		extractor:          table.NewExtractor(d.Table, log),
		reconciler:         reconcile.NewReconciler(log),
		analyzer:           analytics.NewAnalyzer(d.Analytics, log),
		metrics:            d.Metrics,
		log:                log,
		tracer:             otel.Tracer("github.com/dgallion1/enrollgest/internal/pipeline"),
		formats:            d.Formats,
		maxConcurrentFiles: d.MaxConcurrentFiles,
		parse:              parsePDF(d.ValidatePDF, log),
		backoff:            Backoff,
		now:                time.Now,
	}
}

func parsePDF(validate bool, log *slog.Logger) func(string, []byte) (*course.Document, error) {
	return func(filename string, data []byte) (*course.Document, error) {
		p, err := parser.ForFile(filename, validate, log)
		if err != nil {
			return nil, err
		}
		return p.Parse(bytes.NewReader(data), filename)
	}
}

// DocumentResult is the outcome of one PDF.
type DocumentResult struct {
	Extraction table.Result
	Reconciled reconcile.Result
	Graduate   []course.MergedRecord
}

// ProcessDocument extracts enrollment records from doc, reconciles them with
// the catalog sections for subject and term, and filters graduate courses.
// A catalog failure fails the document.
func (w *Worker) ProcessDocument(ctx context.Context, doc *course.Document, subject, term string) (DocumentResult, error) {
	ctx, span := w.tracer.Start(ctx, "pipeline.ProcessDocument", trace.WithAttributes(
		attribute.String("file", doc.Filename),
		attribute.String("subject", subject),
		attribute.String("term", term),
	))
	defer span.End()
	log := w.log.With("file", doc.Filename, "subject", subject, "term", term)

	extraction := w.extractor.Extract(doc)
	if extraction.Skipped != nil {
		log.Warn("no enrollment table", "reason", extraction.Skipped)
	}
	w.metrics.Records.WithLabelValues("extracted").Add(float64(len(extraction.Records)))
	w.metrics.Records.WithLabelValues("rejected").Add(float64(extraction.Rejected))
	span.SetAttributes(attribute.Int("records", len(extraction.Records)))

	start := time.Now()
	sections, err := withRetry(ctx, log, w.backoff, func() ([]course.CatalogRecord, error) {
		return w.catalog.Lookup(ctx, subject, term)
	})
	w.metrics.CatalogDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog lookup failed")
		return DocumentResult{Extraction: extraction}, fmt.Errorf("catalog lookup %s %s: %w", subject, term, err)
	}

	reconciled := w.reconciler.Reconcile(extraction.Records, sections)
	w.metrics.Records.WithLabelValues("merged").Add(float64(len(reconciled.Merged)))
	w.metrics.MatchRate.Observe(reconciled.Stats.MatchRate)

	graduate := w.analyzer.FilterGraduate(reconciled.Merged)
	log.Info("document processed",
		"extracted", len(extraction.Records),
		"catalog", len(sections),
		"merged", len(reconciled.Merged),
		"graduate", len(graduate),
		"match_rate", reconciled.Stats.MatchRate,
	)
	return DocumentResult{Extraction: extraction, Reconciled: reconciled, Graduate: graduate}, nil
}

type fileOutcome struct {
	summary export.FileSummary
	result  DocumentResult
	err     error
}

// Process runs every file of a task with bounded concurrency, then saves the
// task-level outputs. One file's failure is recorded and does not stop the
// others.
func (w *Worker) Process(ctx context.Context, task *Task) {
	ctx, span := w.tracer.Start(ctx, "pipeline.Process", trace.WithAttributes(attribute.String("task_id", task.ID)))
	defer span.End()
	log := w.log.With("task_id", task.ID)

	task.SetStatus(StatusProcessing)
	files := task.Files()
	log.Info("task started", "files", len(files))

	outcomes := make([]fileOutcome, len(files))
	sem := make(chan struct{}, w.maxConcurrentFiles)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for i, f := range files {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, f FileInput) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = w.processFile(ctx, f)

			mu.Lock()
			done++
			task.SetProgress(done, len(files))
			mu.Unlock()
		}(i, f)
	}
	wg.Wait()

	summaries := make([]export.FileSummary, len(outcomes))
	var merged, graduate []course.MergedRecord
	var parts []reconcile.Stats
	for i, o := range outcomes {
		summaries[i] = o.summary
		if o.err != nil {
			log.Error("file failed", "file", o.summary.File, "error", o.err)
			w.metrics.Files.WithLabelValues("failed").Inc()
			continue
		}
		w.metrics.Files.WithLabelValues("ok").Inc()
		merged = append(merged, o.result.Reconciled.Merged...)
		graduate = append(graduate, o.result.Graduate...)
		parts = append(parts, o.result.Reconciled.Stats)
	}

	underenrolled := w.analyzer.FindUnderenrolled(graduate)

	if err := w.saveOutputs(ctx, task, summaries, merged, graduate, underenrolled); err != nil {
		log.Error("save outputs failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "save outputs failed")
		task.Fail(err.Error())
		w.metrics.Tasks.WithLabelValues(string(StatusFailed)).Inc()
		w.deleteUploads(ctx, log, files)
		return
	}
	w.deleteUploads(ctx, log, files)

	task.Complete(summaries, reconcile.Combine(parts...), len(graduate), len(underenrolled))
	w.metrics.Tasks.WithLabelValues(string(StatusCompleted)).Inc()
	log.Info("task completed", "graduate", len(graduate), "underenrolled", len(underenrolled))
}

func (w *Worker) processFile(ctx context.Context, f FileInput) fileOutcome {
	out := fileOutcome{summary: export.FileSummary{File: f.Filename, Subject: f.Subject, Term: f.Term}}
	fail := func(err error) fileOutcome {
		out.err = err
		out.summary.Error = err.Error()
		return out
	}

	rc, _, err := w.store.Get(ctx, f.UploadKey)
	if err != nil {
		return fail(fmt.Errorf("load upload: %w", err))
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fail(fmt.Errorf("read upload: %w", err))
	}

	doc, err := w.parse(f.Filename, data)
	if err != nil {
		return fail(err)
	}

	res, err := w.ProcessDocument(ctx, doc, f.Subject, f.Term)
	if err != nil {
		return fail(err)
	}
	out.result = res
	out.summary.Courses = len(res.Reconciled.Merged)
	out.summary.Stats = res.Reconciled.Stats
	return out
}

func (w *Worker) saveOutputs(ctx context.Context, task *Task, summaries []export.FileSummary,
	merged, graduate []course.MergedRecord, underenrolled []course.CourseGroup) error {
	at := w.now()
	save := func(name string, data []byte, contentType string) error {
		key := blobstore.ResultKey(task.ID, name, at)
		if _, err := w.store.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
		task.AddResultFile(key)
		return nil
	}
	saveCSV := func(name string, data []byte, err error) error {
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		return save(name, data, "text/csv")
	}

	if len(merged) > 0 {
		data, err := export.CSVBytes(merged)
		if err := saveCSV(MergedFile, data, err); err != nil {
			return err
		}
	}
	if len(graduate) > 0 {
		data, err := export.CSVBytes(graduate)
		if err := saveCSV(GraduateFile, data, err); err != nil {
			return err
		}
		if len(underenrolled) > 0 {
			data, err := export.CSVBytes(underenrolled)
			if err := saveCSV(UnderenrolledFile, data, err); err != nil {
				return err
			}
		}
	}

	report := export.Report{
		Title:         fmt.Sprintf("Enrollment report %s", task.ID),
		Files:         summaries,
		Underenrolled: underenrolled,
	}
	for _, format := range w.formats {
		var (
			name, contentType string
			data              []byte
			err               error
		)
		switch format {
		case export.FormatXLSX:
			name, contentType = WorkbookFile, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			data, err = export.Workbook{Merged: merged, Graduate: graduate, Underenrolled: underenrolled}.XLSX()
		case export.FormatHTML:
			name, contentType = ReportHTMLFile, "text/html; charset=utf-8"
			data, err = report.HTML()
		case export.FormatDOCX:
			name, contentType = ReportDOCXFile, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
			data, err = report.DOCX()
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := save(name, data, contentType); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) deleteUploads(ctx context.Context, log *slog.Logger, files []FileInput) {
	// Uploads go even when shutdown cancelled the task.
	ctx = context.WithoutCancel(ctx)
	for _, f := range files {
		if f.UploadKey == "" {
			continue
		}
		if err := w.store.Delete(ctx, f.UploadKey); err != nil {
			log.Error("delete upload failed", "key", f.UploadKey, "error", err)
		}
	}
}
