// Command enrollctl runs the enrollment pipeline on one timetable PDF without
// the HTTP service.
//
// Usage:
//
//	enrollctl -pdf CS.pdf -subject CS -term 202409                 # live timetable
//	enrollctl -pdf CS.pdf -subject CS -term 202409 -catalog cs.csv # offline catalog
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dgallion1/enrollgest/internal/analytics"
	"github.com/dgallion1/enrollgest/internal/course"
	"github.com/dgallion1/enrollgest/internal/export"
	"github.com/dgallion1/enrollgest/internal/parser"
	"github.com/dgallion1/enrollgest/internal/pipeline"
	"github.com/dgallion1/enrollgest/internal/timetable"
)

type options struct {
	pdf      string
	subject  string
	term     string
	catalog  string
	out      string
	validate bool
}

func main() {
	var opts options
	flag.StringVar(&opts.pdf, "pdf", "", "path to the timetable PDF")
	flag.StringVar(&opts.subject, "subject", "", "subject code, e.g. CS")
	flag.StringVar(&opts.term, "term", "", "term as YYYYTT, e.g. 202409")
	flag.StringVar(&opts.catalog, "catalog", "", "catalog CSV; the live timetable is queried when empty")
	flag.StringVar(&opts.out, "out", ".", "output directory")
	flag.BoolVar(&opts.validate, "validate", false, "validate the PDF structure before parsing")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, opts, os.Stdin, os.Stdout); err != nil {
		log.Error("enrollctl failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, opts options, in io.Reader, out io.Writer) error {
	if opts.pdf == "" {
		return fmt.Errorf("-pdf is required")
	}

	stdin := bufio.NewScanner(in)
	if opts.subject == "" {
		opts.subject = prompt(stdin, out, "Subject code (e.g. CS): ")
	}
	if opts.term == "" {
		def := timetable.DefaultTerm(time.Now())
		opts.term = prompt(stdin, out, fmt.Sprintf("Term YYYYTT [%s]: ", def))
		if opts.term == "" {
			opts.term = def
		}
	}
	opts.subject = strings.ToUpper(opts.subject)
	if opts.subject == "" {
		return fmt.Errorf("subject code is required")
	}
	if err := timetable.ValidateTerm(opts.term); err != nil {
		return err
	}

	var catalog timetable.CatalogSource
	if opts.catalog != "" {
		catalog = timetable.CSVSource{Path: opts.catalog}
	} else {
		client := timetable.NewClient(timetable.ClientOptions{}, log)
		defer client.Close()
		catalog = client
	}

	f, err := os.Open(opts.pdf)
	if err != nil {
		return err
	}
	doc, err := parser.NewPDFParser(opts.validate, log).Parse(f, filepath.Base(opts.pdf))
	f.Close()
	if err != nil {
		return err
	}

	worker := pipeline.NewWorker(pipeline.Deps{Catalog: catalog}, log)
	res, err := worker.ProcessDocument(ctx, doc, opts.subject, opts.term)
	if err != nil {
		return err
	}
	under := analytics.NewAnalyzer(analytics.DefaultOptions(), log).FindUnderenrolled(res.Graduate)

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(opts.out, pipeline.MergedFile), res.Reconciled.Merged); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(opts.out, pipeline.GraduateFile), res.Graduate); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(opts.out, pipeline.UnderenrolledFile), under); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s: %d PDF records, %d rejected rows\n",
		opts.subject, timetable.TermLabel(opts.term), len(res.Extraction.Records), res.Extraction.Rejected)
	fmt.Fprintf(out, "graduate courses: %d, underenrolled: %d\n", len(res.Graduate), len(under))
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Reconciled.Stats)
}

func prompt(s *bufio.Scanner, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	if !s.Scan() {
		return ""
	}
	return strings.TrimSpace(s.Text())
}

func writeCSV[T course.MergedRecord | course.CourseGroup](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
