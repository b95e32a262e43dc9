// Package timetable looks up catalog sections for a subject and term.
package timetable

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgallion1/enrollgest/internal/course"
)

// DefaultURL is the public class-section search endpoint.
const DefaultURL = "https://apps.es.vt.edu/ssb/HZSKVTSC.P_ProcRequest"

// CatalogSource returns every catalog section for a subject in a term.
type CatalogSource interface {
	Lookup(ctx context.Context, subject, term string) ([]course.CatalogRecord, error)
}

// Client queries the timetable search form.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	stats      *LatencyStats
	log        *slog.Logger
}

// ClientOptions configures a Client. Zero values take defaults.
type ClientOptions struct {
	URL         string
	Timeout     time.Duration
	MinInterval time.Duration
	StatsWindow time.Duration
}

func NewClient(opts ClientOptions, log *slog.Logger) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Client{
		url: opts.URL,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		stats:   NewLatencyStats(opts.StatsWindow),
		log:     log,
	}
}

// Stats returns the client's latency window.
func (c *Client) Stats() *LatencyStats {
	return c.stats
}

// Lookup posts the search form for all sections (open or not) of subject in
// term and parses the result table.
func (c *Client) Lookup(ctx context.Context, subject, term string) ([]course.CatalogRecord, error) {
	if subject == "" {
		return nil, fmt.Errorf("timetable: subject code is required")
	}
	if err := ValidateTerm(term); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("timetable rate limit: %w", err)
	}

	form := searchForm(subject, term)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.stats.Record(subject, 0, time.Since(start))
		return nil, fmt.Errorf("timetable request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	c.stats.Record(subject, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timetable status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	records, err := ParseSections(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("timetable %s %s: %w", subject, term, err)
	}
	c.log.Info("timetable lookup", "subject", subject, "term", term, "sections", len(records),
		"duration_ms", time.Since(start).Milliseconds())
	return records, nil
}

func searchForm(subject, term string) url.Values {
	v := url.Values{}
	v.Set("BTN_PRESSED", "FIND class sections")
	v.Set("CAMPUS", "0")
	v.Set("SCHDTYPE", "%")
	v.Set("TERMYEAR", term)
	v.Set("subj_code", subject)
	v.Set("CORE_CODE", "AR%")
	v.Set("open_only", "")
	v.Set("sess_code", "%")
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
