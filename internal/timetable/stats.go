package timetable

import (
	"net/http"
	"slices"
	"sync"
	"time"
)

// lookupSample is one timetable round trip. status 0 means the request never
// got a response.
type lookupSample struct {
	at      time.Time
	subject string
	status  int
	ms      int64
}

func (s lookupSample) failed() bool { return s.status != http.StatusOK }

// SubjectStats summarises the lookups of one subject code.
type SubjectStats struct {
	Lookups    int     `json:"lookups"`
	Failures   int     `json:"failures"`
	AvgMs      float64 `json:"avg_ms"`
	LastStatus int     `json:"last_status"`
}

// StatsSnapshot aggregates the lookups inside the window. Latency figures
// cover every round trip, failed ones included.
type StatsSnapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`

	ByStatus  map[int]int             `json:"by_status,omitempty"`
	BySubject map[string]SubjectStats `json:"by_subject,omitempty"`
}

// LatencyStats keeps a rolling window of catalog lookups.
type LatencyStats struct {
	mu      sync.Mutex
	samples []lookupSample
	window  time.Duration
	now     func() time.Time
}

func NewLatencyStats(window time.Duration) *LatencyStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LatencyStats{window: window, now: time.Now}
}

// Record adds one lookup of subject that ended with status after d.
func (s *LatencyStats) Record(subject string, status int, d time.Duration) {
	ms := max(d.Milliseconds(), 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.expireLocked(now)
	s.samples = append(s.samples, lookupSample{at: now, subject: subject, status: status, ms: ms})
}

func (s *LatencyStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.now())

	var snap StatsSnapshot
	if len(s.samples) == 0 {
		return snap
	}
	snap.ByStatus = make(map[int]int)
	snap.BySubject = make(map[string]SubjectStats)

	durations := make([]int64, len(s.samples))
	var total int64
	subjectMs := make(map[string]int64)
	for i, sm := range s.samples {
		durations[i] = sm.ms
		total += sm.ms
		snap.ByStatus[sm.status]++

		st := snap.BySubject[sm.subject]
		st.Lookups++
		st.LastStatus = sm.status
		if sm.failed() {
			st.Failures++
			snap.Failures++
		}
		snap.BySubject[sm.subject] = st
		subjectMs[sm.subject] += sm.ms
	}
	for subj, st := range snap.BySubject {
		st.AvgMs = float64(subjectMs[subj]) / float64(st.Lookups)
		snap.BySubject[subj] = st
	}

	slices.Sort(durations)
	snap.Count = len(durations)
	snap.MinMs = durations[0]
	snap.MaxMs = durations[len(durations)-1]
	snap.AvgMs = float64(total) / float64(len(durations))
	snap.P50Ms = percentile(durations, 50)
	snap.P95Ms = percentile(durations, 95)
	snap.P99Ms = percentile(durations, 99)
	return snap
}

// expireLocked drops samples older than the window. Samples are appended in
// time order, so the expired ones form a prefix.
func (s *LatencyStats) expireLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.samples) && s.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.samples = slices.Delete(s.samples, 0, i)
	}
}

// percentile interpolates between the nearest ranks of sorted.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	rank := float64(len(sorted)-1) * pct / 100
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
