package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dgallion1/enrollgest/internal/blobstore"
)

// Scheduler runs periodic housekeeping with robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	tasks     *TaskStore
	store     blobstore.BlobStore
	resultTTL time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewScheduler creates a scheduler. A zero resultTTL disables the retention
// sweep.
func NewScheduler(tasks *TaskStore, store blobstore.BlobStore, resultTTL time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelDebug))))
	return &Scheduler{
		cron:      c,
		tasks:     tasks,
		store:     store,
		resultTTL: resultTTL,
		log:       log,
		now:       time.Now,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 5m", s.cleanupTasks); err != nil {
		return err
	}
	if s.resultTTL > 0 && s.store != nil {
		if _, err := s.cron.AddFunc("@hourly", s.sweepResults); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.log.Info("cron scheduler started", slog.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop stops scheduling; the returned context is done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("cron scheduler stopping")
	return s.cron.Stop()
}

func (s *Scheduler) cleanupTasks() {
	if n := s.tasks.Cleanup(s.now()); n > 0 {
		s.log.Info("expired tasks removed", slog.Int("removed", n))
	}
}

func (s *Scheduler) sweepResults() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	removed, err := SweepResults(ctx, s.store, s.now().Add(-s.resultTTL))
	if err != nil {
		s.log.Error("result sweep failed", slog.Any("error", err))
		return
	}
	s.log.Info("result sweep completed", slog.Int("removed", removed))
}

// SweepResults deletes stored objects last modified before cutoff.
func SweepResults(ctx context.Context, store blobstore.BlobStore, cutoff time.Time) (int, error) {
	objects, err := store.List(ctx, "")
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, obj := range objects {
		if !obj.ModTime.Before(cutoff) {
			continue
		}
		if err := store.Delete(ctx, obj.Key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
