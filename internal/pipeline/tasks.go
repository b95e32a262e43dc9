package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/enrollgest/internal/export"
	"github.com/dgallion1/enrollgest/internal/reconcile"
)

// TaskStatus represents the state of a processing task.
type TaskStatus string

const (
	StatusQueued     TaskStatus = "queued"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusNotFound   TaskStatus = "not_found"
)

// FileInput is one uploaded timetable PDF and the catalog query it pairs with.
type FileInput struct {
	Filename  string
	Subject   string
	Term      string
	UploadKey string
}

// Task tracks a batch of PDFs processed together.
type Task struct {
	mu sync.Mutex

	ID        string
	Status    TaskStatus
	Progress  float64
	CreatedAt time.Time
	UpdatedAt time.Time

	files       []FileInput
	results     []export.FileSummary
	resultFiles []string
	stats       reconcile.Stats
	graduate    int
	under       int
	err         string
}

// NewTask returns a queued task for files.
func NewTask(files []FileInput) *Task {
	now := time.Now()
	return &Task{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		files:     append([]FileInput(nil), files...),
	}
}

// Files returns the task's inputs in submission order.
func (t *Task) Files() []FileInput {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]FileInput(nil), t.files...)
}

// AddFile appends an input. Only valid before the task is submitted.
func (t *Task) AddFile(f FileInput) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = append(t.files, f)
}

// SetStatus updates task status atomically.
func (t *Task) SetStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = status
	t.UpdatedAt = time.Now()
}

// SetProgress records done of total files as a percentage.
func (t *Task) SetProgress(done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if total > 0 {
		t.Progress = float64(done) / float64(total) * 100
	}
	t.UpdatedAt = time.Now()
}

// Complete stores the final results and marks the task completed.
func (t *Task) Complete(results []export.FileSummary, stats reconcile.Stats, graduate, underenrolled int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = results
	t.stats = stats
	t.graduate = graduate
	t.under = underenrolled
	t.Status = StatusCompleted
	t.Progress = 100
	t.UpdatedAt = time.Now()
}

// Fail marks the task failed with msg.
func (t *Task) Fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = msg
	t.Status = StatusFailed
	t.UpdatedAt = time.Now()
}

// AddResultFile records the blob key of a generated file.
func (t *Task) AddResultFile(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resultFiles = append(t.resultFiles, key)
	t.UpdatedAt = time.Now()
}

// Terminal reports whether the task has finished.
func (t *Task) Terminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// TaskResult is the outcome of a completed task.
type TaskResult struct {
	Files         []export.FileSummary `json:"files"`
	ResultFiles   []string             `json:"result_files"`
	Stats         reconcile.Stats      `json:"stats"`
	Graduate      int                  `json:"graduate_courses"`
	Underenrolled int                  `json:"underenrolled_courses"`
}

// TaskSnapshot is a read-only, JSON-safe copy of task state.
type TaskSnapshot struct {
	ID        string      `json:"task_id"`
	Status    TaskStatus  `json:"status"`
	Progress  float64     `json:"progress"`
	Result    *TaskResult `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the task state.
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := TaskSnapshot{
		ID:        t.ID,
		Status:    t.Status,
		Progress:  t.Progress,
		Error:     t.err,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Status == StatusCompleted {
		files := append([]export.FileSummary{}, t.results...)
		keys := append([]string{}, t.resultFiles...)
		snap.Result = &TaskResult{
			Files:         files,
			ResultFiles:   keys,
			Stats:         t.stats,
			Graduate:      t.graduate,
			Underenrolled: t.under,
		}
	}
	return snap
}

// TaskStore is a thread-safe in-memory task registry with TTL eviction.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
	ttl   time.Duration
}

func NewTaskStore(ttl time.Duration) *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*Task),
		ttl:   ttl,
	}
}

func (s *TaskStore) Put(task *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

func (s *TaskStore) Get(id string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

// Len returns the number of tracked tasks.
func (s *TaskStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Cleanup removes finished tasks idle for longer than the TTL and returns
// how many were removed.
func (s *TaskStore) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, task := range s.tasks {
		if !task.Terminal() {
			continue
		}
		task.mu.Lock()
		idle := now.Sub(task.UpdatedAt)
		task.mu.Unlock()
		if idle > s.ttl {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}
