package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/wikipub/internal/transfer"
)

// JobStatus represents the state of a publish job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusRendering  JobStatus = "rendering"
	StatusFetching   JobStatus = "fetching"
	StatusPreserving JobStatus = "preserving"
	StatusUpdating   JobStatus = "updating"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusUnchanged  JobStatus = "unchanged"
)

// Job tracks the state of a single page publish.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	PageID string `json:"page_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	// Title overrides the page title when set.
	Title string `json:"title"`
	// Force publishes without comment markers when the current page body
	// cannot be preserved.
	Force bool `json:"force"`

	Outcome Outcome `json:"outcome"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Outcome records what a publish did to the page.
type Outcome struct {
	FromVersion int                `json:"from_version"`
	ToVersion   int                `json:"to_version"`
	Preserved   []string           `json:"preserved"`
	Dropped     []transfer.Dropped `json:"dropped"`
	Summary     string             `json:"summary"`
	Errors      []string           `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Outcome.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetVersions records the page version read and the version written.
func (j *Job) SetVersions(from, to int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outcome.FromVersion = from
	j.Outcome.ToVersion = to
	j.UpdatedAt = time.Now()
}

// SetReport records the comment preservation result.
func (j *Job) SetReport(report transfer.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outcome.Preserved = report.Preserved
	j.Outcome.Dropped = report.Dropped
	j.Outcome.Summary = report.Summary()
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw source bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw source bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	PageID   string    `json:"page_id"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`
	Outcome  Outcome   `json:"outcome"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Outcome.Errors...)
	preserved := append([]string{}, j.Outcome.Preserved...)
	dropped := append([]transfer.Dropped{}, j.Outcome.Dropped...)
	return JobSnapshot{
		ID:       j.ID,
		PageID:   j.PageID,
		Status:   j.Status,
		Phase:    j.Phase,
		Filename: j.Filename,
		Title:    j.Title,
		Outcome: Outcome{
			FromVersion: j.Outcome.FromVersion,
			ToVersion:   j.Outcome.ToVersion,
			Preserved:   preserved,
			Dropped:     dropped,
			Summary:     j.Outcome.Summary,
			Errors:      errs,
		},
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
