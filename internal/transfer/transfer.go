package transfer

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkreview/internal/blob"
	"linkreview/internal/observability"
	"linkreview/internal/registry"
	"linkreview/pkg/domain"
)

// JobKind distinguishes import from export jobs.
type JobKind string

const (
	KindImport JobKind = "import"
	KindExport JobKind = "export"
)

// JobStatus is the lifecycle state of a transfer job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// Job describes one import or export run.
type Job struct {
	ID          string     `json:"id"`
	Kind        JobKind    `json:"kind"`
	Status      JobStatus  `json:"status"`
	URI         string     `json:"uri"`
	RecordCount int        `json:"record_count"`
	Error       string     `json:"error,omitempty"`
	Created     time.Time  `json:"created"`
	Started     *time.Time `json:"started,omitempty"`
	Finished    *time.Time `json:"finished,omitempty"`
}

// Service runs person-record transfer jobs against the registry store and a
// blob backend. Jobs execute asynchronously; callers poll by job id.
type Service struct {
	store  *registry.Store
	blobs  blob.Store
	logger observability.Logger
	nowFn  func() time.Time
	idFn   func() string

	mu   sync.Mutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

// NewService constructs a transfer service. A nil logger falls back to the
// no-op logger.
func NewService(store *registry.Store, blobs blob.Store, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: logger,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
		jobs:   make(map[string]*Job),
	}
}

// SetClock overrides the time source, primarily for tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.nowFn = now
	}
}

// Wait blocks until all launched jobs finish. Intended for tests and
// graceful shutdown.
func (s *Service) Wait() { s.wg.Wait() }

// StartImport queues an import of person records from the given storage URI.
// Each CSV row becomes a new single-record person in the registry.
func (s *Service) StartImport(uri string) (Job, error) {
	key, err := ParseStorageURI(uri, s.blobs.Driver())
	if err != nil {
		return Job{}, err
	}
	job := s.enqueue(KindImport, uri)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runImport(job.ID, key)
	}()
	return job, nil
}

// StartExport queues an export of every person record to the given storage
// URI as CSV.
func (s *Service) StartExport(uri string) (Job, error) {
	key, err := ParseStorageURI(uri, s.blobs.Driver())
	if err != nil {
		return Job{}, err
	}
	job := s.enqueue(KindExport, uri)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runExport(job.ID, key)
	}()
	return job, nil
}

// GetJob returns a snapshot of the job with the given id.
func (s *Service) GetJob(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (s *Service) enqueue(kind JobKind, uri string) Job {
	job := &Job{
		ID:      s.idFn(),
		Kind:    kind,
		Status:  StatusQueued,
		URI:     uri,
		Created: s.nowFn(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return *job
}

func (s *Service) transition(id string, fn func(*Job)) {
	s.mu.Lock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
	s.mu.Unlock()
}

func (s *Service) start(id string) {
	now := s.nowFn()
	s.transition(id, func(j *Job) {
		j.Status = StatusRunning
		j.Started = &now
	})
}

func (s *Service) finish(id string, count int, err error) {
	now := s.nowFn()
	s.transition(id, func(j *Job) {
		j.Finished = &now
		j.RecordCount = count
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusSucceeded
	})
	if err != nil {
		s.logger.Warn("transfer job failed", "job_id", id, "error", err)
		return
	}
	s.logger.Info("transfer job finished", "job_id", id, "records", count)
}

func (s *Service) runImport(jobID, key string) {
	s.start(jobID)
	ctx := context.Background()
	_, body, err := s.blobs.Get(ctx, key)
	if err != nil {
		s.finish(jobID, 0, fmt.Errorf("read blob %q: %w", key, err))
		return
	}
	defer func() { _ = body.Close() }()
	records, err := ReadRecords(body)
	if err != nil {
		s.finish(jobID, 0, err)
		return
	}
	imported := 0
	for _, rec := range records {
		if _, err := s.store.AddPerson(ctx, []domain.PersonRecord{rec}); err != nil {
			s.finish(jobID, imported, fmt.Errorf("import record %d: %w", imported+1, err))
			return
		}
		imported++
	}
	s.finish(jobID, imported, nil)
}

func (s *Service) runExport(jobID, key string) {
	s.start(jobID)
	ctx := context.Background()
	records, err := s.store.ListAllRecords(ctx)
	if err != nil {
		s.finish(jobID, 0, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteRecords(&buf, records); err != nil {
		s.finish(jobID, 0, err)
		return
	}
	if _, err := s.blobs.Put(ctx, key, &buf, blob.PutOptions{ContentType: "text/csv"}); err != nil {
		s.finish(jobID, 0, fmt.Errorf("write blob %q: %w", key, err))
		return
	}
	s.finish(jobID, len(records), nil)
}
