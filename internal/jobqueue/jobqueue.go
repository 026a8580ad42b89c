// Package jobqueue enqueues background work such as document conversion.
package jobqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	id "vouch/pkg/domain"
)

// JobConvertToPDF asks the converter to render an evidence file as PDF.
const JobConvertToPDF = "files.convert_to_pdf"

type Job struct {
	Name     string
	Payload  map[string]any
	TenantID id.TenantID
	ActorID  id.UserID
	TraceID  string
}

// Queue accepts jobs. Enqueue returns only after the job is durably accepted.
type Queue interface {
	Enqueue(ctx context.Context, job Job) (string, error)
}

// Envelope is the wire form of a job.
type Envelope struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	TenantID   string         `json:"tenant_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	Payload    map[string]any `json:"payload"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

func newEnvelope(job Job, now time.Time) Envelope {
	env := Envelope{
		ID:         uuid.NewString(),
		Name:       job.Name,
		TenantID:   job.TenantID.String(),
		TraceID:    job.TraceID,
		Payload:    job.Payload,
		EnqueuedAt: now.UTC(),
	}
	if !job.ActorID.IsNil() {
		env.ActorID = job.ActorID.String()
	}
	if env.Payload == nil {
		env.Payload = map[string]any{}
	}
	return env
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// InMemoryQueue records enqueued jobs for tests and local development.
type InMemoryQueue struct {
	mu   sync.Mutex
	jobs []Envelope
	err  error
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

// FailWith makes every subsequent Enqueue return err. Pass nil to recover.
func (q *InMemoryQueue) FailWith(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

func (q *InMemoryQueue) Enqueue(_ context.Context, job Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	env := newEnvelope(job, time.Now())
	q.jobs = append(q.jobs, env)
	return env.ID, nil
}

// Jobs returns a snapshot of everything enqueued so far.
func (q *InMemoryQueue) Jobs() []Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Envelope(nil), q.jobs...)
}
