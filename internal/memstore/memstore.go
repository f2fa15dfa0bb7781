// Package memstore is an in-memory pipeline.Store. Transactions are
// serialized and run against a private copy of the data that replaces the
// shared state only on commit. Foreign keys are checked on every write the
// way Postgres checks them; template order uniqueness is checked at commit
// like the deferred constraint in the schema.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/hiring-pipeline/internal/pipeline"
)

// ErrForeignKey is returned when a write would leave a dangling reference
var ErrForeignKey = errors.New("foreign key violation")

// ErrUnique is returned when a write would duplicate a unique key
var ErrUnique = errors.New("unique violation")

type cvDocument struct {
	id     uuid.UUID
	chunks int
}

type state struct {
	pipelines map[uuid.UUID]pipeline.PipelineDefinition
	templates map[uuid.UUID]pipeline.StageTemplate
	jobs      map[uuid.UUID]pipeline.JobPosting
	personas  map[uuid.UUID]struct{}
	cvs       map[uuid.UUID]cvDocument
	cands     map[uuid.UUID]pipeline.Candidate
	instances map[uuid.UUID]pipeline.StageInstance
}

func newState() *state {
	return &state{
		pipelines: make(map[uuid.UUID]pipeline.PipelineDefinition),
		templates: make(map[uuid.UUID]pipeline.StageTemplate),
		jobs:      make(map[uuid.UUID]pipeline.JobPosting),
		personas:  make(map[uuid.UUID]struct{}),
		cvs:       make(map[uuid.UUID]cvDocument),
		cands:     make(map[uuid.UUID]pipeline.Candidate),
		instances: make(map[uuid.UUID]pipeline.StageInstance),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.pipelines {
		c.pipelines[k] = v
	}
	for k, v := range s.templates {
		c.templates[k] = v
	}
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	for k, v := range s.personas {
		c.personas[k] = v
	}
	for k, v := range s.cvs {
		c.cvs[k] = v
	}
	for k, v := range s.cands {
		c.cands[k] = v
	}
	for k, v := range s.instances {
		c.instances[k] = v
	}
	return c
}

// Store is an in-memory implementation of pipeline.Store
type Store struct {
	mu    sync.Mutex
	data  *state
	now   func() time.Time
	fault func(op string) error
}

// New creates an empty Store
func New() *Store {
	return &Store{
		data: newState(),
		now:  time.Now,
	}
}

// FailOn makes every repository call named op (e.g. "DeleteCVs") fail with
// err until cleared with FailOn(op, nil). Used to exercise rollbacks.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.fault = nil
		return
	}
	s.fault = func(name string) error {
		if name == op {
			return err
		}
		return nil
	}
}

// InTx runs fn against a snapshot and publishes the snapshot only if fn
// succeeds and the commit-time checks pass.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx pipeline.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.data.clone()
	tx := &memTx{data: work, now: s.now, fault: s.fault}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := work.checkDeferred(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.data = work
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AddPersona registers a persona id. Personas are owned by another service.
func (s *Store) AddPersona(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.personas[id] = struct{}{}
}

// AddCV registers a CV document with the given number of embedding chunks
func (s *Store) AddCV(id uuid.UUID, chunks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.cvs[id] = cvDocument{id: id, chunks: chunks}
}

// Counts holds the number of rows per table
type Counts struct {
	Pipelines      int
	StageTemplates int
	Jobs           int
	Candidates     int
	StageInstances int
	CVs            int
	CVChunks       int
}

// Counts returns the committed row counts
func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Counts{
		Pipelines:      len(s.data.pipelines),
		StageTemplates: len(s.data.templates),
		Jobs:           len(s.data.jobs),
		Candidates:     len(s.data.cands),
		StageInstances: len(s.data.instances),
		CVs:            len(s.data.cvs),
	}
	for _, cv := range s.data.cvs {
		c.CVChunks += cv.chunks
	}
	return c
}

// HasCV reports whether a CV document is stored
func (s *Store) HasCV(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data.cvs[id]
	return ok
}

// checkDeferred verifies constraints Postgres checks at commit time
func (s *state) checkDeferred() error {
	type key struct {
		pipeline uuid.UUID
		order    int
	}
	seen := make(map[key]uuid.UUID, len(s.templates))
	for _, t := range s.templates {
		if t.DeletedAt != nil {
			continue
		}
		k := key{t.PipelineID, t.Order}
		if other, ok := seen[k]; ok {
			return fmt.Errorf("%w: stage templates %s and %s share order %d", ErrUnique, other, t.ID, t.Order)
		}
		seen[k] = t.ID
	}
	return nil
}
