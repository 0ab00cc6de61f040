// Package supervisor tracks in-flight generation requests so an external
// caller can cancel one by id, adapting the worker-pool cancellation shape
// used elsewhere in the stack for a single-task-per-request model.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Supervisor owns the lifecycle of concurrently running generation tasks,
// one per request id. Each task runs independently; there is no shared
// mutable state across tasks beyond the read-only catalog snapshot each one
// loaded at compile time.
type Supervisor struct {
	mu     sync.Mutex
	tasks  map[string]context.CancelFunc
	logger *zap.Logger
}

// New constructs a Supervisor.
func New(logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{tasks: make(map[string]context.CancelFunc), logger: logger}
}

// Start registers a new task for requestID and returns a context that is
// cancelled either by the caller's parent ctx or by a later Cancel(requestID)
// call. Start returns an error if requestID is already running, since a
// single cooperative task per generation request is the model (a second
// concurrent generation for the same request id is a programming error, not
// a legitimate race to resolve).
func (s *Supervisor) Start(ctx context.Context, requestID string) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[requestID]; exists {
		return nil, fmt.Errorf("generation request %s is already running", requestID)
	}
	taskCtx, cancel := context.WithCancel(ctx)
	s.tasks[requestID] = cancel
	return taskCtx, nil
}

// Finish releases the bookkeeping for a completed or cancelled task. Callers
// must call Finish exactly once per successful Start.
func (s *Supervisor) Finish(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.tasks[requestID]; ok {
		cancel()
		delete(s.tasks, requestID)
	}
}

// Cancel requests early termination of a running generation task. It is a
// no-op if requestID is not currently running.
func (s *Supervisor) Cancel(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.tasks[requestID]
	if !ok {
		return false
	}
	cancel()
	s.logger.Sugar().Infow("generation cancelled", "request_id", requestID)
	return true
}

// Running reports whether a task for requestID is currently tracked.
func (s *Supervisor) Running(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[requestID]
	return ok
}
