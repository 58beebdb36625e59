package screenshot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/timmy/ninjascan/internal/logger"
)

// Session is one consumer of the resolver. It owns at most one active
// resolution attempt; every Request bumps the generation and cancels the
// previous attempt, and results tagged with an older generation are dropped.
type Session struct {
	id       string
	resolver *Resolver

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	target     string
	result     Result
	changed    chan struct{}
	closed     bool
	updatedAt  time.Time

	wg sync.WaitGroup
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	Generation uint64    `json:"generation"`
	Result     Result    `json:"result"`
	State      State     `json:"state"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewSession creates an idle session.
func NewSession(id string, resolver *Resolver) *Session {
	return &Session{
		id:        id,
		resolver:  resolver,
		result:    Result{Status: StatusIdle},
		changed:   make(chan struct{}),
		updatedAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Request supersedes any in-flight attempt and starts resolving raw. An empty
// raw moves the session to idle without probing. ctx only carries logging
// fields; the attempt outlives it.
func (s *Session) Request(ctx context.Context, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.generation++
	generation := s.generation
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.target = raw

	if strings.TrimSpace(raw) == "" {
		s.setLocked(Result{Status: StatusIdle})
		return nil
	}

	attemptCtx, cancel := context.WithCancel(context.WithoutCancel(logger.SetSessionID(ctx, s.id)))
	s.cancel = cancel
	s.setLocked(Result{Status: StatusLoading})

	s.wg.Add(1)
	go s.run(attemptCtx, generation, raw)
	return nil
}

func (s *Session) run(ctx context.Context, generation uint64, raw string) {
	defer s.wg.Done()

	result, err := s.resolver.Resolve(ctx, raw)
	if err != nil {
		logger.CtxDebug(ctx, "Screenshot attempt superseded: %v", err)
		return
	}
	s.apply(generation, result)
}

// apply stores result only if generation is still current.
func (s *Session) apply(generation uint64, result Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || generation != s.generation {
		return false
	}
	s.setLocked(result)
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

func (s *Session) setLocked(result Result) {
	s.result = result
	s.updatedAt = time.Now()
	close(s.changed)
	s.changed = make(chan struct{})
}

// State returns the consumer view of the current result.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.State()
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.id,
		Target:     s.target,
		Generation: s.generation,
		Result:     s.result,
		State:      s.result.State(),
		UpdatedAt:  s.updatedAt,
	}
}

// Wait blocks until the session is not loading or ctx is done, and returns
// the latest snapshot either way.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		loading := s.result.Status == StatusLoading
		changed := s.changed
		s.mu.Unlock()

		if !loading {
			return s.Snapshot(), nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

// Close tears the session down: the active attempt is cancelled, the state
// returns to idle and Close waits for the attempt goroutine to exit.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.setLocked(Result{Status: StatusIdle})
	s.mu.Unlock()

	s.wg.Wait()
}
