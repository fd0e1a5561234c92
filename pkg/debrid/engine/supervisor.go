package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

// Supervisor enforces the one-resolve-at-a-time rule: starting a resolve
// cancels whichever one is still running, and only the newest attempt is
// allowed to clear the slot when it finishes.
type Supervisor struct {
	mu       sync.Mutex
	resolver *Resolver
	current  string
	cancel   context.CancelFunc
}

func NewSupervisor(resolver *Resolver) *Supervisor {
	return &Supervisor{resolver: resolver}
}

// Resolve runs one attempt under the supervisor. Blocks until the attempt
// finishes; a later caller preempts it through context cancellation.
func (s *Supervisor) Resolve(ctx context.Context, client types.Client, magnet types.Magnet, sel types.Selection, onState StateFunc) (*types.ResolvedDownload, error) {
	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.current = id
	s.cancel = cancel
	s.mu.Unlock()

	dl, err := s.resolver.Resolve(runCtx, client, magnet, sel, onState)

	s.mu.Lock()
	if s.current == id {
		s.current = ""
		s.cancel = nil
	}
	s.mu.Unlock()
	cancel()

	return dl, err
}

// Cancel aborts the in-flight resolve, if any. Safe to call at any time.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.current = ""
	}
}

// Active reports whether a resolve is currently in flight.
func (s *Supervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
