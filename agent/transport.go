package agent

import "sync"

// Sink is the boundary the Facade's wait callbacks hand completed
// breakpoints across to. The real control-plane client (posting results to
// the remote service, per spec.md §1's explicit scoping) lives outside this
// core; Sink is the narrow interface the core depends on instead.
type Sink interface {
	// Deliver is called once per completed Breakpoint (hit, hit-with-error,
	// or LOG rendering). Implementations must not block the caller for
	// long: the Facade invokes this from inside a wait callback, which may
	// itself run from the break-event context.
	Deliver(bp *Breakpoint)
}

// MemorySink is an in-memory Sink for tests and the manual harness CLI: it
// simply accumulates delivered breakpoints in order.
type MemorySink struct {
	mu       sync.Mutex
	delivered []*Breakpoint
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Deliver(bp *Breakpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, bp)
}

// Delivered returns a snapshot of everything delivered so far, in order.
func (s *MemorySink) Delivered() []*Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Breakpoint, len(s.delivered))
	copy(out, s.delivered)
	return out
}
