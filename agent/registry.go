package agent

import (
	"fmt"
	"sync"
)

// waiterEntry is the single completion callback installed via Facade.wait,
// per spec §4.4/§5: exactly one per breakpoint, fired exactly once.
type waiterEntry struct {
	cb       func(error)
	fired    bool
	installed bool
}

// registry maps breakpoint id to its live Breakpoint record, per spec §4.4.
// Its own mutex only protects the map and waiter bookkeeping; the coarser
// cooperative-serialization lock described in spec §5 lives in Facade and is
// held for the whole duration of a set/clear/capture, so registry methods
// never need to re-enter it.
type registry struct {
	mu      sync.Mutex
	entries map[any]*Breakpoint
	waiters map[any]*waiterEntry
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[any]*Breakpoint),
		waiters: make(map[any]*waiterEntry),
	}
}

// insert adds bp under bp.ID. Duplicate insert of a live id is a logic error
// per spec §4.4 and returns ErrDuplicateBreakpointID.
func (r *registry) insert(bp *Breakpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[bp.ID]; exists {
		return newStatusError(ErrDuplicateBreakpointID,
			newStatus(true, RefersToUnspecified, "duplicate breakpoint id %v", fmt.Sprintf("%v", bp.ID)))
	}
	r.entries[bp.ID] = bp
	return nil
}

// remove is idempotent: removing an absent id is a no-op.
func (r *registry) remove(id any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	delete(r.waiters, id)
}

func (r *registry) get(id any) (*Breakpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bp, ok := r.entries[id]
	return bp, ok
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// all returns a snapshot slice of the currently registered breakpoints.
func (r *registry) all() []*Breakpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Breakpoint, 0, len(r.entries))
	for _, bp := range r.entries {
		out = append(out, bp)
	}
	return out
}

// installWaiter registers cb as the single completion callback for id. A
// second install before the first fires is a programmer error per spec §5.
func (r *registry) installWaiter(id any, cb func(error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, exists := r.waiters[id]; exists && w.installed && !w.fired {
		return ErrWaiterAlreadyInstalled
	}
	r.waiters[id] = &waiterEntry{cb: cb, installed: true}
	return nil
}

// fireWaiter invokes id's callback exactly once, then drops it. Firing an id
// with no installed waiter (capture outran wait, or it was already cleared)
// is a silent no-op, matching "a cleared Breakpoint's waiter, if any, must
// never fire."
func (r *registry) fireWaiter(id any, err error) {
	r.mu.Lock()
	w, exists := r.waiters[id]
	if exists {
		delete(r.waiters, id)
	}
	r.mu.Unlock()
	if !exists || w.fired {
		return
	}
	w.fired = true
	if w.cb != nil {
		w.cb(err)
	}
}

// dropWaiter removes id's waiter without firing it, used by clear() on a
// pending breakpoint so its callback never observes a hit.
func (r *registry) dropWaiter(id any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.waiters, id)
}

func (r *registry) numListeners() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}
