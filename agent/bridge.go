package agent

import (
	"log"
)

// NamedValue is one argument or local binding visible in a paused frame.
type NamedValue struct {
	Name  string
	Value any
}

// Frame is one level of the paused call stack as the native runtime reports
// it. Frames are ordered topmost first.
type Frame struct {
	Function  string
	Location  SourceLocation
	This      any
	Arguments []NamedValue
	Locals    []NamedValue
}

// BreakEvent is what HookSource delivers when execution reaches an
// instrumented location.
type BreakEvent struct {
	Path   string
	Line   int32
	Frames []Frame
}

// HookSource is the native debug-hook integration the Bridge multiplexes
// into many logical breakpoints, per spec §4.5: a single physical
// subscription fanning out to every registered Breakpoint sharing a
// location. A real embedding wires this to the host runtime's break
// facility (out of this core's scope per spec §1); tests use a fake that
// calls the dispatch function directly.
type HookSource interface {
	// SetBreak arranges for the hook to fire at (path, line). Called once
	// per distinct location on its first registration; idempotent.
	SetBreak(path string, line int32) error
	// ClearBreak removes a break once no live Breakpoint references
	// (path, line) anymore.
	ClearBreak(path string, line int32) error
	// Attach installs dispatch as the event listener. Called on the first
	// breakpoint registered anywhere; the Bridge never calls it again until
	// a matching Detach has occurred.
	Attach(dispatch func(BreakEvent)) error
	// Detach removes the dispatch listener. Called once the last
	// breakpoint anywhere is unregistered.
	Detach() error
}

// locKey identifies a (path, line) break location.
type locKey struct {
	path string
	line int32
}

// bridge owns the single HookSource subscription and multiplexes it across
// the breakpoints registered for each location. It does not lock
// internally: the Facade holds a single coarse lock across register,
// unregister, and dispatch, per spec §5's cooperative-serialization model,
// so the bridge's own fields never need their own mutex.
type bridge struct {
	hook     HookSource
	logger   *log.Logger
	byLoc    map[locKey]map[any]struct{} // location -> set of breakpoint ids
	attached bool
	capturer *capturer
	reg      *registry

	// externalDispatch, when set, is what gets handed to hook.Attach
	// instead of dispatch directly: it re-enters through the Facade's
	// cooperative lock before calling dispatch, since a real HookSource
	// delivers break events from the runtime's own call stack, not from
	// whatever goroutine happens to hold that lock. Tests that drive the
	// bridge directly may leave this nil and call dispatch themselves.
	externalDispatch func(BreakEvent)
}

func newBridge(hook HookSource, logger *log.Logger, reg *registry, cap *capturer) *bridge {
	return &bridge{
		hook:     hook,
		logger:   logger,
		byLoc:    make(map[locKey]map[any]struct{}),
		capturer: cap,
		reg:      reg,
	}
}

// register attaches bp's resolved location to the hook, installing the
// dispatch listener on the very first registration anywhere.
func (br *bridge) register(bp *Breakpoint) error {
	if !br.attached {
		listener := br.externalDispatch
		if listener == nil {
			listener = br.dispatch
		}
		if err := br.hook.Attach(listener); err != nil {
			return err
		}
		br.attached = true
	}

	key := locKey{path: bp.resolved.absolutePath, line: bp.resolved.line}
	ids, exists := br.byLoc[key]
	if !exists {
		if err := br.hook.SetBreak(key.path, key.line); err != nil {
			if br.logger != nil {
				br.logger.Printf("%sfailed to set break at %s:%d: %v", ErrorLogPrefix, key.path, key.line, err)
			}
			return err
		}
		ids = make(map[any]struct{})
		br.byLoc[key] = ids
	}
	ids[bp.ID] = struct{}{}
	if br.logger != nil {
		br.logger.Printf("bridge: registered breakpoint %v at %s:%d", bp.ID, key.path, key.line)
	}
	return nil
}

// unregister removes bp from its location's id set, clearing the native
// break once no breakpoint references that location, and detaching the
// listener once the bridge has nothing registered anywhere.
func (br *bridge) unregister(bp *Breakpoint) error {
	if bp.resolved == nil {
		return nil
	}
	key := locKey{path: bp.resolved.absolutePath, line: bp.resolved.line}
	ids, exists := br.byLoc[key]
	if !exists {
		return nil
	}
	delete(ids, bp.ID)
	if len(ids) == 0 {
		delete(br.byLoc, key)
		if err := br.hook.ClearBreak(key.path, key.line); err != nil {
			if br.logger != nil {
				br.logger.Printf("%sfailed to clear break at %s:%d: %v", ErrorLogPrefix, key.path, key.line, err)
			}
			return err
		}
	}
	if br.logger != nil {
		br.logger.Printf("bridge: unregistered breakpoint %v at %s:%d", bp.ID, key.path, key.line)
	}

	if len(br.byLoc) == 0 && br.attached {
		if err := br.hook.Detach(); err != nil {
			return err
		}
		br.attached = false
	}
	return nil
}

// dispatch is invoked (synchronously, under the Facade's coarse lock) for
// every break event. It evaluates each matching breakpoint's condition,
// captures hits, and fires their waiters.
func (br *bridge) dispatch(ev BreakEvent) {
	key := locKey{path: ev.Path, line: ev.Line}
	ids, exists := br.byLoc[key]
	if !exists || len(ids) == 0 {
		return
	}
	for id := range ids {
		bp, ok := br.reg.get(id)
		if !ok || bp.resolved == nil || bp.resolved.hit {
			continue // already reported once, or torn down mid-dispatch
		}

		var frame Frame
		if len(ev.Frames) > 0 {
			frame = ev.Frames[0]
		}
		sc := newScope(frame.This, frame.Arguments, frame.Locals)

		hit, err := bp.resolved.condition.evaluateCondition(sc)
		switch {
		case err != nil:
			bp.resolved.hit = true
			br.capturer.captureConditionError(bp, ev.Frames, err)
		case hit:
			bp.resolved.hit = true
			br.capturer.capture(bp, ev.Frames)
		default:
			continue // falsy condition: no-op, breakpoint stays pending
		}
		br.reg.fireWaiter(id, nil)
	}
}
