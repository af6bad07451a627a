package agent

import (
	"log"
	"sync"
	"time"
)

// Facade is the Public Facade of spec §6: the sole entry point the
// control-plane glue uses to set, clear, and wait on breakpoints.
type Facade struct {
	// mu is the single cooperative-serialization lock spec §5 requires: it
	// is held across the whole of set/clear/wait and across dispatching a
	// break event, so a capture never observes a partially updated
	// registry and no set/clear ever interleaves with one in flight.
	mu sync.Mutex

	logger    *log.Logger
	cfg       Config
	inventory *Inventory
	messages  Messages

	reg      *registry
	bridge   *bridge
	capturer *capturer
	cache    *CompileCache
	store    *ResultStore
	sink     Sink

	activity *lockedBuffer
}

// Create constructs a Facade. Per spec §6's create(logger, config,
// inventory) it performs no I/O; hook is the native debug-hook integration
// the Bridge multiplexes (spec §1 scopes the concrete runtime wiring as an
// external collaborator, so it must be supplied here rather than assumed).
func Create(logger *log.Logger, cfg Config, inventory *Inventory, hook HookSource) *Facade {
	if logger == nil {
		logger = log.Default()
	}
	activity := NewBoundedLockedBuffer(64 * 1024)
	logger.SetOutput(TeeWriter(logger.Writer(), activity))

	reg := newRegistry()
	cap := newCapturer(cfg)
	f := &Facade{
		logger:    logger,
		cfg:       cfg,
		inventory: inventory,
		messages:  DefaultMessages,
		reg:       reg,
		capturer:  cap,
		activity:  activity,
	}
	f.bridge = newBridge(hook, logger, reg, cap)
	f.bridge.externalDispatch = f.Dispatch
	if cache, err := NewCompileCache(); err == nil {
		f.cache = cache
	} else {
		logger.Printf("%sexpression compile cache disabled: %v", ErrorLogPrefix, err)
	}
	return f
}

// Messages exposes the stable catalog named in spec §6.
func (f *Facade) Messages() Messages { return f.messages }

// NumBreakpoints is the test-observable cleanness invariant from spec §5/§8.
func (f *Facade) NumBreakpoints() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reg.count()
}

// NumListeners is the matching waiter-count invariant.
func (f *Facade) NumListeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reg.numListeners()
}

// RecentActivity returns the Facade's recent log output, bounded, for the
// Activity Report's summary surface.
func (f *Facade) RecentActivity() string {
	return f.activity.String()
}

// Set validates, resolves, compiles, and registers bp, per spec §6. On any
// failure bp.Status is populated and the same error reaches cb.
func (f *Facade) Set(bp *Breakpoint, cb func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.resolveAndCompile(bp); err != nil {
		bp.Status = statusOf(err)
		cb(err)
		return
	}

	if err := f.reg.insert(bp); err != nil {
		bp.Status = statusOf(err)
		cb(err)
		return
	}

	if err := f.bridge.register(bp); err != nil {
		f.reg.remove(bp.ID)
		bp.Status = newStatus(true, RefersToUnspecified, "failed to register breakpoint: %s", err.Error())
		cb(err)
		return
	}

	if f.cfg.BreakpointExpirationSec > 0 {
		bp.ExpiresAtUnixSec = time.Now().Unix() + int64(f.cfg.BreakpointExpirationSec)
	}

	f.logger.Printf("breakpoint %v set at %s:%d", bp.ID, bp.resolved.absolutePath, bp.resolved.line)
	cb(nil)
}

// resolveAndCompile runs the Path Resolver and Expression Validator over bp,
// filling in bp.resolved on success.
func (f *Facade) resolveAndCompile(bp *Breakpoint) error {
	entry, err := resolvePath(f.inventory, DefaultSourceExtensions, bp.Location.Path)
	if err != nil {
		return err
	}
	if bp.Location.Line < 1 || bp.Location.Line > entry.LineCount {
		return errInvalidLine(basenameOf(entry.AbsolutePath), bp.Location.Line)
	}

	condition, err := compileCondition(f.cache, bp.Condition)
	if err != nil {
		return err
	}

	expressions := make([]*compiledExpr, 0, len(bp.Expressions))
	for _, e := range bp.Expressions {
		ce, err := compileExpression(f.cache, e)
		if err != nil {
			return err
		}
		expressions = append(expressions, ce)
	}

	bp.resolved = &resolvedBreakpoint{
		absolutePath: entry.AbsolutePath,
		line:         bp.Location.Line,
		condition:    condition,
		expressions:  expressions,
	}
	return nil
}

// Clear synchronously removes bp: unregisters from the Bridge, drops its
// waiter without firing it, and removes it from the registry. Safe to call
// from within a wait callback and idempotent.
func (f *Facade) Clear(bp *Breakpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearLocked(bp)
}

func (f *Facade) clearLocked(bp *Breakpoint) {
	if bp.resolved != nil {
		if err := f.bridge.unregister(bp); err != nil {
			f.logger.Printf("%sunregister breakpoint %v: %v", ErrorLogPrefix, bp.ID, err)
		}
	}
	f.reg.dropWaiter(bp.ID)
	f.reg.remove(bp.ID)
	f.logger.Printf("breakpoint %v cleared", bp.ID)
}

// Wait installs cb as bp's single completion callback, per spec §5/§6. A
// second call before the first fires is a programmer error.
func (f *Facade) Wait(bp *Breakpoint, cb func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reg.installWaiter(bp.ID, func(err error) {
		if f.store != nil {
			if serr := f.store.Save(bp); serr != nil {
				f.logger.Printf("%sresult store save failed for %v: %v", ErrorLogPrefix, bp.ID, serr)
			}
		}
		if f.sink != nil && err == nil {
			f.sink.Deliver(bp)
		}
		cb(err)
	})
}

// UseSink attaches the Sink that completed breakpoints are delivered to.
// Optional: a Facade with no sink attached still populates bp's output
// fields and fires the wait callback, it just has no delivery side effect.
func (f *Facade) UseSink(sink Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
}

// Dispatch feeds a native break event into the Bridge, under the same
// cooperative lock Set/Clear/Wait use. A HookSource implementation calls
// this from whatever context the runtime delivers break events on.
func (f *Facade) Dispatch(ev BreakEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bridge.dispatch(ev)
}

// Close releases background resources (the compile cache, the result
// store). It does not touch the Bridge's native subscription; callers that
// want a clean shutdown should Clear every outstanding breakpoint first.
func (f *Facade) Close() {
	f.cache.Close()
	if f.store != nil {
		f.store.Close()
	}
}

// UseResultStore attaches a Result Store so captured snapshots are staged
// durably as each breakpoint's waiter fires, per SPEC_FULL's Result Store
// design. Optional: a Facade with no store attached simply skips staging.
func (f *Facade) UseResultStore(store *ResultStore) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store = store
}

func statusOf(err error) *StatusMessage {
	var se *statusError
	if asStatusError(err, &se) {
		return se.status
	}
	return newStatus(true, RefersToUnspecified, "%s", err.Error())
}

func asStatusError(err error, target **statusError) bool {
	if se, ok := err.(*statusError); ok {
		*target = se
		return true
	}
	return false
}

func basenameOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
