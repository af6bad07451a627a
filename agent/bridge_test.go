package agent

import (
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHookSource struct {
	setBreaks    []locKey
	clearBreaks  []locKey
	dispatch     func(BreakEvent)
	attachCalls  int
	detachCalls  int
	setBreakErr  error
	attachErr    error
}

func (f *fakeHookSource) SetBreak(path string, line int32) error {
	if f.setBreakErr != nil {
		return f.setBreakErr
	}
	f.setBreaks = append(f.setBreaks, locKey{path, line})
	return nil
}

func (f *fakeHookSource) ClearBreak(path string, line int32) error {
	f.clearBreaks = append(f.clearBreaks, locKey{path, line})
	return nil
}

func (f *fakeHookSource) Attach(dispatch func(BreakEvent)) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attachCalls++
	f.dispatch = dispatch
	return nil
}

func (f *fakeHookSource) Detach() error {
	f.detachCalls++
	f.dispatch = nil
	return nil
}

func newTestBridge(hook HookSource, cfg Config) (*bridge, *registry) {
	reg := newRegistry()
	cap := newCapturer(cfg)
	return newBridge(hook, log.New(nowhere{}, "", 0), reg, cap), reg
}

type nowhere struct{}

func (nowhere) Write(p []byte) (int, error) { return len(p), nil }

func resolvedBP(id any, path string, line int32) *Breakpoint {
	bp := &Breakpoint{ID: id, Location: SourceLocation{Path: path, Line: line}}
	cond, _ := compileCondition(nil, "")
	bp.resolved = &resolvedBreakpoint{absolutePath: path, line: line, condition: cond}
	return bp
}

func TestBridgeRegisterAttachesOnFirstOnly(t *testing.T) {
	t.Parallel()
	hook := &fakeHookSource{}
	br, reg := newTestBridge(hook, DefaultConfig("."))

	bp1 := resolvedBP(1, "/a.js", 10)
	bp2 := resolvedBP(2, "/a.js", 10)
	require.NoError(t, reg.insert(bp1))
	require.NoError(t, reg.insert(bp2))

	require.NoError(t, br.register(bp1))
	require.NoError(t, br.register(bp2))

	assert.Equal(t, 1, hook.attachCalls)
	assert.Len(t, hook.setBreaks, 1, "same location should only SetBreak once")
}

func TestBridgeUnregisterClearsOnlyWhenLastIDLeaves(t *testing.T) {
	t.Parallel()
	hook := &fakeHookSource{}
	br, reg := newTestBridge(hook, DefaultConfig("."))

	bp1 := resolvedBP(1, "/a.js", 10)
	bp2 := resolvedBP(2, "/a.js", 10)
	require.NoError(t, reg.insert(bp1))
	require.NoError(t, reg.insert(bp2))
	require.NoError(t, br.register(bp1))
	require.NoError(t, br.register(bp2))

	require.NoError(t, br.unregister(bp1))
	assert.Empty(t, hook.clearBreaks)

	require.NoError(t, br.unregister(bp2))
	assert.Len(t, hook.clearBreaks, 1)
	assert.Equal(t, 1, hook.detachCalls)
}

func TestBridgeDispatchCapturesOnTruthyCondition(t *testing.T) {
	t.Parallel()
	hook := &fakeHookSource{}
	br, reg := newTestBridge(hook, DefaultConfig("."))

	bp := &Breakpoint{ID: 1, Location: SourceLocation{Path: "/a.js", Line: 10}}
	cond, err := compileCondition(nil, "n > 1")
	require.NoError(t, err)
	bp.resolved = &resolvedBreakpoint{absolutePath: "/a.js", line: 10, condition: cond}
	require.NoError(t, reg.insert(bp))
	require.NoError(t, br.register(bp))

	fired := false
	reg.installWaiter(1, func(error) { fired = true })

	br.dispatch(BreakEvent{
		Path: "/a.js", Line: 10,
		Frames: []Frame{{Arguments: []NamedValue{{Name: "n", Value: 5.0}}}},
	})

	assert.True(t, fired)
	assert.True(t, bp.resolved.hit)
	assert.Nil(t, bp.EvaluatedExpressions) // no watch expressions requested
	assert.NotNil(t, bp.StackFrames)
}

func TestBridgeDispatchSkipsOnFalsyCondition(t *testing.T) {
	t.Parallel()
	hook := &fakeHookSource{}
	br, reg := newTestBridge(hook, DefaultConfig("."))

	bp := &Breakpoint{ID: 1, Location: SourceLocation{Path: "/a.js", Line: 10}}
	cond, err := compileCondition(nil, "n > 100")
	require.NoError(t, err)
	bp.resolved = &resolvedBreakpoint{absolutePath: "/a.js", line: 10, condition: cond}
	require.NoError(t, reg.insert(bp))
	require.NoError(t, br.register(bp))

	fired := false
	reg.installWaiter(1, func(error) { fired = true })

	br.dispatch(BreakEvent{
		Path: "/a.js", Line: 10,
		Frames: []Frame{{Arguments: []NamedValue{{Name: "n", Value: 5.0}}}},
	})

	assert.False(t, fired)
	assert.False(t, bp.resolved.hit)
}

func TestBridgeDispatchOneShotSuppression(t *testing.T) {
	t.Parallel()
	hook := &fakeHookSource{}
	br, reg := newTestBridge(hook, DefaultConfig("."))

	bp := resolvedBP(1, "/a.js", 10)
	require.NoError(t, reg.insert(bp))
	require.NoError(t, br.register(bp))

	fireCount := 0
	reg.installWaiter(1, func(error) { fireCount++ })

	ev := BreakEvent{Path: "/a.js", Line: 10, Frames: []Frame{{}}}
	br.dispatch(ev)
	br.dispatch(ev) // second break event before clear must be a no-op

	assert.Equal(t, 1, fireCount)
}

func TestBridgeDispatchConditionRuntimeErrorIsHit(t *testing.T) {
	t.Parallel()
	hook := &fakeHookSource{}
	br, reg := newTestBridge(hook, DefaultConfig("."))

	bp := &Breakpoint{ID: 1, Location: SourceLocation{Path: "/a.js", Line: 10}}
	cond, err := compileCondition(nil, "missing.prop")
	require.NoError(t, err)
	bp.resolved = &resolvedBreakpoint{absolutePath: "/a.js", line: 10, condition: cond}
	require.NoError(t, reg.insert(bp))
	require.NoError(t, br.register(bp))

	fired := false
	reg.installWaiter(1, func(error) { fired = true })

	br.dispatch(BreakEvent{Path: "/a.js", Line: 10, Frames: []Frame{{}}})

	assert.True(t, fired)
	require.NotNil(t, bp.Status)
	assert.True(t, bp.Status.IsError)
	assert.Equal(t, RefersToCondition, bp.Status.RefersTo)
}

func TestBridgeExternalDispatchPreferredOverRaw(t *testing.T) {
	t.Parallel()
	hook := &fakeHookSource{}
	br, reg := newTestBridge(hook, DefaultConfig("."))
	called := false
	br.externalDispatch = func(BreakEvent) { called = true }

	bp := resolvedBP(1, "/a.js", 10)
	require.NoError(t, reg.insert(bp))
	require.NoError(t, br.register(bp))
	require.NotNil(t, hook.dispatch)

	hook.dispatch(BreakEvent{Path: "/a.js", Line: 10})
	assert.True(t, called)
}
