package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternerPlaceholderThenOverwriteBreaksCycles(t *testing.T) {
	t.Parallel()
	in := newInterner()
	obj := &Object{Keys: []string{"self"}}
	obj.Values = []any{obj} // self-reference

	c := newCapturer(DefaultConfig("."))
	v := c.captureValue(obj, in)
	require.NotNil(t, v.VarTableIndex)
	require.Len(t, in.table, 1)
	assert.Equal(t, "object", in.table[0].Members[0].Type)
}

func TestCaptureValueScalars(t *testing.T) {
	t.Parallel()
	c := newCapturer(DefaultConfig("."))
	in := newInterner()

	v := c.captureValue(nil, in)
	assert.Equal(t, "null", v.Type)

	v = c.captureValue(true, in)
	assert.Equal(t, "boolean", v.Type)
	assert.Equal(t, "true", v.Value)

	v = c.captureValue(3.5, in)
	assert.Equal(t, "number", v.Type)
	assert.Equal(t, "3.5", v.Value)

	v = c.captureValue("hi", in)
	assert.Equal(t, "string", v.Type)
	assert.Equal(t, "hi", v.Value)
}

func TestCaptureValueGetterIsHazardous(t *testing.T) {
	t.Parallel()
	c := newCapturer(DefaultConfig("."))
	in := newInterner()
	v := c.captureValue(Getter{Fn: func() (any, error) { return 1.0, nil }}, in)
	require.NotNil(t, v.Status)
	assert.True(t, v.Status.IsError)
}

func TestCaptureValueSharesObjectByPointerIdentity(t *testing.T) {
	t.Parallel()
	c := newCapturer(DefaultConfig("."))
	in := newInterner()
	shared := &Object{Keys: []string{"v"}, Values: []any{1.0}}
	arr := &Array{Elements: []any{shared, shared}}

	v := c.captureValue(arr, in)
	require.NotNil(t, v.VarTableIndex)
	arrEntry := in.table[*v.VarTableIndex]
	require.Len(t, arrEntry.Members, 2)
	assert.Equal(t, arrEntry.Members[0].VarTableIndex, arrEntry.Members[1].VarTableIndex)
}

func TestBuildObjectTruncatesAtMaxProperties(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig(".")
	cfg.MaxProperties = 2
	c := newCapturer(cfg)
	in := newInterner()
	obj := &Object{Keys: []string{"a", "b", "c"}, Values: []any{1.0, 2.0, 3.0}}

	v := c.buildObject(obj, in)
	assert.Len(t, v.Members, 2)
	require.NotNil(t, v.Status)
	assert.False(t, v.Status.IsError)
}

func TestBuildObjectMemberGetterIsHazardous(t *testing.T) {
	t.Parallel()
	c := newCapturer(DefaultConfig("."))
	in := newInterner()
	obj := &Object{Keys: []string{"lazy"}, Values: []any{Getter{Fn: func() (any, error) { return nil, nil }}}}

	v := c.buildObject(obj, in)
	require.Len(t, v.Members, 1)
	require.NotNil(t, v.Members[0].Status)
	assert.True(t, v.Members[0].Status.IsError)
}

func TestTruncateString(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig(".")
	cfg.MaxStringLength = 4
	c := newCapturer(cfg)
	assert.Equal(t, "abcd...", c.truncate("abcdefgh"))
	assert.Equal(t, "ab", c.truncate("ab"))
}

func TestCaptureActionLogSkipsFramesAndRendersMessage(t *testing.T) {
	t.Parallel()
	c := newCapturer(DefaultConfig("."))
	bp := &Breakpoint{
		ID:               1,
		Action:           ActionLog,
		LogMessageFormat: "n is {0}",
		Expressions:      []string{"n"},
	}
	ce, err := compileExpression(nil, "n")
	require.NoError(t, err)
	bp.resolved = &resolvedBreakpoint{expressions: []*compiledExpr{ce}}

	c.capture(bp, []Frame{{Arguments: []NamedValue{{Name: "n", Value: 7.0}}}})

	assert.Empty(t, bp.StackFrames)
	assert.Equal(t, "n is 7", bp.RenderedLogMessage)
}

func TestCaptureConditionErrorSetsStatus(t *testing.T) {
	t.Parallel()
	c := newCapturer(DefaultConfig("."))
	bp := &Breakpoint{ID: 1}
	c.captureConditionError(bp, nil, assertError{"boom"})
	require.NotNil(t, bp.Status)
	assert.True(t, bp.Status.IsError)
	assert.Equal(t, RefersToCondition, bp.Status.RefersTo)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

func TestCaptureExpandFramesTiering(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig(".")
	cfg.MaxExpandFrames = 1
	cfg.MaxFrames = 3
	c := newCapturer(cfg)
	bp := &Breakpoint{ID: 1}

	c.capture(bp, []Frame{
		{Function: "top", Arguments: []NamedValue{{Name: "a", Value: 1.0}}},
		{Function: "mid", Arguments: []NamedValue{{Name: "b", Value: 2.0}}},
	})

	require.Len(t, bp.StackFrames, 2)
	assert.NotEmpty(t, bp.StackFrames[0].Arguments)
	require.Len(t, bp.StackFrames[1].Arguments, 1)
	assert.NotNil(t, bp.StackFrames[1].Arguments[0].Status)
	require.Len(t, bp.StackFrames[1].Locals, 1)
	assert.NotNil(t, bp.StackFrames[1].Locals[0].Status)
}

func TestRenderLogMessagePlaceholders(t *testing.T) {
	t.Parallel()
	evaluated := []Variable{
		{Value: "7"},
		{Status: newStatus(true, RefersToVariableValue, "boom")},
	}
	got := renderLogMessage("a={0} b={1} lit={2}", evaluated)
	assert.Equal(t, "a=7 b=<error> lit={2}", got)
}
