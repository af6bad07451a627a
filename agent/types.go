package agent

// Action selects what a Breakpoint does once its condition is satisfied.
type Action int

const (
	// ActionCapture takes a full stack/variable snapshot. This is the default.
	ActionCapture Action = iota
	// ActionLog expands LogMessageFormat against the configured expressions instead
	// of capturing frames.
	ActionLog
)

func (a Action) String() string {
	if a == ActionLog {
		return "LOG"
	}
	return "CAPTURE"
}

// RefersTo identifies which part of a Breakpoint or Variable a StatusMessage describes.
type RefersTo int

const (
	RefersToUnspecified RefersTo = iota
	RefersToSourceLocation
	RefersToCondition
	RefersToExpression
	RefersToVariableName
	RefersToVariableValue
)

// Description is the parametrized human-readable half of a StatusMessage, kept
// separate from the format so callers can match on a stable format string in
// tests without depending on the substituted values.
type Description struct {
	Format     string   `json:"format"`
	Parameters []string `json:"parameters,omitempty"`
}

// StatusMessage records set-time or capture-time diagnostics on a Breakpoint or
// a Variable. IsError distinguishes a hard failure (the field carries no usable
// value) from an informational note such as a truncation.
type StatusMessage struct {
	IsError     bool        `json:"isError"`
	RefersTo    RefersTo    `json:"refersTo"`
	Description Description `json:"description"`
}

func newStatus(isError bool, refersTo RefersTo, format string, params ...string) *StatusMessage {
	return &StatusMessage{
		IsError:     isError,
		RefersTo:    refersTo,
		Description: Description{Format: format, Parameters: params},
	}
}

// SourceLocation names a source position. Path is a user-supplied hint that
// need not literally match any file on disk; after Path Resolver resolution it
// refers to exactly one inventory entry.
type SourceLocation struct {
	Path   string `json:"path"`
	Line   int32  `json:"line"`
	Column int32  `json:"column,omitempty"`
}

// Variable is a flattened representation of a captured value. Compound values
// are interned into the owning snapshot's variableTable and referenced here by
// VarTableIndex; scalars are inlined into Value.
type Variable struct {
	Name          string         `json:"name,omitempty"`
	Value         string         `json:"value,omitempty"`
	Type          string         `json:"type,omitempty"`
	Members       []Variable     `json:"members,omitempty"`
	VarTableIndex *int32         `json:"varTableIndex,omitempty"`
	Status        *StatusMessage `json:"status,omitempty"`
}

// StackFrame is one entry of a captured call stack.
type StackFrame struct {
	Function  string         `json:"function"`
	Location  SourceLocation `json:"location"`
	Arguments []Variable     `json:"arguments,omitempty"`
	Locals    []Variable     `json:"locals,omitempty"`
}

// Breakpoint is a snapshot request plus its output slot. Exactly one live
// Breakpoint may occupy a given registry slot for a given id; the zero value of
// the id space (e.g. int64(0)) is a valid, distinct key.
type Breakpoint struct {
	ID                any
	Action            Action
	Location          SourceLocation
	Condition         string
	Expressions       []string
	LogMessageFormat  string
	ExpiresAtUnixSec  int64

	// output fields, populated on hit or on a set-time validation failure
	StackFrames          []StackFrame
	VariableTable        []Variable
	EvaluatedExpressions []Variable
	// RenderedLogMessage is populated only for Action == ActionLog: it is
	// LogMessageFormat with its {n} placeholders expanded against
	// EvaluatedExpressions, ready for the control plane to emit.
	RenderedLogMessage string
	Status             *StatusMessage

	// resolved is filled in by set() once the path has been located and the
	// condition/expressions compiled; the Facade, Bridge and Capturer read it.
	resolved *resolvedBreakpoint
}

// resolvedBreakpoint carries the compiled/resolved form of a Breakpoint that is
// not part of the wire format.
type resolvedBreakpoint struct {
	absolutePath string
	line         int32
	condition    *compiledExpr
	expressions  []*compiledExpr

	// hit latches true the instant this breakpoint's condition is found
	// truthy (or errors) so a second break event arriving before clear()
	// runs is suppressed, per spec §4.5: "only the first hit is reported."
	hit bool
}

// IsCaptured reports whether the breakpoint has produced output: a Status
// (set-time failure or hit with an error), captured stack frames, evaluated
// expressions, or a non-empty rendered log message.
func (b *Breakpoint) IsCaptured() bool {
	return b.Status != nil || b.StackFrames != nil || b.EvaluatedExpressions != nil || b.RenderedLogMessage != ""
}

// lifecycle is the internal state of a Breakpoint slot inside the Registry.
type lifecycle int

const (
	lifecyclePending lifecycle = iota
	lifecycleCaptured
	lifecycleCleared
)
