package agent

import (
	"errors"
	"fmt"
)

// Sentinel kinds for the error taxonomy in spec §7. Use errors.Is against these
// to branch on category; the attached StatusMessage carries the user-facing text.
var (
	ErrPathNotFound           = errors.New("source path not found")
	ErrPathAmbiguous          = errors.New("source path ambiguous")
	ErrUnsupportedExtension   = errors.New("unsupported source extension")
	ErrInvalidLine            = errors.New("invalid line number")
	ErrConditionCompile       = errors.New("condition compile error")
	ErrExpressionCompile      = errors.New("expression compile error")
	ErrExpressionRuntime      = errors.New("expression runtime error")
	ErrValueHazardous         = errors.New("hazardous value access")
	ErrDuplicateBreakpointID  = errors.New("duplicate breakpoint id")
	ErrBreakpointNotFound     = errors.New("breakpoint not found")
	ErrWaiterAlreadyInstalled = errors.New("wait already installed for this breakpoint")
)

// statusError pairs a sentinel error with the StatusMessage that should be
// attached to the Breakpoint and surfaced to the caller.
type statusError struct {
	kind   error
	status *StatusMessage
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.status.Description.Format)
}

func (e *statusError) Unwrap() error {
	return e.kind
}

func newStatusError(kind error, status *StatusMessage) *statusError {
	return &statusError{kind: kind, status: status}
}

func errPathNotFound(hint string) error {
	return newStatusError(ErrPathNotFound,
		newStatus(true, RefersToSourceLocation, DefaultMessages.SourceFileNotFound, hint))
}

func errPathAmbiguous() error {
	return newStatusError(ErrPathAmbiguous,
		newStatus(true, RefersToSourceLocation, DefaultMessages.SourceFileAmbiguous))
}

func errUnsupportedExtension(ext string) error {
	return newStatusError(ErrUnsupportedExtension,
		newStatus(true, RefersToSourceLocation, DefaultMessages.UnsupportedExtension, ext))
}

func errInvalidLine(basename string, line int32) error {
	return newStatusError(ErrInvalidLine,
		newStatus(true, RefersToSourceLocation, DefaultMessages.InvalidLineNumber,
			basename, fmt.Sprintf("%d", line)))
}

func errConditionCompile(detail string) error {
	format := DefaultMessages.ConditionCompileError
	var params []string
	if detail != "" {
		params = []string{detail}
	}
	return newStatusError(ErrConditionCompile,
		newStatus(true, RefersToCondition, format, params...))
}

func errExpressionCompile(detail string) error {
	format := DefaultMessages.ExpressionCompileError
	var params []string
	if detail != "" {
		params = []string{detail}
	}
	return newStatusError(ErrExpressionCompile,
		newStatus(true, RefersToExpression, format, params...))
}

func errExpressionRuntime(detail string) *StatusMessage {
	return newStatus(true, RefersToVariableValue, DefaultMessages.ExpressionRuntimeError, detail)
}

// errConditionRuntime reports a condition that failed during evaluation
// rather than at compile time. Per this agent's resolution of spec.md's
// second Open Question, this is attached as the Breakpoint's own status on a
// hit, not treated as a silent skip.
func errConditionRuntime(detail string) *StatusMessage {
	return newStatus(true, RefersToCondition, DefaultMessages.ExpressionRuntimeError, detail)
}

func errValueHazardous() *StatusMessage {
	return newStatus(true, RefersToVariableValue, DefaultMessages.VariableValueHazardous)
}

func statusValueTruncated(shown, total int) *StatusMessage {
	return newStatus(false, RefersToUnspecified, DefaultMessages.ValueTruncated,
		fmt.Sprintf("%d", shown), fmt.Sprintf("%d", total))
}

func statusFrameNotExpanded() *StatusMessage {
	return newStatus(false, RefersToUnspecified, DefaultMessages.FrameNotExpanded)
}
