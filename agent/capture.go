package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/snapline/snapagent/agent/expr"
)

// capturer is the State Capturer (spec §4.6): given a hit breakpoint and the
// paused frames the Bridge delivered, it produces the bounded
// stackFrames/variableTable/evaluatedExpressions payload.
type capturer struct {
	cfg Config
}

func newCapturer(cfg Config) *capturer {
	return &capturer{cfg: cfg}
}

// interner assigns each distinct compound value (by pointer identity) a
// single variableTable slot, breaking cycles and sharing structure per
// spec §4.6.
type interner struct {
	index map[any]int32
	table []Variable
}

func newInterner() *interner {
	return &interner{index: make(map[any]int32)}
}

// intern returns key's table index, allocating a placeholder slot on first
// sight. The caller must overwrite table[idx] after recursing into key's
// members; a recursive reference to key before that happens naturally reads
// the placeholder, which is how cycles terminate without extra bookkeeping.
func (in *interner) intern(key any) (int32, bool) {
	if idx, ok := in.index[key]; ok {
		return idx, true
	}
	idx := int32(len(in.table))
	in.table = append(in.table, Variable{})
	in.index[key] = idx
	return idx, false
}

// capture populates bp's output fields from frames. For action LOG it only
// evaluates the watch expressions and renders the log message; frames and
// the stack are left empty per spec §4.6.
func (c *capturer) capture(bp *Breakpoint, frames []Frame) {
	var top Frame
	if len(frames) > 0 {
		top = frames[0]
	}
	in := newInterner()

	if bp.Action == ActionLog {
		bp.EvaluatedExpressions = c.evaluateExpressions(bp, top, in)
		bp.VariableTable = in.table
		bp.RenderedLogMessage = renderLogMessage(bp.LogMessageFormat, bp.EvaluatedExpressions)
		return
	}

	n := len(frames)
	if c.cfg.MaxFrames > 0 && n > c.cfg.MaxFrames {
		n = c.cfg.MaxFrames
	}
	stackFrames := make([]StackFrame, 0, n)
	for i := 0; i < n; i++ {
		f := frames[i]
		sf := StackFrame{Function: functionName(f.Function), Location: f.Location}
		if i < c.cfg.MaxExpandFrames {
			sf.Arguments = c.captureBindings(f.Arguments, in)
			sf.Locals = c.captureBindings(f.Locals, in)
		} else {
			sf.Arguments = []Variable{{Status: statusFrameNotExpanded()}}
			sf.Locals = []Variable{{Status: statusFrameNotExpanded()}}
		}
		stackFrames = append(stackFrames, sf)
	}
	bp.StackFrames = stackFrames
	bp.EvaluatedExpressions = c.evaluateExpressions(bp, top, in)
	bp.VariableTable = in.table
}

// captureConditionError marks bp as hit-with-error per this agent's
// resolution of spec.md's condition-runtime-error Open Question: a runtime
// failure evaluating the condition is reported as a hit whose status
// carries the failure, not a silent skip.
func (c *capturer) captureConditionError(bp *Breakpoint, frames []Frame, err error) {
	bp.Status = errConditionRuntime(err.Error())
}

func functionName(name string) string {
	if name == "" {
		return "<anonymous>"
	}
	return name
}

func (c *capturer) captureBindings(bindings []NamedValue, in *interner) []Variable {
	out := make([]Variable, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, c.captureNamed(b.Name, b.Value, in))
	}
	return out
}

func (c *capturer) evaluateExpressions(bp *Breakpoint, frame Frame, in *interner) []Variable {
	if bp.resolved == nil || len(bp.resolved.expressions) == 0 {
		return nil
	}
	sc := newScope(frame.This, frame.Arguments, frame.Locals)
	out := make([]Variable, 0, len(bp.resolved.expressions))
	for i, ce := range bp.resolved.expressions {
		name := bp.Expressions[i]
		val, err := ce.evaluate(sc)
		if err != nil {
			if _, ok := err.(*expr.HazardError); ok {
				out = append(out, Variable{Name: name, Status: errValueHazardous()})
			} else {
				out = append(out, Variable{Name: name, Status: errExpressionRuntime(err.Error())})
			}
			continue
		}
		out = append(out, c.captureNamed(name, val, in))
	}
	return out
}

func (c *capturer) captureNamed(name string, v any, in *interner) Variable {
	variable := c.captureValue(v, in)
	variable.Name = name
	return variable
}

func (c *capturer) captureValue(v any, in *interner) Variable {
	switch t := v.(type) {
	case nil:
		return Variable{Value: "null", Type: "null"}
	case bool:
		return Variable{Value: strconv.FormatBool(t), Type: "boolean"}
	case float64:
		return Variable{Value: strconv.FormatFloat(t, 'g', -1, 64), Type: "number"}
	case string:
		return Variable{Value: c.truncate(t), Type: "string"}
	case Getter:
		return Variable{Type: "function", Status: errValueHazardous()}
	case *Native:
		idx, seen := in.intern(t)
		if !seen {
			in.table[idx] = c.buildNative(t)
		}
		return Variable{Type: "object", VarTableIndex: &idx}
	case *Array:
		idx, seen := in.intern(t)
		if !seen {
			in.table[idx] = c.buildArray(t, in)
		}
		return Variable{Type: "array", VarTableIndex: &idx}
	case *Object:
		idx, seen := in.intern(t)
		if !seen {
			in.table[idx] = c.buildObject(t, in)
		}
		return Variable{Type: "object", VarTableIndex: &idx}
	default:
		return Variable{Value: fmt.Sprintf("%v", t), Type: "object"}
	}
}

func (c *capturer) buildObject(o *Object, in *interner) Variable {
	total := len(o.Keys)
	n := total
	if c.cfg.MaxProperties > 0 && n > c.cfg.MaxProperties {
		n = c.cfg.MaxProperties
	}
	members := make([]Variable, 0, n)
	for i := 0; i < n; i++ {
		key := o.Keys[i]
		val := o.Values[i]
		if _, ok := val.(Getter); ok {
			members = append(members, Variable{Name: key, Status: errValueHazardous()})
			continue
		}
		members = append(members, c.captureNamed(key, val, in))
	}
	variable := Variable{Type: "object", Members: members}
	if n < total {
		variable.Status = statusValueTruncated(n, total)
	}
	return variable
}

func (c *capturer) buildArray(a *Array, in *interner) Variable {
	total := len(a.Elements)
	n := total
	if c.cfg.MaxProperties > 0 && n > c.cfg.MaxProperties {
		n = c.cfg.MaxProperties
	}
	members := make([]Variable, 0, n)
	for i := 0; i < n; i++ {
		val := a.Elements[i]
		if _, ok := val.(Getter); ok {
			members = append(members, Variable{Name: strconv.Itoa(i), Status: errValueHazardous()})
			continue
		}
		members = append(members, c.captureNamed(strconv.Itoa(i), val, in))
	}
	variable := Variable{Type: "array", Members: members}
	if n < total {
		variable.Status = statusValueTruncated(n, total)
	}
	return variable
}

func (c *capturer) buildNative(nat *Native) Variable {
	members := make([]Variable, 0, len(nat.Keys))
	for _, key := range nat.Keys {
		members = append(members, Variable{Name: key, Status: errValueHazardous()})
	}
	return Variable{Type: "object", Members: members}
}

func (c *capturer) truncate(s string) string {
	if c.cfg.MaxStringLength <= 0 || len(s) <= c.cfg.MaxStringLength {
		return s
	}
	return s[:c.cfg.MaxStringLength] + "..."
}

// renderLogMessage expands format's {n} positional placeholders against
// evaluated's string values, per this agent's resolution of spec §4.6's
// unspecified logpoint substitution syntax.
func renderLogMessage(format string, evaluated []Variable) string {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] == '{' {
			if end := strings.IndexByte(format[i:], '}'); end > 0 {
				idxStr := format[i+1 : i+end]
				if idx, err := strconv.Atoi(idxStr); err == nil && idx >= 0 && idx < len(evaluated) {
					sb.WriteString(displayVariable(evaluated[idx]))
					i += end
					continue
				}
			}
		}
		sb.WriteByte(format[i])
	}
	return sb.String()
}

func displayVariable(v Variable) string {
	if v.Status != nil && v.Status.IsError {
		return "<error>"
	}
	return v.Value
}
