package agent

import "github.com/snapline/snapagent/agent/expr"

// Array is a captured JS-like array value. It is always referenced by
// pointer so that two Variables can share a table entry by pointer identity
// and so that cyclic structures are representable at all.
type Array struct {
	Elements []any
}

// Object is a captured JS-like object value with a fixed member order:
// source objects enumerate properties in insertion order, which a Go map
// cannot preserve, so captured objects carry their own explicit order.
type Object struct {
	Keys   []string
	Values []any
}

// Getter marks a single property as accessor-backed. Invoking Fn would run
// user code with unknown side effects, so the capturer and evaluator must
// report it as hazardous instead of calling it.
type Getter struct {
	Fn func() (any, error)
}

// Native marks a value as backed by the host runtime rather than plain user
// data (process.env is the canonical example). Member names are known but
// every value is off-limits: each is reported with a hazardous status.
type Native struct {
	Keys []string
}

// scope is the read-only environment a capture or watch-expression
// evaluation runs against. It implements expr.Env directly so the compiled
// condition/expression evaluator can run against frame locals without any
// adapter layer.
type scope struct {
	vars map[string]any
}

func newScope(this any, args, locals []NamedValue) *scope {
	vars := make(map[string]any, len(args)+len(locals)+1)
	vars["this"] = this
	for _, a := range args {
		vars[a.Name] = a.Value
	}
	for _, l := range locals {
		vars[l.Name] = l.Value
	}
	return &scope{vars: vars}
}

func (s *scope) Lookup(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *scope) GetMember(obj any, name string) (any, *expr.HazardError) {
	switch v := obj.(type) {
	case *Native:
		return nil, &expr.HazardError{Message: "native-backed property " + name}
	case *Object:
		for i, k := range v.Keys {
			if k != name {
				continue
			}
			return resolveMember(v.Values[i], name)
		}
		return nil, nil // absent member reads as undefined, matching a plain object property miss
	default:
		return nil, nil
	}
}

func (s *scope) GetIndex(obj any, idx any) (any, *expr.HazardError) {
	switch v := obj.(type) {
	case *Native:
		return nil, &expr.HazardError{Message: "native-backed property"}
	case *Array:
		i, ok := idx.(float64)
		if !ok || int(i) < 0 || int(i) >= len(v.Elements) {
			return nil, nil
		}
		return resolveMember(v.Elements[int(i)], "")
	case *Object:
		name, ok := idx.(string)
		if !ok {
			return nil, nil
		}
		return s.GetMember(v, name)
	default:
		return nil, nil
	}
}

// resolveMember applies the Getter hazard rule wherever the expression
// evaluator reads a member; capture's own member walk applies the same rule
// inline.
func resolveMember(v any, name string) (any, *expr.HazardError) {
	if _, ok := v.(Getter); ok {
		return nil, &expr.HazardError{Message: "accessor property " + name}
	}
	return v, nil
}

var _ expr.Env = (*scope)(nil)
