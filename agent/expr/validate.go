package expr

import "fmt"

// Kind distinguishes the two use sites named in spec §4.3: conditions and
// watch expressions get distinct error message formats on compile failure.
type Kind int

const (
	KindCondition Kind = iota
	KindExpression
)

// Compiled is the result of a successful compile(): a validated AST ready for
// evaluation, plus the source text it came from (for display/caching keys).
type Compiled struct {
	Source string
	AST    Node // nil means "always true" (only valid for KindCondition)
}

// CompileError is returned when parsing or whitelist validation fails. Detail
// is suitable as a StatusMessage.Description parameter; Error() embeds it so
// callers relying on substring matching (e.g. "Unexpected token") still work.
type CompileError struct {
	Kind   Kind
	Detail string
}

func (e *CompileError) Error() string {
	if e.Kind == KindCondition {
		return "Error compiling condition.: " + e.Detail
	}
	return "Error Compiling Expression: " + e.Detail
}

// Compile parses src and statically proves it is a read-only expression per
// spec §4.3's whitelist. An empty/";"-only condition compiles to a nil AST
// meaning "always true"; the same is an error for a watch expression (there is
// no "always true" value to report).
func Compile(kind Kind, src string) (*Compiled, error) {
	node, err := Parse(src)
	if err != nil {
		var se *SyntaxError
		if asSyntaxError(err, &se) {
			return nil, &CompileError{Kind: kind, Detail: se.Message}
		}
		return nil, &CompileError{Kind: kind, Detail: err.Error()}
	}
	if node == nil {
		if kind == KindExpression {
			return nil, &CompileError{Kind: kind, Detail: "empty expression"}
		}
		return &Compiled{Source: src, AST: nil}, nil
	}
	if err := whitelist(node); err != nil {
		return nil, &CompileError{Kind: kind, Detail: err.Error()}
	}
	return &Compiled{Source: src, AST: node}, nil
}

func asSyntaxError(err error, target **SyntaxError) bool {
	if se, ok := err.(*SyntaxError); ok {
		*target = se
		return true
	}
	return false
}

// whitelist walks the parsed tree and rejects any node outside the read-only
// subset named in spec §4.3. Call is in the accepted set: a function
// invocation is syntactically permitted, and its side effects are prevented
// at evaluation time (see eval.go) rather than rejected here.
func whitelist(n Node) error {
	switch v := n.(type) {
	case Literal, Ident:
		return nil
	case Member:
		return whitelist(v.Object)
	case Index:
		if err := whitelist(v.Object); err != nil {
			return err
		}
		return whitelist(v.Index)
	case Binary:
		if err := whitelist(v.Left); err != nil {
			return err
		}
		return whitelist(v.Right)
	case Unary:
		return whitelist(v.Operand)
	case Conditional:
		if err := whitelist(v.Cond); err != nil {
			return err
		}
		if err := whitelist(v.Then); err != nil {
			return err
		}
		return whitelist(v.Else)
	case Sequence:
		for _, item := range v.Items {
			if err := whitelist(item); err != nil {
				return err
			}
		}
		return nil
	case Group:
		return whitelist(v.Inner)
	case ArrayLiteral:
		for _, e := range v.Elements {
			if err := whitelist(e); err != nil {
				return err
			}
		}
		return nil
	case ObjectLiteral:
		for _, val := range v.Values {
			if err := whitelist(val); err != nil {
				return err
			}
		}
		return nil
	case Call:
		if err := whitelist(v.Callee); err != nil {
			return err
		}
		for _, a := range v.Args {
			if err := whitelist(a); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported expression node %T", n)
	}
}
