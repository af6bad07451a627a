// Package expr implements a small, side-effect-free expression grammar used
// for breakpoint conditions and watch expressions: a subset of the dynamic
// scripting language the debugged runtime executes (arithmetic, comparisons,
// member/index access, literals, the conditional operator) deliberately
// missing everything that can mutate state or transfer control.
package expr

import "fmt"

// TokenKind enumerates the lexical categories the Lexer produces.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenNumber
	TokenString
	TokenPunct
	TokenKeyword
)

// Token is one lexical unit, with its byte offset for error messages.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int
}

func (t Token) String() string {
	return fmt.Sprintf("%s@%d", t.Text, t.Offset)
}

// keywords are reserved identifiers. Anything not in this set that looks like
// an identifier is TokenIdent.
var keywords = map[string]bool{
	"this":     true,
	"true":     true,
	"false":    true,
	"null":     true,
	"undefined": true,
	"new":      true,
	"return":   true,
	"throw":    true,
	"var":      true,
	"let":      true,
	"const":    true,
	"function": true,
	"debugger": true,
	"if":       true,
	"else":     true,
	"while":    true,
	"for":      true,
	"try":      true,
	"catch":    true,
	"finally":  true,
	"in":       true,
	"instanceof": true,
	"typeof":   true,
	"delete":   true,
	"void":     true,
}
