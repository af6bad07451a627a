package expr

import "fmt"

// Parser is a recursive-descent parser over operator precedence, modeled
// after the shape of Go's own expression grammar (go/parser's precedence
// climbing) but for the JS-like subset named in spec §4.3.
type Parser struct {
	toks []Token
	pos  int
}

// Parse parses a full expression string. An empty, whitespace-only, or
// bare-";" string is accepted and returns a nil Node representing
// "always true" per spec §4.3.
func Parse(src string) (Node, error) {
	toks, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	if p.cur().Kind == TokenEOF {
		return nil, nil
	}
	if p.cur().Kind == TokenPunct && p.cur().Text == ";" && p.peekIsEOF(1) {
		return nil, nil
	}

	n, err := p.parseSequence()
	if err != nil {
		return nil, err
	}
	// tolerate one trailing ";" (e.g. "x==1;") the same way the reference
	// grammar treats a bare expression statement
	if p.cur().Kind == TokenPunct && p.cur().Text == ";" {
		p.advance()
	}
	if p.cur().Kind != TokenEOF {
		return nil, &SyntaxError{Message: fmt.Sprintf("Unexpected token %q", p.cur().Text), Offset: p.cur().Offset}
	}
	return n, nil
}

func (p *Parser) peekIsEOF(ahead int) bool {
	idx := p.pos + ahead
	return idx < len(p.toks) && p.toks[idx].Kind == TokenEOF
}

func (p *Parser) cur() Token {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return Token{Kind: TokenEOF}
}

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expectPunct(text string) error {
	if p.cur().Kind == TokenPunct && p.cur().Text == text {
		p.advance()
		return nil
	}
	return &SyntaxError{Message: fmt.Sprintf("Unexpected token, expected %q", text), Offset: p.cur().Offset}
}

// parseSequence handles the lowest-precedence comma operator.
func (p *Parser) parseSequence() (Node, error) {
	first, err := p.parseAssignOrLower()
	if err != nil {
		return nil, err
	}
	if !(p.cur().Kind == TokenPunct && p.cur().Text == ",") {
		return first, nil
	}
	items := []Node{first}
	for p.cur().Kind == TokenPunct && p.cur().Text == "," {
		p.advance()
		n, err := p.parseAssignOrLower()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return Sequence{Items: items}, nil
}

// parseAssignOrLower rejects assignment/compound-assignment explicitly so the
// error names the construct rather than reporting a generic syntax error.
func (p *Parser) parseAssignOrLower() (Node, error) {
	n, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == TokenPunct {
		switch p.cur().Text {
		case "=", "+=", "-=", "*=", "/=", "%=":
			return nil, &SyntaxError{Message: "assignment is not allowed in a read-only expression", Offset: p.cur().Offset}
		}
	}
	return n, nil
}

func (p *Parser) parseConditional() (Node, error) {
	cond, err := p.parseNullish()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == TokenPunct && p.cur().Text == "?" {
		p.advance()
		then, err := p.parseAssignOrLower()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		els, err := p.parseAssignOrLower()
		if err != nil {
			return nil, err
		}
		return Conditional{Cond: cond, Then: then, Else: els}, nil
	}
	return cond, nil
}

func (p *Parser) parseNullish() (Node, error) {
	return p.parseBinaryLevel([]string{"??"}, p.parseOr)
}
func (p *Parser) parseOr() (Node, error) {
	return p.parseBinaryLevel([]string{"||"}, p.parseAnd)
}
func (p *Parser) parseAnd() (Node, error) {
	return p.parseBinaryLevel([]string{"&&"}, p.parseBitOr)
}
func (p *Parser) parseBitOr() (Node, error) {
	return p.parseBinaryLevel([]string{"|"}, p.parseBitXor)
}
func (p *Parser) parseBitXor() (Node, error) {
	return p.parseBinaryLevel([]string{"^"}, p.parseBitAnd)
}
func (p *Parser) parseBitAnd() (Node, error) {
	return p.parseBinaryLevel([]string{"&"}, p.parseEquality)
}
func (p *Parser) parseEquality() (Node, error) {
	return p.parseBinaryLevel([]string{"==", "!=", "===", "!=="}, p.parseRelational)
}
func (p *Parser) parseRelational() (Node, error) {
	return p.parseBinaryLevel([]string{"<", ">", "<=", ">=", "in", "instanceof"}, p.parseShift)
}
func (p *Parser) parseShift() (Node, error) {
	return p.parseBinaryLevel([]string{"<<", ">>", ">>>"}, p.parseAdditive)
}
func (p *Parser) parseAdditive() (Node, error) {
	return p.parseBinaryLevel([]string{"+", "-"}, p.parseMultiplicative)
}
func (p *Parser) parseMultiplicative() (Node, error) {
	return p.parseBinaryLevel([]string{"*", "/", "%"}, p.parseExponent)
}
func (p *Parser) parseExponent() (Node, error) {
	return p.parseBinaryLevel([]string{"**"}, p.parseUnary)
}

func (p *Parser) parseBinaryLevel(ops []string, next func() (Node, error)) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		if p.cur().Kind == TokenPunct || p.cur().Kind == TokenKeyword {
			for _, op := range ops {
				if p.cur().Text == op {
					matched = op
					break
				}
			}
		}
		if matched == "" {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: matched, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Node, error) {
	if p.cur().Kind == TokenPunct {
		switch p.cur().Text {
		case "!", "-", "+", "~":
			op := p.advance().Text
			operand, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return Unary{Op: op, Operand: operand}, nil
		case "++", "--":
			return nil, &SyntaxError{Message: "increment/decrement is not allowed in a read-only expression", Offset: p.cur().Offset}
		}
	}
	if p.cur().Kind == TokenKeyword {
		switch p.cur().Text {
		case "typeof", "void":
			op := p.advance().Text
			operand, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return Unary{Op: op, Operand: operand}, nil
		case "new":
			return nil, &SyntaxError{Message: "'new' is not allowed in a read-only expression", Offset: p.cur().Offset}
		case "delete":
			return nil, &SyntaxError{Message: "'delete' is not allowed in a read-only expression", Offset: p.cur().Offset}
		case "return":
			return nil, &SyntaxError{Message: "'return' is not allowed in a read-only expression", Offset: p.cur().Offset}
		case "throw":
			return nil, &SyntaxError{Message: "'throw' is not allowed in a read-only expression", Offset: p.cur().Offset}
		case "debugger":
			return nil, &SyntaxError{Message: "'debugger' is not allowed in a read-only expression", Offset: p.cur().Offset}
		case "var", "let", "const":
			return nil, &SyntaxError{Message: "variable declaration is not allowed in a read-only expression", Offset: p.cur().Offset}
		case "function":
			return nil, &SyntaxError{Message: "function declaration is not allowed in a read-only expression", Offset: p.cur().Offset}
		case "if", "while", "for", "try", "catch", "finally":
			return nil, &SyntaxError{Message: "control-flow statements are not allowed in a read-only expression", Offset: p.cur().Offset}
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.cur().Kind == TokenPunct && p.cur().Text == ".":
			p.advance()
			if p.cur().Kind != TokenIdent && p.cur().Kind != TokenKeyword {
				return nil, &SyntaxError{Message: "Unexpected token, expected property name", Offset: p.cur().Offset}
			}
			name := p.advance().Text
			n = Member{Object: n, Property: name}
		case p.cur().Kind == TokenPunct && p.cur().Text == "[":
			p.advance()
			idx, err := p.parseAssignOrLower()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			n = Index{Object: n, Index: idx}
		case p.cur().Kind == TokenPunct && p.cur().Text == "(":
			p.advance()
			var args []Node
			for !(p.cur().Kind == TokenPunct && p.cur().Text == ")") {
				arg, err := p.parseAssignOrLower()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.cur().Kind == TokenPunct && p.cur().Text == "," {
					p.advance()
					continue
				}
				break
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			n = Call{Callee: n, Args: args}
		case p.cur().Kind == TokenPunct && (p.cur().Text == "++" || p.cur().Text == "--"):
			return nil, &SyntaxError{Message: "increment/decrement is not allowed in a read-only expression", Offset: p.cur().Offset}
		default:
			return n, nil
		}
	}
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.cur()
	switch {
	case tok.Kind == TokenNumber || tok.Kind == TokenString:
		p.advance()
		return Literal{Raw: tok.Text}, nil
	case tok.Kind == TokenKeyword && (tok.Text == "true" || tok.Text == "false" || tok.Text == "null" || tok.Text == "undefined"):
		p.advance()
		return Literal{Raw: tok.Text}, nil
	case tok.Kind == TokenKeyword && tok.Text == "this":
		p.advance()
		return Ident{Name: "this"}, nil
	case tok.Kind == TokenIdent:
		p.advance()
		return Ident{Name: tok.Text}, nil
	case tok.Kind == TokenPunct && tok.Text == "(":
		p.advance()
		inner, err := p.parseSequence()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return Group{Inner: inner}, nil
	case tok.Kind == TokenPunct && tok.Text == "[":
		return p.parseArrayLiteral()
	case tok.Kind == TokenPunct && tok.Text == "{":
		return p.parseObjectLiteral()
	default:
		return nil, &SyntaxError{Message: fmt.Sprintf("Unexpected token %q", tok.Text), Offset: tok.Offset}
	}
}

func (p *Parser) parseArrayLiteral() (Node, error) {
	p.advance() // "["
	var elems []Node
	for !(p.cur().Kind == TokenPunct && p.cur().Text == "]") {
		e, err := p.parseAssignOrLower()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.cur().Kind == TokenPunct && p.cur().Text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return ArrayLiteral{Elements: elems}, nil
}

func (p *Parser) parseObjectLiteral() (Node, error) {
	p.advance() // "{"
	var keys []string
	var values []Node
	for !(p.cur().Kind == TokenPunct && p.cur().Text == "}") {
		var key string
		switch p.cur().Kind {
		case TokenIdent, TokenKeyword:
			key = p.advance().Text
		case TokenString:
			key = p.advance().Text
		case TokenNumber:
			key = p.advance().Text
		default:
			return nil, &SyntaxError{Message: "Unexpected token, expected property key", Offset: p.cur().Offset}
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		val, err := p.parseAssignOrLower()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		values = append(values, val)
		if p.cur().Kind == TokenPunct && p.cur().Text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return ObjectLiteral{Keys: keys, Values: values}, nil
}
