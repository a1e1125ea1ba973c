package formula

import (
	"fmt"
	"strconv"
)

// node is a parsed formula element.
type node interface {
	eval(env lookup) (float64, error)
}

// lookup resolves a placeholder name to its numeric value.
type lookup func(name string) (float64, error)

type numberNode struct{ value float64 }

type fieldNode struct{ name string }

type unaryNode struct {
	op      byte
	operand node
}

type binaryNode struct {
	op          byte
	left, right node
}

type callNode struct {
	name string
	args []node
}

type parser struct {
	tokens []token
	pos    int
}

// parse builds an AST from the formula source.
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/' | '%') unary)*
//	unary   := ('+' | '-') unary | primary
//	primary := number | {field} | FUNC '(' expr (',' expr)* ')' | '(' expr ')'
func parse(src string) (node, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, tok.text, tok.pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokenOperator || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tok.text[0], left: left, right: right}
	}
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokenOperator || (tok.text != "*" && tok.text != "/" && tok.text != "%") {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tok.text[0], left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	tok := p.peek()
	if tok.kind == tokenOperator && (tok.text == "+" || tok.text == "-") {
		p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tok.text[0], operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokenNumber:
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrSyntax, tok.text)
		}
		return &numberNode{value: v}, nil
	case tokenField:
		return &fieldNode{name: tok.text}, nil
	case tokenLParen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, fmt.Errorf("%w: expected ) at %d", ErrSyntax, closing.pos)
		}
		return inner, nil
	case tokenFunc:
		return p.call(tok)
	case tokenEOF:
		return nil, fmt.Errorf("%w: unexpected end of formula", ErrSyntax)
	default:
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, tok.text, tok.pos)
	}
}

func (p *parser) call(fn token) (node, error) {
	if open := p.next(); open.kind != tokenLParen {
		return nil, fmt.Errorf("%w: %s must be followed by (", ErrSyntax, fn.text)
	}
	var args []node
	if p.peek().kind != tokenRParen {
		for {
			arg, err := p.expr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if closing := p.next(); closing.kind != tokenRParen {
		return nil, fmt.Errorf("%w: expected ) to close %s at %d", ErrSyntax, fn.text, closing.pos)
	}
	if err := checkArity(fn.text, len(args)); err != nil {
		return nil, err
	}
	return &callNode{name: fn.text, args: args}, nil
}

func checkArity(name string, n int) error {
	switch name {
	case "ABS":
		if n != 1 {
			return fmt.Errorf("%w: ABS takes 1 argument, got %d", ErrSyntax, n)
		}
	case "ROUND":
		if n < 1 || n > 2 {
			return fmt.Errorf("%w: ROUND takes 1 or 2 arguments, got %d", ErrSyntax, n)
		}
	default:
		if n == 0 {
			return fmt.Errorf("%w: %s needs at least one argument", ErrSyntax, name)
		}
	}
	return nil
}

// walkFields calls fn for every placeholder in source order.
func walkFields(n node, fn func(name string)) {
	switch v := n.(type) {
	case *fieldNode:
		fn(v.name)
	case *unaryNode:
		walkFields(v.operand, fn)
	case *binaryNode:
		walkFields(v.left, fn)
		walkFields(v.right, fn)
	case *callNode:
		for _, arg := range v.args {
			walkFields(arg, fn)
		}
	}
}
