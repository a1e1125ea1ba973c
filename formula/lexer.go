package formula

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenField
	tokenFunc
	tokenOperator
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// functions lists the callable names, upper-cased.
var functions = map[string]bool{
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
	"ROUND": true,
	"ABS":   true,
}

// lex splits a formula into tokens. Anything outside digits, decimal points,
// arithmetic operators, parentheses, commas, whitespace, {placeholders} and
// known function names is rejected here, before any value is looked at.
func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || c == '.':
			start := i
			dots := 0
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				if src[i] == '.' {
					dots++
				}
				i++
			}
			text := src[start:i]
			if dots > 1 || text == "." {
				return nil, fmt.Errorf("%w: malformed number %q at %d", ErrSyntax, text, start)
			}
			tokens = append(tokens, token{kind: tokenNumber, text: text, pos: start})
		case c == '{':
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated placeholder at %d", ErrSyntax, i)
			}
			name := src[i+1 : i+1+end]
			if name == "" || strings.ContainsRune(name, '{') {
				return nil, fmt.Errorf("%w: invalid placeholder at %d", ErrSyntax, i)
			}
			tokens = append(tokens, token{kind: tokenField, text: name, pos: i})
			i += end + 2
		case strings.IndexByte("+-*/%", c) >= 0:
			tokens = append(tokens, token{kind: tokenOperator, text: string(c), pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokenComma, text: ",", pos: i})
			i++
		case isLetter(c):
			start := i
			for i < len(src) && isLetter(src[i]) {
				i++
			}
			name := strings.ToUpper(src[start:i])
			if !functions[name] {
				return nil, fmt.Errorf("%w: %q at %d", ErrUnknownFunction, src[start:i], start)
			}
			tokens = append(tokens, token{kind: tokenFunc, text: name, pos: start})
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, c, i)
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, pos: len(src)})
	return tokens, nil
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
