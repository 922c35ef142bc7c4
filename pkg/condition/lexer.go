package condition

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenOperator // == != < <= > >= + - * / %
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokenEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q", t.text)
}

// lex splits an expression into tokens. Keywords (or, and, not, true,
// false) come back as plain identifiers and are classified by the parser.
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c >= '0' && c <= '9':
			start := i
			for i < len(input) && (input[i] >= '0' && input[i] <= '9' || input[i] == '.') {
				i++
			}
			text := input[start:i]
			if strings.Count(text, ".") > 1 {
				return nil, fmt.Errorf("invalid number %q at offset %d", text, start)
			}
			tokens = append(tokens, token{tokenNumber, text, start})

		case c == '_' || unicode.IsLetter(rune(c)):
			start := i
			for i < len(input) && (input[i] == '_' || isAlphanumeric(input[i])) {
				i++
			}
			tokens = append(tokens, token{tokenIdent, input[start:i], start})

		case c == '\'' || c == '"':
			quote := c
			start := i
			i++
			for i < len(input) && input[i] != quote {
				i++
			}
			if i >= len(input) {
				return nil, fmt.Errorf("unterminated string at offset %d", start)
			}
			tokens = append(tokens, token{tokenString, input[start+1 : i], start})
			i++

		case c == '(':
			tokens = append(tokens, token{tokenLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokenRParen, ")", i})
			i++
		case c == '[':
			tokens = append(tokens, token{tokenLBracket, "[", i})
			i++
		case c == ']':
			tokens = append(tokens, token{tokenRBracket, "]", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokenComma, ",", i})
			i++

		case c == '=' || c == '!' || c == '<' || c == '>':
			start := i
			i++
			if i < len(input) && input[i] == '=' {
				i++
			}
			op := input[start:i]
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("unexpected %q at offset %d", op, start)
			}
			tokens = append(tokens, token{tokenOperator, op, start})

		case c == '+' || c == '-' || c == '*' || c == '/' || c == '%':
			tokens = append(tokens, token{tokenOperator, string(c), i})
			i++

		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	tokens = append(tokens, token{tokenEOF, "", len(input)})
	return tokens, nil
}

func isAlphanumeric(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
