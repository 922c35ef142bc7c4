package condition

import (
	"fmt"
	"strconv"
)

// Expression AST. Nodes evaluate against an env, which carries the
// trigger scope variables and the sealed predicate table.

type node interface {
	eval(env *env) (interface{}, error)
}

type literalNode struct {
	value interface{}
}

type varNode struct {
	name string
}

type listNode struct {
	elems []node
}

type callNode struct {
	name string
	args []node
}

type notNode struct {
	operand node
}

type negNode struct {
	operand node
}

type binaryNode struct {
	op          string // + - * / %
	left, right node
}

type logicNode struct {
	op          string // and, or
	left, right node
}

// chainNode holds a comparison chain such as 9 <= hour <= 17, which is
// true when every adjacent pair compares true.
type chainNode struct {
	operands []node
	ops      []string
}

type parser struct {
	tokens []token
	pos    int
}

func parse(input string) (node, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %s after expression", p.peek())
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptIdent(name string) bool {
	if p.peek().kind == tokenIdent && p.peek().text == name {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	if p.peek().kind != tokenOperator {
		return "", false
	}
	for _, op := range ops {
		if p.peek().text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptIdent("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptIdent("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logicNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.acceptIdent("not") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	first, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	var ops []string
	for {
		op, ok := p.acceptOp("==", "!=", "<", "<=", ">", ">=")
		if !ok {
			break
		}
		operand, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return first, nil
	}
	return &chainNode{operands: operands, ops: ops}, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if _, ok := p.acceptOp("-"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokenNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.text)
		}
		return &literalNode{value: f}, nil

	case tokenString:
		p.next()
		return &literalNode{value: t.text}, nil

	case tokenLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokenRParen {
			return nil, fmt.Errorf("expected ) but found %s", p.peek())
		}
		p.next()
		return inner, nil

	case tokenLBracket:
		p.next()
		var elems []node
		if p.peek().kind != tokenRBracket {
			for {
				elem, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				elems = append(elems, elem)
				if p.peek().kind != tokenComma {
					break
				}
				p.next()
			}
		}
		if p.peek().kind != tokenRBracket {
			return nil, fmt.Errorf("expected ] but found %s", p.peek())
		}
		p.next()
		return &listNode{elems: elems}, nil

	case tokenIdent:
		p.next()
		switch t.text {
		case "true", "True":
			return &literalNode{value: true}, nil
		case "false", "False":
			return &literalNode{value: false}, nil
		}
		if p.peek().kind == tokenLParen {
			p.next()
			var args []node
			if p.peek().kind != tokenRParen {
				for {
					arg, err := p.parseOr()
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
			if p.peek().kind != tokenRParen {
				return nil, fmt.Errorf("expected ) but found %s", p.peek())
			}
			p.next()
			return &callNode{name: t.text, args: args}, nil
		}
		return &varNode{name: t.text}, nil

	default:
		return nil, fmt.Errorf("unexpected %s", t)
	}
}
