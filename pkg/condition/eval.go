package condition

import (
	"fmt"
	"math"
)

// env is the fixed evaluation scope. Identifiers resolve against vars
// and calls against funcs; there is no other name resolution.
type env struct {
	vars  map[string]interface{}
	funcs map[string]predicateFunc
}

func (n *literalNode) eval(_ *env) (interface{}, error) {
	return n.value, nil
}

func (n *varNode) eval(e *env) (interface{}, error) {
	v, ok := e.vars[n.name]
	if !ok {
		return nil, fmt.Errorf("unknown name %q", n.name)
	}
	return v, nil
}

func (n *listNode) eval(e *env) (interface{}, error) {
	out := make([]interface{}, 0, len(n.elems))
	for _, elem := range n.elems {
		v, err := elem.eval(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (n *callNode) eval(e *env) (interface{}, error) {
	fn, ok := e.funcs[n.name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", n.name)
	}
	args := make([]interface{}, 0, len(n.args))
	for _, arg := range n.args {
		v, err := arg.eval(e)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	out, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.name, err)
	}
	return out, nil
}

func (n *notNode) eval(e *env) (interface{}, error) {
	v, err := n.operand.eval(e)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

func (n *negNode) eval(e *env) (interface{}, error) {
	v, err := n.operand.eval(e)
	if err != nil {
		return nil, err
	}
	f, ok := asNumber(v)
	if !ok {
		return nil, fmt.Errorf("cannot negate %T", v)
	}
	return -f, nil
}

func (n *logicNode) eval(e *env) (interface{}, error) {
	left, err := n.left.eval(e)
	if err != nil {
		return nil, err
	}
	// Short circuit.
	if n.op == "or" && truthy(left) {
		return true, nil
	}
	if n.op == "and" && !truthy(left) {
		return false, nil
	}
	right, err := n.right.eval(e)
	if err != nil {
		return nil, err
	}
	return truthy(right), nil
}

func (n *binaryNode) eval(e *env) (interface{}, error) {
	left, err := n.left.eval(e)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(e)
	if err != nil {
		return nil, err
	}

	if n.op == "+" {
		ls, lok := left.(string)
		rs, rok := right.(string)
		if lok && rok {
			return ls + rs, nil
		}
	}

	lf, lok := asNumber(left)
	rf, rok := asNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot apply %s to %T and %T", n.op, left, right)
	}
	switch n.op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown operator %q", n.op)
}

func (n *chainNode) eval(e *env) (interface{}, error) {
	prev, err := n.operands[0].eval(e)
	if err != nil {
		return nil, err
	}
	for i, op := range n.ops {
		next, err := n.operands[i+1].eval(e)
		if err != nil {
			return nil, err
		}
		ok, err := compare(op, prev, next)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		prev = next
	}
	return true, nil
}

// truthy follows the original scripting semantics: false/zero/empty is
// false, everything else is true.
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []interface{}:
		return len(val) > 0
	default:
		return true
	}
}

func asNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func compare(op string, a, b interface{}) (bool, error) {
	switch op {
	case "==", "!=":
		eq := valuesEqual(a, b)
		if op == "!=" {
			return !eq, nil
		}
		return eq, nil
	}

	af, aok := asNumber(a)
	bf, bok := asNumber(b)
	if aok && bok {
		switch op {
		case "<":
			return af < bf, nil
		case "<=":
			return af <= bf, nil
		case ">":
			return af > bf, nil
		case ">=":
			return af >= bf, nil
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch op {
		case "<":
			return as < bs, nil
		case "<=":
			return as <= bs, nil
		case ">":
			return as > bs, nil
		case ">=":
			return as >= bs, nil
		}
	}
	return false, fmt.Errorf("cannot compare %T and %T with %s", a, b, op)
}

func valuesEqual(a, b interface{}) bool {
	if af, aok := asNumber(a); aok {
		if bf, bok := asNumber(b); bok {
			return af == bf
		}
		return false
	}
	if as, aok := a.(string); aok {
		bs, bok := b.(string)
		return bok && as == bs
	}
	return a == b
}
