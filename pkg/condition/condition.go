package condition

import (
	"fmt"
	"sync"

	"github.com/gorocrail/gorocrail/pkg/model"
)

// EvalError reports a failed condition evaluation. Callers that treat
// conditions as gates should treat any EvalError as the condition being
// false.
type EvalError struct {
	Expr string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.Expr, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Scope carries the trigger-time variables visible to an expression.
// ObjType, ObjID and Obj are set for event triggers only.
type Scope struct {
	Hour    int
	Minute  int
	ObjType string
	ObjID   string
	Obj     interface{}
}

// Evaluator evaluates restricted condition expressions against a layout
// model. Expressions may use the scope variables hour, minute, time,
// objType, objID and obj, the boolean operators or/and/not, chained
// comparisons, arithmetic, list literals, and the sealed helper library
// bound to the model. Nothing else resolves.
type Evaluator struct {
	funcs map[string]predicateFunc

	mu    sync.RWMutex
	cache map[string]node
}

// New builds an evaluator bound to m.
func New(m *model.Model) *Evaluator {
	return &Evaluator{
		funcs: predicateTable(m),
		cache: make(map[string]node),
	}
}

// Eval evaluates expr under scope. An empty expression is true. Any
// lexing, parsing or evaluation failure returns a non-nil *EvalError
// and false.
func (e *Evaluator) Eval(expr string, scope Scope) (bool, error) {
	if expr == "" {
		return true, nil
	}

	n, err := e.compiled(expr)
	if err != nil {
		return false, &EvalError{Expr: expr, Err: err}
	}

	env := &env{
		funcs: e.funcs,
		vars: map[string]interface{}{
			"hour":    float64(scope.Hour),
			"minute":  float64(scope.Minute),
			"time":    float64(scope.Hour) + float64(scope.Minute)/60,
			"objType": scope.ObjType,
			"objID":   scope.ObjID,
			"obj":     scope.Obj,
		},
	}
	v, err := n.eval(env)
	if err != nil {
		return false, &EvalError{Expr: expr, Err: err}
	}
	return truthy(v), nil
}

func (e *Evaluator) compiled(expr string) (node, error) {
	e.mu.RLock()
	n, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return n, nil
	}

	n, err := parse(expr)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[expr] = n
	e.mu.Unlock()
	return n, nil
}
