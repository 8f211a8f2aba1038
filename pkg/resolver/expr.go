package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/go-drift/formctl/pkg/values"
)

// envOptions are the functions available to every expression.
var envOptions = []expr.Option{
	expr.AllowUndefinedVariables(),
	expr.Function("blank", func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("blank requires 1 argument")
		}
		return values.IsEmpty(params[0]), nil
	}),
	expr.Function("trim", func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("trim requires 1 argument")
		}
		s, _ := params[0].(string)
		return strings.TrimSpace(s), nil
	}),
	expr.Function("get", func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("get requires 2 arguments (tree, path)")
		}
		tree, _ := params[0].(map[string]any)
		path, _ := params[1].(string)
		return values.Get(tree, values.Normalize(path), nil), nil
	}),
}

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]*vm.Program)
)

// getOrCompile returns a cached boolean program or compiles a new one.
func getOrCompile(expression string) (*vm.Program, error) {
	cacheMu.RLock()
	program, ok := cache[expression]
	cacheMu.RUnlock()
	if ok {
		return program, nil
	}

	opts := append([]expr.Option{expr.AsBool()}, envOptions...)
	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[expression] = program
	cacheMu.Unlock()
	return program, nil
}

// Expression is a compiled boolean check over form values.
type Expression struct {
	source  string
	program *vm.Program
}

// Compile compiles a boolean expression. Programs are cached by source.
func Compile(expression string) (*Expression, error) {
	program, err := getOrCompile(expression)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return &Expression{source: expression, program: program}, nil
}

// String returns the expression source.
func (e *Expression) String() string { return e.source }

// Eval runs the expression against env.
func (e *Expression) Eval(env map[string]any) (bool, error) {
	out, err := expr.Run(e.program, env)
	if err != nil {
		return false, fmt.Errorf("run %q: %w", e.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Validator adapts the expression to a field validator. The field's value
// is bound to "value" and the whole tree to "values", next to the
// top-level fields themselves.
func (e *Expression) Validator(message string) func(ctx context.Context, value any, vals map[string]any) error {
	if message == "" {
		message = "is invalid"
	}
	return func(ctx context.Context, value any, vals map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		env := values.CloneMap(vals)
		env["value"] = value
		env["values"] = vals
		ok, err := e.Eval(env)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(message)
		}
		return nil
	}
}
