// Package interp implements the tree-walking evaluator: statement and
// expression execution over a lexically-scoped environment chain, with
// first-class closures and return-value propagation.
package interp

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/aledsdavies/loxi/internal/ast"
	"github.com/aledsdavies/loxi/internal/diagnostics"
	"github.com/aledsdavies/loxi/internal/token"
)

// RuntimeError is a dynamic error: type mismatch, undefined variable,
// arity mismatch, divide-by-zero, or calling a non-callable value.
type RuntimeError struct {
	diagnostics.Diagnostic
	cause error
}

func (e *RuntimeError) Error() string { return e.Diagnostic.Error() }
func (e *RuntimeError) Unwrap() error { return e.cause }

func newRuntimeError(line int, message string) error {
	return &RuntimeError{Diagnostic: diagnostics.Diagnostic{Kind: diagnostics.Runtime, Message: message, Line: line}}
}

func wrapRuntimeError(line int, message string, cause error) error {
	return &RuntimeError{
		Diagnostic: diagnostics.Diagnostic{Kind: diagnostics.Runtime, Message: message, Line: line},
		cause:      errors.WithStack(cause),
	}
}

// returnSignal is the non-error outcome of a `return` statement. It is
// propagated through the same error-return channel as real errors but is
// never surfaced to the user: execStmt/executeBlock pass it upward
// unchanged until Function.Call catches it at the call boundary.
type returnSignal struct {
	value any
}

func (r *returnSignal) Error() string { return "return signal (not a user-visible error)" }

func asReturn(err error) (*returnSignal, bool) {
	rs, ok := err.(*returnSignal)
	return rs, ok
}

// Interpreter executes a resolved statement list against an environment
// chain rooted at globals, which is pre-populated with builtins.
type Interpreter struct {
	globals *Environment
	env     *Environment
	stdout  io.Writer
	repl    bool
	logger  *slog.Logger
}

func New(stdout io.Writer) *Interpreter {
	globals := NewEnvironment(nil)
	registerBuiltins(globals)
	level := slog.LevelInfo
	if os.Getenv("LOXI_DEBUG_INTERP") != "" {
		level = slog.LevelDebug
	}
	return &Interpreter{
		globals: globals,
		env:     globals,
		stdout:  stdout,
		logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// SetREPL toggles the REPL convenience where a bare top-level expression
// statement also prints its value (spec.md's file-mode output is exactly
// the executed print statements; this only changes REPL-mode behavior).
func (in *Interpreter) SetREPL(repl bool) { in.repl = repl }

// Interpret runs stmts top-to-bottom, returning the first runtime error
// encountered (if any). A returnSignal escaping to here would be a bug in
// the resolver (return outside function is a static error), so it is
// treated as an internal error rather than silently swallowed.
func (in *Interpreter) Interpret(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if es, isExpr := s.(*ast.ExpressionStmt); isExpr && in.repl {
			v, err := in.evalExpr(es.Expression)
			if err != nil {
				return err
			}
			if _, isAssign := es.Expression.(*ast.Assign); !isAssign {
				fmt.Fprintln(in.stdout, stringify(v))
			}
			continue
		}
		if err := in.execStmt(s); err != nil {
			if _, isReturn := asReturn(err); isReturn {
				return newRuntimeError(0, "internal error: return escaped to top level")
			}
			return err
		}
	}
	return nil
}

func (in *Interpreter) execStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		_, err := in.evalExpr(s.Expression)
		return err
	case *ast.PrintStmt:
		v, err := in.evalExpr(s.Expression)
		if err != nil {
			return err
		}
		fmt.Fprintln(in.stdout, stringify(v))
		return nil
	case *ast.VarStmt:
		var value any
		if s.Initializer != nil {
			v, err := in.evalExpr(s.Initializer)
			if err != nil {
				return err
			}
			value = v
		}
		in.env.Define(s.Name.Name, value)
		return nil
	case *ast.BlockStmt:
		_, err := in.executeBlock(s.Statements, NewEnvironment(in.env))
		return err
	case *ast.IfStmt:
		cond, err := in.evalExpr(s.Condition)
		if err != nil {
			return err
		}
		if isTruthy(cond) {
			return in.execStmt(s.Then)
		}
		if s.Else != nil {
			return in.execStmt(s.Else)
		}
		return nil
	case *ast.WhileStmt:
		for {
			cond, err := in.evalExpr(s.Condition)
			if err != nil {
				return err
			}
			if !isTruthy(cond) {
				return nil
			}
			if err := in.execStmt(s.Body); err != nil {
				return err
			}
		}
	case *ast.FunctionDecl:
		fn := &Function{declaration: s.Fn, name: s.Name.Name, closure: in.env}
		in.env.Define(s.Name.Name, fn)
		return nil
	case *ast.ClassDecl:
		return in.execClassDecl(s)
	case *ast.ReturnStmt:
		var value any
		if s.Value != nil {
			v, err := in.evalExpr(s.Value)
			if err != nil {
				return err
			}
			value = v
		}
		return &returnSignal{value: value}
	default:
		return newRuntimeError(stmt.Line(), fmt.Sprintf("unhandled statement type %T", stmt))
	}
}

func (in *Interpreter) execClassDecl(s *ast.ClassDecl) error {
	var superclass *Class
	if s.Superclass != nil {
		v, err := in.evalExpr(s.Superclass)
		if err != nil {
			return err
		}
		sc, ok := v.(*Class)
		if !ok {
			return newRuntimeError(s.Superclass.Line(), "Superclass must be a class.")
		}
		superclass = sc
	}

	in.env.Define(s.Name.Name, nil)

	classEnv := in.env
	if superclass != nil {
		classEnv = NewEnvironment(in.env)
		classEnv.Define("super", superclass)
	}

	methods := make(map[string]*Function, len(s.Methods))
	for _, m := range s.Methods {
		methods[m.Name.Name] = &Function{
			declaration:   m.Fn,
			name:          m.Name.Name,
			closure:       classEnv,
			isInitializer: m.Name.Name == "init",
		}
	}

	class := &Class{ClassName: s.Name.Name, Superclass: superclass, Methods: methods}
	in.env.Assign(s.Name.Name, class)
	return nil
}

// executeBlock runs stmts in env, restoring in.env on every exit path
// (normal completion, return-signal propagation, or error).
func (in *Interpreter) executeBlock(stmts []ast.Stmt, env *Environment) (any, error) {
	previous := in.env
	in.env = env
	defer func() { in.env = previous }()

	for _, s := range stmts {
		if err := in.execStmt(s); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func requireBool(line int, v any) error {
	if _, ok := v.(bool); !ok {
		return newRuntimeError(line, fmt.Sprintf("Condition must be a boolean, got %s.", typeName(v)))
	}
	return nil
}

func (in *Interpreter) evalExpr(expr ast.Expr) (any, error) {
	switch e := expr.(type) {
	case ast.Literal:
		return e.Value, nil
	case ast.Grouping:
		return in.evalExpr(e.Expression)
	case *ast.Variable:
		return in.lookupVariable(e.Name, e.Depth)
	case *ast.Assign:
		value, err := in.evalExpr(e.Value)
		if err != nil {
			return nil, err
		}
		if e.Depth != nil {
			in.env.AssignAt(*e.Depth, e.Name.Name, value)
		} else if !in.globals.Assign(e.Name.Name, value) {
			// The global is missing, so this yields the hinted "Undefined variable." error.
			_, err := in.lookupVariable(e.Name, nil)
			return nil, err
		}
		return value, nil
	case ast.Unary:
		return in.evalUnary(e)
	case ast.Binary:
		return in.evalBinary(e)
	case ast.Logical:
		return in.evalLogical(e)
	case ast.Ternary:
		cond, err := in.evalExpr(e.Cond)
		if err != nil {
			return nil, err
		}
		if err := requireBool(e.L, cond); err != nil {
			return nil, err
		}
		if isTruthy(cond) {
			return in.evalExpr(e.Then)
		}
		return in.evalExpr(e.Else)
	case ast.Call:
		return in.evalCall(e)
	case ast.Get:
		obj, err := in.evalExpr(e.Object)
		if err != nil {
			return nil, err
		}
		instance, ok := obj.(*Instance)
		if !ok {
			return nil, newRuntimeError(e.Name.L, "Only instances have properties.")
		}
		v, ok := instance.Get(e.Name.Name)
		if !ok {
			hint := diagnostics.Suggest(e.Name.Name, fieldAndMethodNames(instance))
			d := diagnostics.Diagnostic{Kind: diagnostics.Runtime, Message: fmt.Sprintf("Undefined property '%s'.", e.Name.Name), Line: e.Name.L, Hint: hint}
			return nil, &RuntimeError{Diagnostic: d}
		}
		return v, nil
	case ast.Set:
		obj, err := in.evalExpr(e.Object)
		if err != nil {
			return nil, err
		}
		instance, ok := obj.(*Instance)
		if !ok {
			return nil, newRuntimeError(e.Name.L, "Only instances have fields.")
		}
		value, err := in.evalExpr(e.Value)
		if err != nil {
			return nil, err
		}
		instance.Set(e.Name.Name, value)
		return value, nil
	case ast.This:
		v, ok := in.env.LookupChain("this")
		if !ok {
			return nil, newRuntimeError(e.Keyword.Line, "Undefined variable 'this'.")
		}
		return v, nil
	case ast.Super:
		return in.evalSuper(e)
	case *ast.FunctionExpr:
		return &Function{declaration: e, name: "", closure: in.env}, nil
	default:
		return nil, newRuntimeError(expr.Line(), fmt.Sprintf("unhandled expression type %T", expr))
	}
}

func (in *Interpreter) lookupVariable(name ast.Ident, depth *int) (any, error) {
	if depth != nil {
		return in.env.GetAt(*depth, name.Name), nil
	}
	if v, ok := in.globals.Get(name.Name); ok {
		return v, nil
	}
	var names []string
	for env := in.env; env != nil; env = env.enclosing {
		names = append(names, env.Names()...)
	}
	hint := diagnostics.Suggest(name.Name, names)
	d := diagnostics.Diagnostic{Kind: diagnostics.Runtime, Message: "Undefined variable.", Line: name.L, Hint: hint}
	return nil, &RuntimeError{Diagnostic: d}
}

func (in *Interpreter) evalUnary(e ast.Unary) (any, error) {
	right, err := in.evalExpr(e.Right)
	if err != nil {
		return nil, err
	}
	switch e.Operator.Type {
	case token.BANG:
		b, ok := right.(bool)
		if !ok {
			return nil, newRuntimeError(e.Operator.Line, fmt.Sprintf("Operand of '!' must be a boolean, got %s.", typeName(right)))
		}
		return !b, nil
	case token.MINUS:
		n, ok := right.(float64)
		if !ok {
			return nil, newRuntimeError(e.Operator.Line, fmt.Sprintf("Operand of unary '-' must be a number, got %s.", typeName(right)))
		}
		return -n, nil
	default:
		return nil, newRuntimeError(e.Operator.Line, "Unknown unary operator.")
	}
}

func (in *Interpreter) evalLogical(e ast.Logical) (any, error) {
	left, err := in.evalExpr(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Operator.Type == token.OR {
		if isTruthy(left) {
			return left, nil
		}
	} else {
		if !isTruthy(left) {
			return left, nil
		}
	}
	return in.evalExpr(e.Right)
}

func (in *Interpreter) evalBinary(e ast.Binary) (any, error) {
	left, err := in.evalExpr(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Operator.Type == token.COMMA {
		return in.evalExpr(e.Right)
	}
	right, err := in.evalExpr(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Operator.Type {
	case token.EQUAL_EQUAL, token.BANG_EQUAL:
		if left != nil && right != nil && typeName(left) != typeName(right) {
			return nil, newRuntimeError(e.Operator.Line, fmt.Sprintf("Cannot compare %s to %s.", typeName(left), typeName(right)))
		}
		eq := isEqual(left, right)
		if e.Operator.Type == token.BANG_EQUAL {
			return !eq, nil
		}
		return eq, nil
	case token.PLUS:
		return evalPlus(e.Operator.Line, left, right)
	case token.MINUS, token.STAR, token.SLASH, token.GREATER, token.GREATER_EQUAL, token.LESS, token.LESS_EQUAL:
		ln, lok := left.(float64)
		rn, rok := right.(float64)
		if !lok || !rok {
			return nil, newRuntimeError(e.Operator.Line, fmt.Sprintf("Operands of '%s' must be numbers.", e.Operator.Lexeme))
		}
		switch e.Operator.Type {
		case token.MINUS:
			return ln - rn, nil
		case token.STAR:
			return ln * rn, nil
		case token.SLASH:
			if rn == 0 {
				return nil, newRuntimeError(e.Operator.Line, "Cannot divide by zero.")
			}
			return ln / rn, nil
		case token.GREATER:
			return ln > rn, nil
		case token.GREATER_EQUAL:
			return ln >= rn, nil
		case token.LESS:
			return ln < rn, nil
		case token.LESS_EQUAL:
			return ln <= rn, nil
		}
	}
	return nil, newRuntimeError(e.Operator.Line, "Unknown binary operator.")
}

// evalPlus implements spec.md §4.4's '+': both-number addition, both-string
// concatenation, and string concatenation when mixing a number and a
// string in either order (the mixed-type result stringifies the number the
// same way print does).
func evalPlus(line int, left, right any) (any, error) {
	if ln, ok := left.(float64); ok {
		if rn, ok := right.(float64); ok {
			return ln + rn, nil
		}
		if rs, ok := right.(string); ok {
			return stringify(ln) + rs, nil
		}
	}
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return ls + rs, nil
		}
		if rn, ok := right.(float64); ok {
			return ls + stringify(rn), nil
		}
	}
	return nil, newRuntimeError(line, fmt.Sprintf("Operands of '+' must be numbers or strings, got %s and %s.", typeName(left), typeName(right)))
}

func (in *Interpreter) evalCall(e ast.Call) (any, error) {
	callee, err := in.evalExpr(e.Callee)
	if err != nil {
		return nil, err
	}
	args := make([]any, len(e.Arguments))
	for i, a := range e.Arguments {
		v, err := in.evalExpr(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	callable, ok := callee.(Callable)
	if !ok {
		return nil, newRuntimeError(e.Paren.Line, "Can only call functions and classes.")
	}
	if len(args) != callable.Arity() {
		return nil, newRuntimeError(e.Paren.Line, fmt.Sprintf("Expected %d arguments but got %d.", callable.Arity(), len(args)))
	}
	return in.invoke(e.Paren.Line, callable, args)
}

// invoke calls callable, recovering a panic escaping from a builtin or from
// Go runtime machinery (a slice index, a bad type assertion deep in a
// closure) into a reported runtime error instead of crashing the CLI. The
// stack is preserved via pkg/errors so the top-level reporter can still
// print %+v in debug builds.
func (in *Interpreter) invoke(line int, callable Callable, args []any) (result any, err error) {
	in.logger.Debug("call frame enter", "callee", callable.Name(), "line", line, "args", len(args))
	defer in.logger.Debug("call frame exit", "callee", callable.Name(), "line", line)
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*returnSignal); ok {
				panic(re) // never recover our own control-flow signal
			}
			err = wrapRuntimeError(line, fmt.Sprintf("panic in '%s'", callable.Name()), errors.Errorf("%v", r))
		}
	}()
	return callable.Call(in, args)
}

func (in *Interpreter) evalSuper(e ast.Super) (any, error) {
	superVal, ok := in.env.LookupChain("super")
	if !ok {
		return nil, newRuntimeError(e.Keyword.Line, "Undefined variable 'super'.")
	}
	super, ok := superVal.(*Class)
	if !ok {
		return nil, newRuntimeError(e.Keyword.Line, "'super' did not resolve to a class.")
	}
	thisVal, ok := in.env.LookupChain("this")
	if !ok {
		return nil, newRuntimeError(e.Keyword.Line, "Undefined variable 'this'.")
	}
	instance, ok := thisVal.(*Instance)
	if !ok {
		return nil, newRuntimeError(e.Keyword.Line, "'this' did not resolve to an instance.")
	}
	method := super.FindMethod(e.Method.Name)
	if method == nil {
		return nil, newRuntimeError(e.Method.L, fmt.Sprintf("Undefined property '%s'.", e.Method.Name))
	}
	return method.Bind(instance), nil
}

func fieldAndMethodNames(i *Instance) []string {
	names := make([]string, 0, len(i.fields)+len(i.class.Methods))
	for n := range i.fields {
		names = append(names, n)
	}
	for n := range i.class.Methods {
		names = append(names, n)
	}
	return names
}
