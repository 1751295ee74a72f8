package interp

import (
	"fmt"
	"strconv"

	"github.com/aledsdavies/loxi/internal/ast"
)

// Callable is the capability set every callable runtime value implements:
// user functions, the clock builtin, and classes (calling a class
// constructs an instance).
type Callable interface {
	Arity() int
	Name() string
	Call(in *Interpreter, args []any) (any, error)
}

// Function is a user-defined function or method: its AST plus the
// closure environment captured at definition time.
type Function struct {
	declaration   *ast.FunctionExpr
	name          string
	closure       *Environment
	isInitializer bool
}

func (f *Function) Arity() int   { return len(f.declaration.Params) }
func (f *Function) Name() string { return f.name }

// Bind returns a copy of f whose closure additionally binds "this" to
// instance, used when a method is looked up off an instance.
func (f *Function) Bind(instance *Instance) *Function {
	env := NewEnvironment(f.closure)
	env.Define("this", instance)
	return &Function{declaration: f.declaration, name: f.name, closure: env, isInitializer: f.isInitializer}
}

func (f *Function) Call(in *Interpreter, args []any) (any, error) {
	env := NewEnvironment(f.closure)
	for i, p := range f.declaration.Params {
		env.Define(p.Name, args[i])
	}
	result, err := in.executeBlock(f.declaration.Body, env)
	if ret, ok := asReturn(err); ok {
		if f.isInitializer {
			return f.closure.GetAt(0, "this"), nil
		}
		return ret.value, nil
	}
	if err != nil {
		return nil, err
	}
	if f.isInitializer {
		return f.closure.GetAt(0, "this"), nil
	}
	return nil, nil
}

// Class is a runtime class descriptor: a name, optional superclass, and
// its own (non-inherited) method table. Calling it constructs an
// Instance, invoking init() if present.
type Class struct {
	ClassName  string
	Superclass *Class
	Methods    map[string]*Function
}

func (c *Class) Arity() int {
	if init := c.FindMethod("init"); init != nil {
		return init.Arity()
	}
	return 0
}

func (c *Class) Name() string { return c.ClassName }

func (c *Class) Call(in *Interpreter, args []any) (any, error) {
	instance := &Instance{class: c, fields: make(map[string]any)}
	if init := c.FindMethod("init"); init != nil {
		if _, err := init.Bind(instance).Call(in, args); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

// FindMethod looks up a method by name, consulting the superclass chain.
func (c *Class) FindMethod(name string) *Function {
	if m, ok := c.Methods[name]; ok {
		return m
	}
	if c.Superclass != nil {
		return c.Superclass.FindMethod(name)
	}
	return nil
}

// Instance is a runtime object: a class pointer plus a mutable field
// map. Field reads consult the field map first, then the class's methods.
type Instance struct {
	class  *Class
	fields map[string]any
}

func (i *Instance) Get(name string) (any, bool) {
	if v, ok := i.fields[name]; ok {
		return v, true
	}
	if m := i.class.FindMethod(name); m != nil {
		return m.Bind(i), true
	}
	return nil, false
}

func (i *Instance) Set(name string, value any) {
	i.fields[name] = value
}

// isTruthy implements this language's truthiness rule (spec.md glossary):
// non-empty string, positive number, and true are truthy; everything
// else (nil, false, empty string, non-positive number) is falsy.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val > 0
	case string:
		return val != ""
	default:
		return true
	}
}

// isEqual implements structural equality for nil/bool/number/string and
// identity equality for callables/classes/instances. Cross-type
// comparisons are handled by the caller (they're a runtime error for ==
// and != per spec.md §4.4).
func isEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return a == b // identity for callables/classes/instances
	}
}

// stringify renders a runtime value in its display form per spec.md §6.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "NIL"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(val)
	case string:
		return val
	case Callable:
		if _, isClass := val.(*Class); isClass {
			return "class " + val.Name()
		}
		return "<fn " + val.Name() + ">"
	case *Instance:
		return val.class.ClassName + " instance"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatNumber prints the shortest round-trip decimal, dropping the
// trailing ".0" for integral values.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case *Instance:
		return "instance"
	case Callable:
		return "callable"
	default:
		return "value"
	}
}
