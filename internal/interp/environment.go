package interp

// Environment is a mutable scope: a name-to-value mapping plus an
// optional parent. Blocks and call frames each get their own Environment;
// closures capture the Environment alive at their definition, which is
// what lets a recursive function observe itself and lets nested blocks
// share the enclosing scope by reference.
type Environment struct {
	values    map[string]any
	enclosing *Environment
}

func NewEnvironment(enclosing *Environment) *Environment {
	return &Environment{values: make(map[string]any), enclosing: enclosing}
}

// Define creates or overwrites a binding in this environment only. This
// is the only way a new name comes into existence; there is no implicit
// global creation on assignment.
func (e *Environment) Define(name string, value any) {
	e.values[name] = value
}

// Get looks up name in this environment only (not its ancestors).
func (e *Environment) Get(name string) (any, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Assign overwrites an existing binding for name in this environment
// only, reporting whether the name existed.
func (e *Environment) Assign(name string, value any) bool {
	if _, ok := e.values[name]; !ok {
		return false
	}
	e.values[name] = value
	return true
}

// Names returns every name bound in this environment only, for
// did-you-mean suggestions on undefined-variable errors.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, name)
	}
	return names
}

// LookupChain walks the full enclosing chain searching for name, used for
// "this" and "super" which the resolver deliberately leaves undepthed
// (every method-call environment binds them at a fixed, predictable
// position, so a name-based walk is simpler than tracking another slot).
func (e *Environment) LookupChain(name string) (any, bool) {
	for env := e; env != nil; env = env.enclosing {
		if v, ok := env.values[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Ancestor walks up distance parent links.
func (e *Environment) Ancestor(distance int) *Environment {
	env := e
	for i := 0; i < distance; i++ {
		env = env.enclosing
	}
	return env
}

// GetAt looks up name exactly distance scopes up, per the resolver's
// depth annotation.
func (e *Environment) GetAt(distance int, name string) any {
	v, _ := e.Ancestor(distance).Get(name)
	return v
}

// AssignAt assigns name exactly distance scopes up.
func (e *Environment) AssignAt(distance int, name string, value any) {
	e.Ancestor(distance).Define(name, value)
}
