package interp

import "time"

// clockBuiltin is the one native function this language exposes: the
// current Unix time in seconds, as a float so it composes with the
// language's single number type.
type clockBuiltin struct{}

func (clockBuiltin) Arity() int { return 0 }
func (clockBuiltin) Name() string { return "clock" }
func (clockBuiltin) Call(_ *Interpreter, _ []any) (any, error) {
	return float64(time.Now().Unix()), nil
}

func registerBuiltins(globals *Environment) {
	globals.Define("clock", clockBuiltin{})
}
