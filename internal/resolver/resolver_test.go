package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/loxi/internal/lexer"
	"github.com/aledsdavies/loxi/internal/parser"
	"github.com/aledsdavies/loxi/internal/resolver"
)

func resolveSource(t *testing.T, source string) []error {
	t.Helper()
	tokens, hadErr := lexer.New(source, nil).ScanTokens()
	require.False(t, hadErr)
	stmts, parseErrs := parser.New(tokens, source).Parse()
	require.Empty(t, parseErrs)
	return resolver.New(source).Resolve(stmts)
}

func TestSelfInitializationIsResolveError(t *testing.T) {
	errs := resolveSource(t, `var a = 1; { var a = a; }`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "Can't read local variable in its own initializer.")
}

func TestDuplicateLocalDeclarationIsResolveError(t *testing.T) {
	errs := resolveSource(t, `{ var a = 1; var a = 2; }`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "Already a variable with this name is in this scope.")
}

func TestDuplicateGlobalDeclarationIsAllowed(t *testing.T) {
	errs := resolveSource(t, `var a = 1; var a = 2;`)
	require.Empty(t, errs)
}

func TestReturnOutsideFunctionIsResolveError(t *testing.T) {
	errs := resolveSource(t, `return 1;`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "Can't return from top-level code.")
}

func TestReturnValueFromInitializerIsResolveError(t *testing.T) {
	errs := resolveSource(t, `class C { init() { return 1; } }`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "Can't return a value from an initializer.")
}

func TestBareReturnFromInitializerIsAllowed(t *testing.T) {
	errs := resolveSource(t, `class C { init() { return; } }`)
	require.Empty(t, errs)
}

func TestThisOutsideClassIsResolveError(t *testing.T) {
	errs := resolveSource(t, `print this;`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "Can't use 'this' outside of a class.")
}

func TestSuperOutsideClassIsResolveError(t *testing.T) {
	errs := resolveSource(t, `print super.foo;`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "Can't use 'super' outside of a class.")
}

func TestSuperInClassWithoutSuperclassIsResolveError(t *testing.T) {
	errs := resolveSource(t, `class C { m() { print super.foo; } }`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "Can't use 'super' in a class with no superclass.")
}

func TestClassInheritingFromItselfIsResolveError(t *testing.T) {
	errs := resolveSource(t, `class C < C {}`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "A class can't inherit from itself.")
}

func TestNestedFunctionReturnIsAllowed(t *testing.T) {
	errs := resolveSource(t, `fun f() { fun g() { return 1; } return g(); }`)
	require.Empty(t, errs)
}

func TestResolveIsIdempotent(t *testing.T) {
	tokens, hadErr := lexer.New(`var a = 1; { fun f() { return a; } }`, nil).ScanTokens()
	require.False(t, hadErr)
	stmts, parseErrs := parser.New(tokens, "").Parse()
	require.Empty(t, parseErrs)

	r1 := resolver.New("")
	errs1 := r1.Resolve(stmts)
	require.Empty(t, errs1)

	r2 := resolver.New("")
	errs2 := r2.Resolve(stmts)
	require.Empty(t, errs2)
}
