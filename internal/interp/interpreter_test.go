package interp_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/loxi/internal/interp"
	"github.com/aledsdavies/loxi/internal/lexer"
	"github.com/aledsdavies/loxi/internal/parser"
	"github.com/aledsdavies/loxi/internal/resolver"
)

// run scans, parses, resolves, and evaluates source, returning everything
// printed to stdout and the first error at any stage (if any).
func run(t *testing.T, source string) (string, error) {
	t.Helper()

	tokens, hadScanErr := lexer.New(source, func(line int, msg string) {
		t.Logf("scan error [line %d]: %s", line, msg)
	}).ScanTokens()
	if hadScanErr {
		return "", &scanError{}
	}

	stmts, parseErrs := parser.New(tokens, source).Parse()
	if len(parseErrs) > 0 {
		return "", parseErrs[0]
	}

	if resolveErrs := resolver.New(source).Resolve(stmts); len(resolveErrs) > 0 {
		return "", resolveErrs[0]
	}

	var out bytes.Buffer
	in := interp.New(&out)
	err := in.Interpret(stmts)
	return out.String(), err
}

type scanError struct{}

func (scanError) Error() string { return "scan error" }

func TestEndToEndScenarios(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   string
	}{
		{
			"arithmetic precedence",
			`print 1 + 2 * 3;`,
			"7\n",
		},
		{
			"string concatenation",
			`var a = "hi "; var b = "there"; print a + b;`,
			"hi there\n",
		},
		{
			"mixed number and string concatenation, number first",
			`print 1 + "x";`,
			"1x\n",
		},
		{
			"mixed number and string concatenation, string first",
			`print "x" + 1;`,
			"x1\n",
		},
		{
			"for-loop desugars to while",
			`var n = 0; for (var i = 0; i < 5; i = i + 1) n = n + i; print n;`,
			"10\n",
		},
		{
			"closures capture declaration-time environment",
			`fun make() { var i = 0; fun inc() { i = i + 1; return i; } return inc; } var c = make(); print c(); print c(); print c();`,
			"1\n2\n3\n",
		},
		{
			"recursive function",
			`fun fact(n) { if (n <= 1) return 1; return n * fact(n - 1); } print fact(6);`,
			"720\n",
		},
		{
			"block scoping shadows and restores",
			`var a = 1; { var a = 2; { var a = 3; print a; } print a; } print a;`,
			"3\n2\n1\n",
		},
		{
			"lazy ternary picks one arm",
			`print 1 == 1 ? "yes" : "no";`,
			"yes\n",
		},
		{
			"reassignment to existing global",
			`var a = 1; a = 2; print a;`,
			"2\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := run(t, tc.source)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestAssignToUndeclaredGlobalIsRuntimeError(t *testing.T) {
	_, err := run(t, `b = 3;`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Undefined variable.")
}

func TestEmptyProgramProducesNoOutput(t *testing.T) {
	got, err := run(t, ``)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDivideByZeroIsRuntimeError(t *testing.T) {
	_, err := run(t, `print 1 / 0;`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Cannot divide by zero.")
}

func TestShortCircuitOrSkipsRightOperand(t *testing.T) {
	// A right operand that would itself error (dividing by zero) must never
	// be evaluated once the left operand already satisfies the operator.
	got, err := run(t, `print true or 1/0 == 1;`)
	require.NoError(t, err)
	require.Equal(t, "true\n", got)
}

func TestShortCircuitAndSkipsRightOperand(t *testing.T) {
	got, err := run(t, `print false and 1/0 == 1;`)
	require.NoError(t, err)
	require.Equal(t, "false\n", got)
}

func TestBangRequiresBooleanOperand(t *testing.T) {
	_, err := run(t, `print !1;`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be a boolean")
}

func TestCrossTypeEqualityIsRuntimeError(t *testing.T) {
	_, err := run(t, `print 1 == "1";`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Cannot compare")
}

func TestNilComparesFalseToOtherTypesWithoutError(t *testing.T) {
	got, err := run(t, `print nil == 1; print nil == nil;`)
	require.NoError(t, err)
	require.Equal(t, "false\ntrue\n", got)
}

func TestTruthinessRule(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{`if ("") print "truthy"; else print "falsy";`, "falsy\n"},
		{`if ("x") print "truthy"; else print "falsy";`, "truthy\n"},
		{`if (0) print "truthy"; else print "falsy";`, "falsy\n"},
		{`if (1) print "truthy"; else print "falsy";`, "truthy\n"},
		{`if (nil) print "truthy"; else print "falsy";`, "falsy\n"},
	}
	for _, tc := range cases {
		t.Run(tc.source, func(t *testing.T) {
			got, err := run(t, tc.source)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestArityMismatchError(t *testing.T) {
	_, err := run(t, `fun f(a, b) { return a + b; } f(1);`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Expected 2 arguments but got 1.")
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	_, err := run(t, `var a = 1; a();`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Can only call functions and classes.")
}

func TestClassesConstructFieldsAndMethods(t *testing.T) {
	got, err := run(t, `
		class Greeter {
			init(name) { this.name = name; }
			greet() { return "hi " + this.name; }
		}
		var g = Greeter("sam");
		print g.greet();
	`)
	require.NoError(t, err)
	require.Equal(t, "hi sam\n", got)
}

func TestSuperDispatchesToParentMethod(t *testing.T) {
	got, err := run(t, `
		class Animal {
			speak() { return "..."; }
		}
		class Dog < Animal {
			speak() { return "woof then " + super.speak(); }
		}
		print Dog().speak();
	`)
	require.NoError(t, err)
	require.Equal(t, "woof then ...\n", got)
}

func TestClockBuiltinReturnsNumber(t *testing.T) {
	got, err := run(t, `print clock() > 0;`)
	require.NoError(t, err)
	require.Equal(t, "true\n", got)
}

func TestUndefinedVariableHintsDidYouMean(t *testing.T) {
	_, err := run(t, `var count = 1; print cont;`)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "Undefined variable."))
	require.Contains(t, err.Error(), "did you mean 'count'")
}

func TestTopLevelReturnIsResolveError(t *testing.T) {
	_, err := run(t, `return 1;`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Can't return from top-level code.")
}
