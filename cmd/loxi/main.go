// Command loxi is the entry point: a file runner and a REPL over the
// scan -> parse -> resolve -> evaluate pipeline.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aledsdavies/loxi/internal/ast"
	"github.com/aledsdavies/loxi/internal/diagnostics"
	"github.com/aledsdavies/loxi/internal/interp"
	"github.com/aledsdavies/loxi/internal/lexer"
	"github.com/aledsdavies/loxi/internal/parser"
	"github.com/aledsdavies/loxi/internal/resolver"
)

// exitError carries the process exit code alongside a message already
// written to stderr, so main can propagate it through cobra's RunE without
// calling os.Exit deep in the call stack.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func main() {
	rootCmd := &cobra.Command{
		Use:           "loxi [script]",
		Short:         "Run or interactively evaluate a Loxi script",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch len(args) {
			case 0:
				return runREPL(os.Stdin, os.Stdout)
			case 1:
				return runFile(args[0], os.Stdout)
			default:
				fmt.Fprintln(os.Stderr, "Usage: loxi [script]")
				return &exitError{code: 64}
			}
		},
	}

	if err := rootCmd.Execute(); err != nil {
		if ee, ok := err.(*exitError); ok {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(70)
	}
}

// runFile implements spec.md §6's file mode: exit 0 on success, 65 if
// scanning or parsing reported an error, 70 on runtime error.
func runFile(path string, stdout io.Writer) error {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[line 0] Error : could not read %s: %v\n", path, err)
		return &exitError{code: 70}
	}

	stmts, scanOrParseErr := scanAndParse(string(source))
	if scanOrParseErr {
		return &exitError{code: 65}
	}

	r := resolver.New(string(source))
	if resolveErrs := r.Resolve(stmts); len(resolveErrs) > 0 {
		for _, e := range resolveErrs {
			printDiagnostic(e)
		}
		return &exitError{code: 65}
	}

	in := interp.New(stdout)
	if err := in.Interpret(stmts); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return &exitError{code: 70}
	}
	return nil
}

// runREPL implements spec.md §6's interactive mode: "> " prompt, run each
// line with REPL semantics (a bare expression statement also prints), exit
// 0 on EOF.
func runREPL(stdin io.Reader, stdout io.Writer) error {
	in := interp.New(stdout)
	in.SetREPL(true)
	scanner := bufio.NewScanner(stdin)

	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			return nil
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		stmts, hadError := scanAndParse(line)
		if hadError {
			continue
		}

		r := resolver.New(line)
		if resolveErrs := r.Resolve(stmts); len(resolveErrs) > 0 {
			for _, e := range resolveErrs {
				printDiagnostic(e)
			}
			continue
		}

		if err := in.Interpret(stmts); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
		}
	}
}

// scanAndParse runs the lex+parse stages shared by both entry points. The
// bool return reports whether an unrecoverable scan or parse error
// occurred; stmts is nil for an empty program.
func scanAndParse(source string) ([]ast.Stmt, bool) {
	hadScanError := false
	report := func(line int, message string) {
		hadScanError = true
		d := diagnostics.Diagnostic{Kind: diagnostics.Scan, Message: message, Line: line}
		fmt.Fprintln(os.Stderr, d.Error())
	}

	tokens, hadErr := lexer.New(source, report).ScanTokens()
	if hadErr || hadScanError {
		return nil, true
	}

	p := parser.New(tokens, source)
	stmts, parseErrs := p.Parse()
	if len(parseErrs) > 0 {
		for _, e := range parseErrs {
			printDiagnostic(e)
		}
		return nil, true
	}
	return stmts, false
}

// printDiagnostic writes e's canonical message to stderr, followed by a
// source snippet when e is a *diagnostics.Diagnostic carrying source text
// (Parse and Resolve diagnostics attach the source they were raised
// against; Scan/Runtime diagnostics don't, so Snippet() is a no-op there).
func printDiagnostic(e error) {
	fmt.Fprintln(os.Stderr, e.Error())
	if d, ok := e.(*diagnostics.Diagnostic); ok {
		if snippet := d.Snippet(); snippet != "" {
			fmt.Fprintln(os.Stderr, snippet)
		}
	}
}
