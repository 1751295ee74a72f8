// Package resolver implements the static pass that annotates every
// variable reference with its lexical scope depth and enforces the
// static errors from spec.md §4.3: self-initialization, duplicate
// locals, illegal return, and illegal this/super.
package resolver

import (
	"log/slog"
	"os"

	"github.com/aledsdavies/loxi/internal/ast"
	"github.com/aledsdavies/loxi/internal/diagnostics"
)

type varState int

const (
	declared varState = iota
	defined
)

type binding struct {
	state varState
	line  int
}

type functionType int

const (
	noFunction functionType = iota
	inFunction
	inMethod
	inInitializer
)

type classType int

const (
	noClass classType = iota
	inClass
	inSubclass
)

// Resolver walks a statement list, mutating every *ast.Variable and
// *ast.Assign node in place with its resolution slot.
type Resolver struct {
	scopes     []map[string]*binding
	currentFn  functionType
	currentCls classType
	errors     []error
	input      string
	logger     *slog.Logger
}

// New creates a Resolver over the given source text, attached to every
// reported diagnostic so it can render a source snippet.
func New(source string) *Resolver {
	level := slog.LevelInfo
	if os.Getenv("LOXI_DEBUG_RESOLVER") != "" {
		level = slog.LevelDebug
	}
	return &Resolver{
		input:  source,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// Resolve annotates stmts in place and returns any static errors found.
// Running Resolve twice on the same tree yields the same annotations: the
// depth slot is overwritten, never appended to.
func (r *Resolver) Resolve(stmts []ast.Stmt) []error {
	r.logger.Debug("resolve start", "statements", len(stmts))
	r.resolveStmts(stmts)
	r.logger.Debug("resolve done", "errors", len(r.errors))
	return r.errors
}

func (r *Resolver) resolveStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		r.resolveStmt(s)
	}
}

func (r *Resolver) beginScope() {
	r.scopes = append(r.scopes, map[string]*binding{})
	r.logger.Debug("scope push", "depth", len(r.scopes))
}

func (r *Resolver) endScope() {
	r.logger.Debug("scope pop", "depth", len(r.scopes))
	r.scopes = r.scopes[:len(r.scopes)-1]
}

// reportError appends a Resolve-kind diagnostic at line, quoting lexeme as
// the "at" token per spec.md §6's parse/resolve format.
func (r *Resolver) reportError(message, lexeme string, line int) {
	r.errors = append(r.errors, &diagnostics.Diagnostic{
		Kind:    diagnostics.Resolve,
		Message: message,
		Line:    line,
		Lexeme:  lexeme,
		Input:   r.input,
	})
}

func (r *Resolver) declare(name ast.Ident) {
	if len(r.scopes) == 0 {
		return
	}
	scope := r.scopes[len(r.scopes)-1]
	if _, exists := scope[name.Name]; exists {
		r.reportError("Already a variable with this name is in this scope.", name.Name, name.L)
		return
	}
	scope[name.Name] = &binding{state: declared, line: name.L}
}

func (r *Resolver) define(name string) {
	if len(r.scopes) == 0 {
		return
	}
	r.scopes[len(r.scopes)-1][name] = &binding{state: defined}
}

// resolveLocal walks the scope stack innermost-to-outermost, setting depth
// when name is found. Leaving depth nil means "look up in globals".
func (r *Resolver) resolveLocal(name string, setDepth func(depth int)) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if b, ok := r.scopes[i][name]; ok {
			if b.state == declared {
				// Caller reports the self-initialization error; resolveLocal
				// just signals "found, but not ready" by not setting depth.
				return
			}
			setDepth(len(r.scopes) - 1 - i)
			return
		}
	}
	// Not found locally: leave depth unset, resolved against globals at
	// runtime.
}

func (r *Resolver) isDeclaredButNotDefined(name string) (bool, int) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if b, ok := r.scopes[i][name]; ok {
			return b.state == declared, b.line
		}
	}
	return false, 0
}

func (r *Resolver) resolveStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		r.resolveExpr(s.Expression)
	case *ast.PrintStmt:
		r.resolveExpr(s.Expression)
	case *ast.VarStmt:
		r.declare(s.Name)
		if s.Initializer != nil {
			r.resolveExpr(s.Initializer)
		}
		r.define(s.Name.Name)
	case *ast.BlockStmt:
		r.beginScope()
		r.resolveStmts(s.Statements)
		r.endScope()
	case *ast.IfStmt:
		r.resolveExpr(s.Condition)
		r.resolveStmt(s.Then)
		if s.Else != nil {
			r.resolveStmt(s.Else)
		}
	case *ast.WhileStmt:
		r.resolveExpr(s.Condition)
		r.resolveStmt(s.Body)
	case *ast.FunctionDecl:
		r.declare(s.Name)
		r.define(s.Name.Name)
		r.resolveFunction(s.Fn, inFunction)
	case *ast.ClassDecl:
		r.resolveClass(s)
	case *ast.ReturnStmt:
		r.resolveReturn(s)
	}
}

func (r *Resolver) resolveReturn(s *ast.ReturnStmt) {
	if r.currentFn == noFunction {
		r.reportError("Can't return from top-level code.", s.Keyword.Lexeme, s.Keyword.Line)
		return
	}
	if s.Value == nil {
		return
	}
	if r.currentFn == inInitializer {
		r.reportError("Can't return a value from an initializer.", s.Keyword.Lexeme, s.Keyword.Line)
		return
	}
	r.resolveExpr(s.Value)
}

func (r *Resolver) resolveFunction(fn *ast.FunctionExpr, typ functionType) {
	enclosingFn := r.currentFn
	r.currentFn = typ
	r.beginScope()
	for _, p := range fn.Params {
		r.declare(p)
		r.define(p.Name)
	}
	r.resolveStmts(fn.Body)
	r.endScope()
	r.currentFn = enclosingFn
}

func (r *Resolver) resolveClass(s *ast.ClassDecl) {
	enclosingCls := r.currentCls
	r.currentCls = inClass
	r.declare(s.Name)
	r.define(s.Name.Name)

	superScope := false
	if s.Superclass != nil {
		if s.Superclass.Name.Name == s.Name.Name {
			r.reportError("A class can't inherit from itself.", s.Name.Name, s.Superclass.Name.L)
		} else {
			r.resolveExpr(s.Superclass)
			r.currentCls = inSubclass
			r.beginScope()
			superScope = true
			r.scopes[len(r.scopes)-1]["super"] = &binding{state: defined}
		}
	}

	r.beginScope()
	r.scopes[len(r.scopes)-1]["this"] = &binding{state: defined}

	for _, method := range s.Methods {
		fnType := inMethod
		if method.Name.Name == "init" {
			fnType = inInitializer
		}
		r.resolveFunction(method.Fn, fnType)
	}

	r.endScope()
	if superScope {
		r.endScope()
	}
	r.currentCls = enclosingCls
}

func (r *Resolver) resolveExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case ast.Ternary:
		r.resolveExpr(e.Cond)
		r.resolveExpr(e.Then)
		r.resolveExpr(e.Else)
	case ast.Binary:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)
	case ast.Logical:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)
	case ast.Unary:
		r.resolveExpr(e.Right)
	case ast.Grouping:
		r.resolveExpr(e.Expression)
	case ast.Literal:
		// nothing to resolve
	case *ast.Variable:
		r.resolveVariable(e)
	case *ast.Assign:
		r.resolveExpr(e.Value)
		if declaredNotDefined, _ := r.isDeclaredButNotDefined(e.Name.Name); declaredNotDefined {
			r.reportError("Can't read local variable in its own initializer.", e.Name.Name, e.Name.L)
			return
		}
		depth := new(int)
		*depth = -1
		r.resolveLocal(e.Name.Name, func(d int) { *depth = d })
		if *depth == -1 {
			e.Depth = nil
		} else {
			e.Depth = depth
		}
	case ast.Call:
		r.resolveExpr(e.Callee)
		for _, a := range e.Arguments {
			r.resolveExpr(a)
		}
	case ast.Get:
		r.resolveExpr(e.Object)
	case ast.Set:
		r.resolveExpr(e.Value)
		r.resolveExpr(e.Object)
	case ast.This:
		if r.currentCls == noClass {
			r.reportError("Can't use 'this' outside of a class.", "this", e.Keyword.Line)
		}
	case ast.Super:
		if r.currentCls == noClass {
			r.reportError("Can't use 'super' outside of a class.", "super", e.Keyword.Line)
		} else if r.currentCls != inSubclass {
			r.reportError("Can't use 'super' in a class with no superclass.", "super", e.Keyword.Line)
		}
	case *ast.FunctionExpr:
		r.resolveFunction(e, inFunction)
	}
}

func (r *Resolver) resolveVariable(v *ast.Variable) {
	if declaredNotDefined, _ := r.isDeclaredButNotDefined(v.Name.Name); declaredNotDefined {
		r.reportError("Can't read local variable in its own initializer.", v.Name.Name, v.Name.L)
		return
	}
	depth := new(int)
	*depth = -1
	r.resolveLocal(v.Name.Name, func(d int) { *depth = d })
	if *depth == -1 {
		v.Depth = nil
	} else {
		v.Depth = depth
	}
}
