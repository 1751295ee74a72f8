// Package parser implements a recursive-descent, Pratt-style
// precedence-climbing parser that turns a token vector into a statement
// list.
package parser

import (
	"log/slog"
	"os"

	"github.com/aledsdavies/loxi/internal/ast"
	"github.com/aledsdavies/loxi/internal/diagnostics"
	"github.com/aledsdavies/loxi/internal/token"
)

const maxArgs = 255

// Parser consumes a token vector and produces a statement list. It never
// halts on a syntax error: it records the error, synchronizes to a
// probable statement boundary, and keeps going so multiple errors can be
// reported from one source file.
type Parser struct {
	tokens []token.Token
	pos    int
	input  string
	errors []error
	logger *slog.Logger
}

func New(tokens []token.Token, input string) *Parser {
	level := slog.LevelInfo
	if os.Getenv("LOXI_DEBUG_PARSER") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return &Parser{tokens: tokens, input: input, logger: logger}
}

// Parse returns the parsed statement list and any syntax errors
// encountered. A non-empty error slice means the pipeline must abort
// before resolving.
func (p *Parser) Parse() ([]ast.Stmt, []error) {
	p.logger.Debug("parse start", "tokens", len(p.tokens))
	var stmts []ast.Stmt
	for !p.isAtEnd() {
		p.logger.Debug("parse declaration", "line", p.current().Line, "next", p.current().Type)
		decl, err := p.declaration()
		if err != nil {
			p.errors = append(p.errors, err)
			p.synchronize()
			continue
		}
		if decl != nil {
			stmts = append(stmts, decl)
		}
	}
	p.logger.Debug("parse done", "statements", len(stmts), "errors", len(p.errors))
	return stmts, p.errors
}

// ---- token cursor ----

func (p *Parser) current() token.Token  { return p.tokens[p.pos] }
func (p *Parser) previous() token.Token { return p.tokens[p.pos-1] }
func (p *Parser) isAtEnd() bool         { return p.current().Type == token.EOF }

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.pos++
	}
	return p.previous()
}

func (p *Parser) check(t token.Type) bool {
	if p.isAtEnd() {
		return t == token.EOF
	}
	return p.current().Type == t
}

func (p *Parser) match(types ...token.Type) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(t token.Type, message string) (token.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return token.Token{}, p.errorAt(p.current(), message)
}

func (p *Parser) errorAt(tok token.Token, message string) error {
	return &diagnostics.Diagnostic{
		Kind:    diagnostics.Parse,
		Message: message,
		Line:    tok.Line,
		Lexeme:  tok.Lexeme,
		Input:   p.input,
	}
}

// synchronize advances past the current error to the next probable
// statement boundary: after a consumed ';', or before a token that
// starts a new declaration or statement.
func (p *Parser) synchronize() {
	p.advance()
	for !p.isAtEnd() {
		if p.previous().Type == token.SEMICOLON {
			return
		}
		switch p.current().Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		p.advance()
	}
}

// ---- declarations ----

func (p *Parser) declaration() (ast.Stmt, error) {
	switch {
	case p.match(token.VAR):
		return p.varDeclaration()
	case p.check(token.FUN) && p.checkNext(token.IDENTIFIER):
		p.advance() // consume 'fun'
		return p.functionDeclaration("function")
	case p.match(token.CLASS):
		return p.classDeclaration()
	default:
		return p.statement()
	}
}

func (p *Parser) checkNext(t token.Type) bool {
	if p.pos+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.pos+1].Type == t
}

func (p *Parser) varDeclaration() (ast.Stmt, error) {
	name, err := p.consume(token.IDENTIFIER, "Expect variable name.")
	if err != nil {
		return nil, err
	}
	var initializer ast.Expr
	if p.match(token.EQUAL) {
		initializer, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.SEMICOLON, "Expect ';' after variable declaration."); err != nil {
		return nil, err
	}
	return &ast.VarStmt{Name: ast.Ident{Name: name.Lexeme, L: name.Line}, Initializer: initializer}, nil
}

func (p *Parser) functionDeclaration(kind string) (ast.Stmt, error) {
	name, err := p.consume(token.IDENTIFIER, "Expect "+kind+" name.")
	if err != nil {
		return nil, err
	}
	fn, err := p.functionBody(kind)
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDecl{Name: ast.Ident{Name: name.Lexeme, L: name.Line}, Fn: fn}, nil
}

// functionBody parses the "(params) { body }" shared by named functions,
// methods, and anonymous function expressions.
func (p *Parser) functionBody(kind string) (*ast.FunctionExpr, error) {
	lparen, err := p.consume(token.LEFT_PAREN, "Expect '(' after "+kind+" name.")
	if err != nil {
		return nil, err
	}
	var params []ast.Ident
	if !p.check(token.RIGHT_PAREN) {
		for {
			if len(params) >= maxArgs {
				p.errors = append(p.errors, p.errorAt(p.current(), "Can't have more than 255 parameters."))
			}
			pname, err := p.consume(token.IDENTIFIER, "Expect parameter name.")
			if err != nil {
				return nil, err
			}
			params = append(params, ast.Ident{Name: pname.Lexeme, L: pname.Line})
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(token.RIGHT_PAREN, "Expect ')' after parameters."); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.LEFT_BRACE, "Expect '{' before "+kind+" body."); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionExpr{Params: params, Body: body, L: lparen.Line}, nil
}

func (p *Parser) classDeclaration() (ast.Stmt, error) {
	name, err := p.consume(token.IDENTIFIER, "Expect class name.")
	if err != nil {
		return nil, err
	}
	var superclass *ast.Variable
	if p.match(token.LESS) {
		superName, err := p.consume(token.IDENTIFIER, "Expect superclass name.")
		if err != nil {
			return nil, err
		}
		superclass = &ast.Variable{Name: ast.Ident{Name: superName.Lexeme, L: superName.Line}}
	}
	if _, err := p.consume(token.LEFT_BRACE, "Expect '{' before class body."); err != nil {
		return nil, err
	}
	var methods []*ast.FunctionDecl
	for !p.check(token.RIGHT_BRACE) && !p.isAtEnd() {
		method, err := p.functionDeclaration("method")
		if err != nil {
			return nil, err
		}
		methods = append(methods, method.(*ast.FunctionDecl))
	}
	if _, err := p.consume(token.RIGHT_BRACE, "Expect '}' after class body."); err != nil {
		return nil, err
	}
	return &ast.ClassDecl{Name: ast.Ident{Name: name.Lexeme, L: name.Line}, Superclass: superclass, Methods: methods}, nil
}

// ---- statements ----

func (p *Parser) statement() (ast.Stmt, error) {
	switch {
	case p.match(token.PRINT):
		return p.printStatement()
	case p.match(token.LEFT_BRACE):
		lbrace := p.previous()
		stmts, err := p.block()
		if err != nil {
			return nil, err
		}
		return &ast.BlockStmt{Statements: stmts, L: lbrace.Line}, nil
	case p.match(token.IF):
		return p.ifStatement()
	case p.match(token.WHILE):
		return p.whileStatement()
	case p.match(token.FOR):
		return p.forStatement()
	case p.match(token.RETURN):
		return p.returnStatement()
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) block() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for !p.check(token.RIGHT_BRACE) && !p.isAtEnd() {
		decl, err := p.declaration()
		if err != nil {
			p.errors = append(p.errors, err)
			p.synchronize()
			continue
		}
		if decl != nil {
			stmts = append(stmts, decl)
		}
	}
	if _, err := p.consume(token.RIGHT_BRACE, "Expect '}' after block."); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) printStatement() (ast.Stmt, error) {
	keyword := p.previous()
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.SEMICOLON, "Expect ';' after value."); err != nil {
		return nil, err
	}
	return &ast.PrintStmt{Expression: value, L: keyword.Line}, nil
}

func (p *Parser) expressionStatement() (ast.Stmt, error) {
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.SEMICOLON, "Expect ';' after expression."); err != nil {
		return nil, err
	}
	return &ast.ExpressionStmt{Expression: expr}, nil
}

func (p *Parser) ifStatement() (ast.Stmt, error) {
	keyword := p.previous()
	if _, err := p.consume(token.LEFT_PAREN, "Expect '(' after 'if'."); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RIGHT_PAREN, "Expect ')' after if condition."); err != nil {
		return nil, err
	}
	thenBranch, err := p.statement()
	if err != nil {
		return nil, err
	}
	var elseBranch ast.Stmt
	if p.match(token.ELSE) {
		elseBranch, err = p.statement()
		if err != nil {
			return nil, err
		}
	}
	return &ast.IfStmt{Condition: cond, Then: thenBranch, Else: elseBranch, L: keyword.Line}, nil
}

func (p *Parser) whileStatement() (ast.Stmt, error) {
	keyword := p.previous()
	if _, err := p.consume(token.LEFT_PAREN, "Expect '(' after 'while'."); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RIGHT_PAREN, "Expect ')' after condition."); err != nil {
		return nil, err
	}
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Condition: cond, Body: body, L: keyword.Line}, nil
}

// forStatement desugars `for (init; cond; step) body` into
// `{ init; while (cond) { body; step; } }` at parse time, per the
// grammar in spec.md §4.2.
func (p *Parser) forStatement() (ast.Stmt, error) {
	keyword := p.previous()
	if _, err := p.consume(token.LEFT_PAREN, "Expect '(' after 'for'."); err != nil {
		return nil, err
	}

	var initializer ast.Stmt
	var err error
	switch {
	case p.match(token.SEMICOLON):
		initializer = nil
	case p.match(token.VAR):
		initializer, err = p.varDeclaration()
	default:
		initializer, err = p.expressionStatement()
	}
	if err != nil {
		return nil, err
	}

	var condition ast.Expr
	if !p.check(token.SEMICOLON) {
		condition, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.SEMICOLON, "Expect ';' after loop condition."); err != nil {
		return nil, err
	}

	var step ast.Expr
	if !p.check(token.RIGHT_PAREN) {
		step, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.RIGHT_PAREN, "Expect ')' after for clauses."); err != nil {
		return nil, err
	}

	body, err := p.statement()
	if err != nil {
		return nil, err
	}

	if step != nil {
		body = &ast.BlockStmt{Statements: []ast.Stmt{body, &ast.ExpressionStmt{Expression: step}}, L: keyword.Line}
	}
	if condition == nil {
		condition = ast.Literal{Value: true, L: keyword.Line}
	}
	body = &ast.WhileStmt{Condition: condition, Body: body, L: keyword.Line}
	if initializer != nil {
		body = &ast.BlockStmt{Statements: []ast.Stmt{initializer, body}, L: keyword.Line}
	}
	return body, nil
}

func (p *Parser) returnStatement() (ast.Stmt, error) {
	keyword := p.previous()
	var value ast.Expr
	var err error
	if !p.check(token.SEMICOLON) {
		value, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.SEMICOLON, "Expect ';' after return value."); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Keyword: keyword, Value: value}, nil
}

// ---- expressions (precedence climbing, lowest to highest) ----

func (p *Parser) expression() (ast.Expr, error) {
	return p.comma()
}

func (p *Parser) comma() (ast.Expr, error) {
	expr, err := p.assignment()
	if err != nil {
		return nil, err
	}
	for p.match(token.COMMA) {
		op := p.previous()
		right, err := p.assignment()
		if err != nil {
			return nil, err
		}
		expr = ast.Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) assignment() (ast.Expr, error) {
	expr, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.match(token.EQUAL) {
		equals := p.previous()
		value, err := p.assignment()
		if err != nil {
			return nil, err
		}
		switch target := expr.(type) {
		case *ast.Variable:
			return &ast.Assign{Name: target.Name, Value: value}, nil
		case ast.Get:
			return ast.Set{Object: target.Object, Name: target.Name, Value: value}, nil
		}
		return nil, p.errorAt(equals, "Invalid assignment target.")
	}
	return expr, nil
}

func (p *Parser) or() (ast.Expr, error) {
	expr, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.match(token.OR) {
		op := p.previous()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		expr = ast.Logical{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) and() (ast.Expr, error) {
	expr, err := p.ternary()
	if err != nil {
		return nil, err
	}
	for p.match(token.AND) {
		op := p.previous()
		right, err := p.ternary()
		if err != nil {
			return nil, err
		}
		expr = ast.Logical{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) ternary() (ast.Expr, error) {
	cond, err := p.equality()
	if err != nil {
		return nil, err
	}
	if p.match(token.QUESTION) {
		line := p.previous().Line
		then, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.COLON, "Expect ':' after then branch of ternary expression."); err != nil {
			return nil, err
		}
		elseBranch, err := p.expression()
		if err != nil {
			return nil, err
		}
		return ast.Ternary{Cond: cond, Then: then, Else: elseBranch, L: line}, nil
	}
	return cond, nil
}

func (p *Parser) equality() (ast.Expr, error) {
	return p.leftAssocBinary(p.comparison, token.BANG_EQUAL, token.EQUAL_EQUAL)
}

func (p *Parser) comparison() (ast.Expr, error) {
	return p.leftAssocBinary(p.term, token.GREATER, token.GREATER_EQUAL, token.LESS, token.LESS_EQUAL)
}

func (p *Parser) term() (ast.Expr, error) {
	return p.leftAssocBinary(p.factor, token.PLUS, token.MINUS)
}

func (p *Parser) factor() (ast.Expr, error) {
	return p.leftAssocBinary(p.unary, token.STAR, token.SLASH)
}

func (p *Parser) leftAssocBinary(operand func() (ast.Expr, error), types ...token.Type) (ast.Expr, error) {
	expr, err := operand()
	if err != nil {
		return nil, err
	}
	for p.match(types...) {
		op := p.previous()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		expr = ast.Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) unary() (ast.Expr, error) {
	if p.match(token.BANG, token.MINUS) {
		op := p.previous()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Operator: op, Right: right}, nil
	}
	return p.call()
}

func (p *Parser) call() (ast.Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.match(token.LEFT_PAREN):
			expr, err = p.finishCall(expr)
			if err != nil {
				return nil, err
			}
		case p.match(token.DOT):
			name, err := p.consume(token.IDENTIFIER, "Expect property name after '.'.")
			if err != nil {
				return nil, err
			}
			expr = ast.Get{Object: expr, Name: ast.Ident{Name: name.Lexeme, L: name.Line}}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) finishCall(callee ast.Expr) (ast.Expr, error) {
	var args []ast.Expr
	if !p.check(token.RIGHT_PAREN) {
		for {
			if len(args) >= maxArgs {
				p.errors = append(p.errors, p.errorAt(p.current(), "Can't have more than 255 arguments."))
			}
			arg, err := p.assignment()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	paren, err := p.consume(token.RIGHT_PAREN, "Expect ')' after arguments.")
	if err != nil {
		return nil, err
	}
	return ast.Call{Callee: callee, Paren: paren, Arguments: args}, nil
}

func (p *Parser) primary() (ast.Expr, error) {
	switch {
	case p.match(token.FALSE):
		return ast.Literal{Value: false, L: p.previous().Line}, nil
	case p.match(token.TRUE):
		return ast.Literal{Value: true, L: p.previous().Line}, nil
	case p.match(token.NIL):
		return ast.Literal{Value: nil, L: p.previous().Line}, nil
	case p.match(token.NUMBER, token.STRING):
		tok := p.previous()
		return ast.Literal{Value: tok.Literal, L: tok.Line}, nil
	case p.match(token.THIS):
		return ast.This{Keyword: p.previous()}, nil
	case p.match(token.SUPER):
		keyword := p.previous()
		if _, err := p.consume(token.DOT, "Expect '.' after 'super'."); err != nil {
			return nil, err
		}
		method, err := p.consume(token.IDENTIFIER, "Expect superclass method name.")
		if err != nil {
			return nil, err
		}
		return ast.Super{Keyword: keyword, Method: ast.Ident{Name: method.Lexeme, L: method.Line}}, nil
	case p.match(token.IDENTIFIER):
		tok := p.previous()
		return &ast.Variable{Name: ast.Ident{Name: tok.Lexeme, L: tok.Line}}, nil
	case p.match(token.LEFT_PAREN):
		lparen := p.previous()
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RIGHT_PAREN, "Expect ')' after expression."); err != nil {
			return nil, err
		}
		return ast.Grouping{Expression: expr, L: lparen.Line}, nil
	case p.match(token.FUN):
		return p.functionBody("function")
	default:
		return nil, p.errorAt(p.current(), "Expect expression.")
	}
}
