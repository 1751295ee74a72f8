package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders an expression tree in a fully-parenthesized Lisp-like
// form. The parser tests use it to check precedence and to check that the
// same expression laid out on different lines prints identically; the
// printed form is not Loxi syntax and is not parsed back.
func Print(e Expr) string {
	switch n := e.(type) {
	case Ternary:
		return parenthesize("?:", n.Cond, n.Then, n.Else)
	case Binary:
		return parenthesize(n.Operator.Lexeme, n.Left, n.Right)
	case Logical:
		return parenthesize(n.Operator.Lexeme, n.Left, n.Right)
	case Unary:
		return parenthesize(n.Operator.Lexeme, n.Right)
	case Grouping:
		return parenthesize("group", n.Expression)
	case Literal:
		return printLiteral(n.Value)
	case *Variable:
		return n.Name.Name
	case *Assign:
		return parenthesize("= "+n.Name.Name, n.Value)
	case Call:
		args := make([]Expr, 0, len(n.Arguments)+1)
		args = append(args, n.Callee)
		args = append(args, n.Arguments...)
		return parenthesize("call", args...)
	case Get:
		return parenthesize("get ."+n.Name.Name, n.Object)
	case Set:
		return parenthesize("set ."+n.Name.Name, n.Object, n.Value)
	case This:
		return "this"
	case Super:
		return "super." + n.Method.Name
	case *FunctionExpr:
		return "fun(" + strconv.Itoa(len(n.Params)) + " params)"
	default:
		return fmt.Sprintf("<%T>", e)
	}
}

func printLiteral(v any) string {
	if v == nil {
		return "nil"
	}
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func parenthesize(name string, exprs ...Expr) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(name)
	for _, e := range exprs {
		b.WriteString(" ")
		b.WriteString(Print(e))
	}
	b.WriteString(")")
	return b.String()
}
