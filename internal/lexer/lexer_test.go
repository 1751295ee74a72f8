package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/loxi/internal/lexer"
	"github.com/aledsdavies/loxi/internal/token"
)

func typesOf(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestScanTokensPunctuationAndOperators(t *testing.T) {
	l := lexer.New(`(){},.-+;:/ *?! != = == < <= > >=`, nil)
	toks, hadError := l.ScanTokens()
	require.False(t, hadError)
	require.Equal(t, []token.Type{
		token.LEFT_PAREN, token.RIGHT_PAREN, token.LEFT_BRACE, token.RIGHT_BRACE,
		token.COMMA, token.DOT, token.MINUS, token.PLUS, token.SEMICOLON, token.COLON,
		token.SLASH, token.STAR, token.QUESTION, token.BANG, token.BANG_EQUAL,
		token.EQUAL, token.EQUAL_EQUAL, token.LESS, token.LESS_EQUAL,
		token.GREATER, token.GREATER_EQUAL, token.EOF,
	}, typesOf(toks))
}

func TestScanTokensKeywordsAndIdentifiers(t *testing.T) {
	l := lexer.New("and class else false for fun if nil or print return super this true var while foo_bar", nil)
	toks, hadError := l.ScanTokens()
	require.False(t, hadError)
	want := []token.Type{
		token.AND, token.CLASS, token.ELSE, token.FALSE, token.FOR, token.FUN,
		token.IF, token.NIL, token.OR, token.PRINT, token.RETURN, token.SUPER,
		token.THIS, token.TRUE, token.VAR, token.WHILE, token.IDENTIFIER, token.EOF,
	}
	require.Equal(t, want, typesOf(toks))
}

func TestScanNumberLiteral(t *testing.T) {
	l := lexer.New("123 45.67", nil)
	toks, hadError := l.ScanTokens()
	require.False(t, hadError)
	require.Equal(t, 123.0, toks[0].Literal)
	require.Equal(t, 45.67, toks[1].Literal)
}

func TestScanStringLiteralWithEmbeddedNewline(t *testing.T) {
	l := lexer.New("\"hello\nworld\" rest", nil)
	toks, hadError := l.ScanTokens()
	require.False(t, hadError)
	require.Equal(t, "hello\nworld", toks[0].Literal)
	// "rest" is scanned on line 2 because the string's embedded newline advanced the counter
	require.Equal(t, 2, toks[1].Line)
}

func TestScanUnterminatedStringReportsError(t *testing.T) {
	var gotLine int
	var gotMsg string
	l := lexer.New(`"oops`, func(line int, msg string) {
		gotLine, gotMsg = line, msg
	})
	_, hadError := l.ScanTokens()
	require.True(t, hadError)
	require.Equal(t, 1, gotLine)
	require.Equal(t, "Unterminated string.", gotMsg)
}

func TestScanLineCommentsAndBlockComments(t *testing.T) {
	l := lexer.New("1 // trailing comment\n/* block\ncomment */ 2", nil)
	toks, hadError := l.ScanTokens()
	require.False(t, hadError)
	require.Equal(t, []token.Type{token.NUMBER, token.NUMBER, token.EOF}, typesOf(toks))
	require.Equal(t, 3, toks[1].Line)
}

func TestScanUnexpectedCharacterContinuesScanning(t *testing.T) {
	var errs []string
	l := lexer.New("1 $ 2", func(_ int, msg string) { errs = append(errs, msg) })
	toks, hadError := l.ScanTokens()
	require.True(t, hadError)
	require.Equal(t, []string{"Unexpected character."}, errs)
	require.Equal(t, []token.Type{token.NUMBER, token.NUMBER, token.EOF}, typesOf(toks))
}

func TestLineNumbersAreMonotonicallyNonDecreasing(t *testing.T) {
	l := lexer.New("1\n2\n3\n\n4", nil)
	toks, _ := l.ScanTokens()
	last := 0
	for _, tok := range toks {
		require.GreaterOrEqual(t, tok.Line, last)
		last = tok.Line
	}
}
