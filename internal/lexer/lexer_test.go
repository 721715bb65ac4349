package lexer

import (
	"testing"

	"github.com/funvibe/formula/internal/token"
)

func TestNextToken(t *testing.T) {
	input := `x + 1.5 * y_2 != 'a\'b' # trailing comment
	where q = [1, 2] and not {k: null} <= 3 -> def base recursive: ^ %;`

	tests := []struct {
		expectedType   token.TokenType
		expectedLexeme string
	}{
		{token.IDENT, "x"},
		{token.PLUS, "+"},
		{token.DECIMAL, "1.5"},
		{token.ASTERISK, "*"},
		{token.IDENT, "y_2"},
		{token.NOT_EQ, "!="},
		{token.STRING, `'a\'b'`},
		{token.WHERE, "where"},
		{token.IDENT, "q"},
		{token.ASSIGN, "="},
		{token.LBRACKET, "["},
		{token.INT, "1"},
		{token.COMMA, ","},
		{token.INT, "2"},
		{token.RBRACKET, "]"},
		{token.AND, "and"},
		{token.NOT, "not"},
		{token.LBRACE, "{"},
		{token.IDENT, "k"},
		{token.COLON, ":"},
		{token.NULL, "null"},
		{token.RBRACE, "}"},
		{token.LTE, "<="},
		{token.INT, "3"},
		{token.ARROW, "->"},
		{token.DEF, "def"},
		{token.BASE, "base"},
		{token.RECURSIVE, "recursive"},
		{token.COLON, ":"},
		{token.CARET, "^"},
		{token.PERCENT, "%"},
		{token.SEMICOLON, ";"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (%q)", i, tt.expectedType, tok.Type, tok.Lexeme)
		}
		if tok.Lexeme != tt.expectedLexeme {
			t.Fatalf("tests[%d] - lexeme wrong. expected=%q, got=%q", i, tt.expectedLexeme, tok.Lexeme)
		}
	}
}

func TestLiterals(t *testing.T) {
	toks := New(`42 "a\nb" 0.25`).Tokens()
	if toks[0].Literal.(int64) != 42 {
		t.Errorf("int literal = %v", toks[0].Literal)
	}
	if toks[1].Literal.(string) != "a\nb" {
		t.Errorf("string literal = %q", toks[1].Literal)
	}
	if toks[2].Literal.(float64) != 0.25 {
		t.Errorf("decimal literal = %v", toks[2].Literal)
	}
}

func TestPositions(t *testing.T) {
	toks := New("a\n  b").Tokens()
	if toks[0].Line != 1 || toks[0].Column != 1 {
		t.Errorf("a at %d:%d", toks[0].Line, toks[0].Column)
	}
	if toks[1].Line != 2 || toks[1].Column != 3 {
		t.Errorf("b at %d:%d", toks[1].Line, toks[1].Column)
	}
}

func TestIllegal(t *testing.T) {
	toks := New(`'open`).Tokens()
	if toks[0].Type != token.ILLEGAL {
		t.Errorf("expected ILLEGAL, got %s", toks[0].Type)
	}
	toks = New("99999999999999999999").Tokens()
	if toks[0].Type != token.ILLEGAL {
		t.Errorf("expected overflow to be ILLEGAL, got %s", toks[0].Type)
	}
}
