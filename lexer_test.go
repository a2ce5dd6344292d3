package main

import (
	"testing"
)

func tokenize(t *testing.T, src string) []Token {
	t.Helper()
	lex := NewLexer("test.sn", src)
	toks := lex.Tokenize()
	if len(lex.Errors) > 0 {
		t.Fatalf("unexpected lex errors: %v", lex.Errors)
	}
	return toks
}

func TestLexerKeywordsAndIdents(t *testing.T) {
	toks := tokenize(t, "fn main() { return }")
	want := []TokenType{TokFn, TokIdent, TokLParen, TokRParen, TokLBrace, TokReturn, TokRBrace, TokEOF}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(toks), toks)
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: expected type %v, got %v (%q)", i, w, toks[i].Type, toks[i].Lexeme)
		}
	}
}

func TestLexerNewlinesAreTokens(t *testing.T) {
	toks := tokenize(t, "var a = 1\nvar b = 2")
	sawNewline := false
	for _, tok := range toks {
		if tok.Type == TokNewline {
			sawNewline = true
		}
	}
	if !sawNewline {
		t.Fatal("expected a TokNewline between the two statements")
	}
}

func TestLexerNumbers(t *testing.T) {
	toks := tokenize(t, "42 3.14 1e9")
	if toks[0].Type != TokNumber || toks[0].Lexeme != "42" {
		t.Errorf("expected number 42, got %v", toks[0])
	}
	if toks[1].Type != TokNumber || toks[1].Lexeme != "3.14" {
		t.Errorf("expected number 3.14, got %v", toks[1])
	}
	if toks[2].Type != TokNumber || toks[2].Lexeme != "1e9" {
		t.Errorf("expected number 1e9, got %v", toks[2])
	}
}

func TestLexerStringVsInterpolated(t *testing.T) {
	toks := tokenize(t, `"plain" "has ${x} inside"`)
	if toks[0].Type != TokString || toks[0].Lexeme != "plain" {
		t.Errorf("expected plain string, got %v", toks[0])
	}
	if toks[1].Type != TokInterpString {
		t.Errorf("expected interpolated string token, got %v", toks[1])
	}
}

func TestLexerMultiCharOperators(t *testing.T) {
	cases := []struct {
		src  string
		want TokenType
	}{
		{":=", TokDeclare},
		{"..", TokDotDot},
		{"...", TokEllipsis},
		{"=>", TokArrow},
		{"==", TokEq},
		{"!=", TokNe},
		{"<=", TokLe},
		{">=", TokGe},
		{"<<", TokShl},
		{">>", TokShr},
		{"&&", TokAnd},
		{"||", TokOr},
		{"++", TokInc},
		{"--", TokDec},
		{"+=", TokPlusEq},
	}
	for _, c := range cases {
		toks := tokenize(t, c.src)
		if toks[0].Type != c.want {
			t.Errorf("%q: expected %v, got %v", c.src, c.want, toks[0].Type)
		}
	}
}

func TestLexerCommentsSkipped(t *testing.T) {
	toks := tokenize(t, "var x = 1 // trailing\n/* block\ncomment */ var y = 2")
	for _, tok := range toks {
		if tok.Type == TokIdent && (tok.Lexeme == "trailing" || tok.Lexeme == "block") {
			t.Errorf("comment text leaked into token stream: %v", tok)
		}
	}
}

func TestLexerCharLiteral(t *testing.T) {
	toks := tokenize(t, "'a'")
	if toks[0].Type != TokChar || toks[0].Lexeme != "a" {
		t.Fatalf("expected char token 'a', got %v", toks[0])
	}
}

func TestLexerTrailingEOF(t *testing.T) {
	toks := tokenize(t, "x")
	if toks[len(toks)-1].Type != TokEOF {
		t.Fatal("token stream must end in TokEOF")
	}
}

func TestLexerUnterminatedStringReported(t *testing.T) {
	lex := NewLexer("test.sn", `"oops`)
	lex.Tokenize()
	if len(lex.Errors) == 0 {
		t.Fatal("expected a diagnostic for an unterminated string")
	}
}
