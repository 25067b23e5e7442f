package lexer

import "testing"

func scan(input string) []Token {
	toks := NewScanner(input).ScanTokens()
	// Drop the trailing EOF for easier comparisons.
	return toks[:len(toks)-1]
}

func TestOperators(t *testing.T) {
	tests := []struct {
		input string
		types []TokenType
	}{
		{"a + b", []TokenType{TokenIdent, TokenPlus, TokenIdent}},
		{"a - b", []TokenType{TokenIdent, TokenMinus, TokenIdent}},
		{"x <= 5", []TokenType{TokenIdent, TokenLE, TokenNumber}},
		{"x >= 5", []TokenType{TokenIdent, TokenGE, TokenNumber}},
		{"x == 0", []TokenType{TokenIdent, TokenEQ, TokenNumber}},
		{"x != 0", []TokenType{TokenIdent, TokenNE, TokenNumber}},
		{"a && b", []TokenType{TokenIdent, TokenAnd, TokenIdent}},
		{"a || b", []TokenType{TokenIdent, TokenOr, TokenIdent}},
		{"a ** 2", []TokenType{TokenIdent, TokenPower, TokenNumber}},
		{"a * 2", []TokenType{TokenIdent, TokenStar, TokenNumber}},
		{"7 / 2", []TokenType{TokenNumber, TokenSlash, TokenNumber}},
		{"7 % 2", []TokenType{TokenNumber, TokenPercent, TokenNumber}},
		{"f(x, y)", []TokenType{TokenIdent, TokenLParen, TokenIdent, TokenComma, TokenIdent, TokenRParen}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := scan(tt.input)
			if len(toks) != len(tt.types) {
				t.Fatalf("got %d tokens, want %d: %v", len(toks), len(tt.types), toks)
			}
			for i, want := range tt.types {
				if toks[i].Type != want {
					t.Errorf("token %d: got %s, want %s", i, toks[i].Type, want)
				}
			}
		})
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		input    string
		value    float64
		integral bool
	}{
		{"42", 42, true},
		{"3.5", 3.5, false},
		{"-7", -7, true},
		{"0", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := scan(tt.input)
			if len(toks) != 1 || toks[0].Type != TokenNumber {
				t.Fatalf("expected one number token, got %v", toks)
			}
			if toks[0].Value != tt.value {
				t.Errorf("value: got %v, want %v", toks[0].Value, tt.value)
			}
			if toks[0].Integral != tt.integral {
				t.Errorf("integral: got %v, want %v", toks[0].Integral, tt.integral)
			}
		})
	}
}

func TestMinusAfterOperandIsBinary(t *testing.T) {
	toks := scan("n - 1")
	if len(toks) != 3 {
		t.Fatalf("got %d tokens, want 3: %v", len(toks), toks)
	}
	if toks[1].Type != TokenMinus {
		t.Errorf("middle token: got %s, want %s", toks[1].Type, TokenMinus)
	}
	if toks[2].Value != 1 {
		t.Errorf("right value: got %v, want 1", toks[2].Value)
	}
}

func TestArrayAccess(t *testing.T) {
	toks := scan("a[i + 1]")
	if len(toks) != 1 {
		t.Fatalf("got %d tokens, want 1: %v", len(toks), toks)
	}
	tok := toks[0]
	if tok.Type != TokenArrayAccess {
		t.Fatalf("got %s, want %s", tok.Type, TokenArrayAccess)
	}
	if tok.Name != "a" {
		t.Errorf("name: got %q, want %q", tok.Name, "a")
	}
	if tok.Index != "i + 1" {
		t.Errorf("index: got %q, want %q", tok.Index, "i + 1")
	}
}

func TestNestedArrayIndex(t *testing.T) {
	toks := scan("a[b[0]]")
	if len(toks) != 1 || toks[0].Type != TokenArrayAccess {
		t.Fatalf("expected one array access, got %v", toks)
	}
	if toks[0].Index != "b[0]" {
		t.Errorf("index: got %q, want %q", toks[0].Index, "b[0]")
	}
}

func TestLiterals(t *testing.T) {
	toks := scan(`"hello"`)
	if len(toks) != 1 || toks[0].Type != TokenString || toks[0].Lexeme != "hello" {
		t.Fatalf("string literal: got %v", toks)
	}

	toks = scan("'a'")
	if len(toks) != 1 || toks[0].Type != TokenChar {
		t.Fatalf("char literal: got %v", toks)
	}
	if toks[0].Value != 97 {
		t.Errorf("char value: got %v, want 97", toks[0].Value)
	}

	toks = scan(`'\n'`)
	if len(toks) != 1 || toks[0].Value != 10 {
		t.Fatalf("escaped char: got %v", toks)
	}
}

func TestUnknownTokenDoesNotAbortScan(t *testing.T) {
	toks := scan("x @# y")
	if len(toks) != 3 {
		t.Fatalf("got %d tokens, want 3: %v", len(toks), toks)
	}
	if toks[1].Type != TokenUnknown {
		t.Errorf("middle token: got %s, want %s", toks[1].Type, TokenUnknown)
	}
	if toks[2].Type != TokenIdent || toks[2].Lexeme != "y" {
		t.Errorf("scan did not continue past unknown token: %v", toks[2])
	}
}
