// internal/lexer/scanner.go
package lexer

import (
	"fmt"
	"strconv"
	"unicode"
)

type TokenType string

const (
	TokenIdent       TokenType = "IDENT"
	TokenNumber      TokenType = "NUMBER"
	TokenString      TokenType = "STRING"
	TokenChar        TokenType = "CHAR"
	TokenArrayAccess TokenType = "ARRAY_ACCESS"
	TokenUnknown     TokenType = "UNKNOWN"
	TokenEOF         TokenType = "EOF"

	// Operators
	TokenPower   TokenType = "**"
	TokenStar    TokenType = "*"
	TokenSlash   TokenType = "/"
	TokenPercent TokenType = "%"
	TokenPlus    TokenType = "+"
	TokenMinus   TokenType = "-"
	TokenLE      TokenType = "<="
	TokenGE      TokenType = ">="
	TokenEQ      TokenType = "=="
	TokenNE      TokenType = "!="
	TokenLT      TokenType = "<"
	TokenGT      TokenType = ">"
	TokenAnd     TokenType = "&&"
	TokenOr      TokenType = "||"
	TokenLParen  TokenType = "("
	TokenRParen  TokenType = ")"
	TokenEqual   TokenType = "="
	TokenComma   TokenType = ","
)

// Token is one unit of an expression. Array accesses keep their index text
// unparsed so the evaluator can resolve it recursively. Numeric literals
// carry their parsed value; Integral distinguishes 3 from 3.0.
type Token struct {
	Type     TokenType
	Lexeme   string
	Value    float64
	Integral bool
	Name     string // array access: base identifier
	Index    string // array access: raw index expression
}

func (t Token) String() string {
	return fmt.Sprintf("[%s] '%s'", t.Type, t.Lexeme)
}

// IsOperator reports whether the token is one of the fixed operator set.
func (t Token) IsOperator() bool {
	switch t.Type {
	case TokenPower, TokenStar, TokenSlash, TokenPercent, TokenPlus, TokenMinus,
		TokenLE, TokenGE, TokenEQ, TokenNE, TokenLT, TokenGT,
		TokenAnd, TokenOr, TokenLParen, TokenRParen, TokenEqual, TokenComma:
		return true
	}
	return false
}

type Scanner struct {
	source  string
	tokens  []Token
	start   int
	current int
}

func NewScanner(source string) *Scanner {
	return &Scanner{source: source}
}

func (s *Scanner) ScanTokens() []Token {
	for !s.isAtEnd() {
		s.skipSpace()
		s.start = s.current
		if s.isAtEnd() {
			break
		}
		s.scanToken()
	}
	s.tokens = append(s.tokens, Token{Type: TokenEOF})
	return s.tokens
}

func (s *Scanner) scanToken() {
	c := s.advance()
	switch c {
	case '(':
		s.addToken(TokenLParen)
	case ')':
		s.addToken(TokenRParen)
	case ',':
		s.addToken(TokenComma)
	case '+':
		s.addToken(TokenPlus)
	case '-':
		if isDigit(s.peek()) && !s.previousIsOperand() {
			s.number()
			return
		}
		s.addToken(TokenMinus)
	case '*':
		if s.match('*') {
			s.addToken(TokenPower)
		} else {
			s.addToken(TokenStar)
		}
	case '/':
		s.addToken(TokenSlash)
	case '%':
		s.addToken(TokenPercent)
	case '=':
		if s.match('=') {
			s.addToken(TokenEQ)
		} else {
			s.addToken(TokenEqual)
		}
	case '!':
		if s.match('=') {
			s.addToken(TokenNE)
		} else {
			s.unknown()
		}
	case '<':
		if s.match('=') {
			s.addToken(TokenLE)
		} else {
			s.addToken(TokenLT)
		}
	case '>':
		if s.match('=') {
			s.addToken(TokenGE)
		} else {
			s.addToken(TokenGT)
		}
	case '&':
		if s.match('&') {
			s.addToken(TokenAnd)
		} else {
			s.unknown()
		}
	case '|':
		if s.match('|') {
			s.addToken(TokenOr)
		} else {
			s.unknown()
		}
	case '"':
		s.stringLiteral()
	case '\'':
		s.charLiteral()
	default:
		if isDigit(c) {
			s.number()
		} else if isAlpha(c) {
			s.identifier()
		} else {
			s.unknown()
		}
	}
}

// previousIsOperand reports whether the last token could end an operand,
// which decides if '-' is a sign or a binary operator.
func (s *Scanner) previousIsOperand() bool {
	if len(s.tokens) == 0 {
		return false
	}
	switch s.tokens[len(s.tokens)-1].Type {
	case TokenIdent, TokenNumber, TokenChar, TokenString, TokenArrayAccess, TokenRParen:
		return true
	}
	return false
}

func (s *Scanner) identifier() {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	name := s.source[s.start:s.current]
	// An identifier directly followed by '[' is an array access; the index
	// text is captured through the matching bracket without being parsed.
	if s.peek() == '[' {
		s.advance()
		depth := 1
		idxStart := s.current
		for !s.isAtEnd() && depth > 0 {
			switch s.source[s.current] {
			case '[':
				depth++
			case ']':
				depth--
			}
			if depth > 0 {
				s.current++
			}
		}
		index := s.source[idxStart:s.current]
		if !s.isAtEnd() {
			s.advance() // closing ']'
		}
		s.tokens = append(s.tokens, Token{
			Type:   TokenArrayAccess,
			Lexeme: s.source[s.start:s.current],
			Name:   name,
			Index:  index,
		})
		return
	}
	s.addToken(TokenIdent)
}

func (s *Scanner) number() {
	for isDigit(s.peek()) {
		s.advance()
	}
	integral := true
	if s.peek() == '.' && isDigit(s.peekNext()) {
		integral = false
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	lexeme := s.source[s.start:s.current]
	value, _ := strconv.ParseFloat(lexeme, 64)
	s.tokens = append(s.tokens, Token{Type: TokenNumber, Lexeme: lexeme, Value: value, Integral: integral})
}

func (s *Scanner) stringLiteral() {
	for s.peek() != '"' && !s.isAtEnd() {
		if s.peek() == '\\' {
			s.advance()
		}
		s.advance()
	}
	if s.isAtEnd() {
		s.tokens = append(s.tokens, Token{Type: TokenUnknown, Lexeme: s.source[s.start:s.current]})
		return
	}
	s.advance()
	value := s.source[s.start+1 : s.current-1]
	s.tokens = append(s.tokens, Token{Type: TokenString, Lexeme: value})
}

func (s *Scanner) charLiteral() {
	if s.isAtEnd() {
		s.unknown()
		return
	}
	c := s.advance()
	if c == '\\' && !s.isAtEnd() {
		esc := s.advance()
		switch esc {
		case 'n':
			c = '\n'
		case 't':
			c = '\t'
		case '0':
			c = 0
		default:
			c = esc
		}
	}
	if s.peek() == '\'' {
		s.advance()
	}
	s.tokens = append(s.tokens, Token{
		Type:     TokenChar,
		Lexeme:   s.source[s.start:s.current],
		Value:    float64(c),
		Integral: true,
	})
}

// unknown consumes a run of unrecognized bytes into a single token so the
// caller can report it without the scan aborting.
func (s *Scanner) unknown() {
	for !s.isAtEnd() && !unicode.IsSpace(rune(s.peek())) && !isKnownStart(s.peek()) {
		s.advance()
	}
	s.tokens = append(s.tokens, Token{Type: TokenUnknown, Lexeme: s.source[s.start:s.current]})
}

func isKnownStart(c byte) bool {
	switch c {
	case '(', ')', ',', '+', '-', '*', '/', '%', '=', '<', '>', '"', '\'':
		return true
	}
	return isDigit(c) || isAlpha(c)
}

func (s *Scanner) addToken(t TokenType) {
	s.tokens = append(s.tokens, Token{Type: t, Lexeme: s.source[s.start:s.current]})
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.source[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) advance() byte {
	s.current++
	return s.source[s.current-1]
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return '\000'
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return '\000'
	}
	return s.source[s.current+1]
}

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) skipSpace() {
	for !s.isAtEnd() && unicode.IsSpace(rune(s.peek())) {
		s.advance()
	}
}

func isAlpha(c byte) bool {
	return unicode.IsLetter(rune(c)) || c == '_'
}

func isAlphaNumeric(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
