// internal/parser/parser.go
package parser

import (
	"strings"
	"unicode"
)

var typeNames = map[string]bool{
	"char":   true,
	"short":  true,
	"int":    true,
	"float":  true,
	"double": true,
	"long":   true,
	"void":   true,
}

// IsTypeName reports whether the word names a supported element type.
func IsTypeName(s string) bool { return typeNames[s] }

type Parser struct {
	source string
}

func New(source string) *Parser {
	return &Parser{source: source}
}

// Parse turns source text into includes and a function list. Statements no
// pattern recognizes become Unknown; parsing itself never fails.
func Parse(source string) *Program {
	return New(source).Parse()
}

func (p *Parser) Parse() *Program {
	prog := &Program{}
	src := stripComments(p.source)

	var kept []string
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#include") {
			prog.Includes = append(prog.Includes, includeTarget(trimmed))
			continue
		}
		kept = append(kept, line)
	}
	text := strings.Join(kept, "\n")

	i := 0
	for {
		fn, next := p.nextFunction(text, i)
		if fn == nil {
			break
		}
		prog.Functions = append(prog.Functions, fn)
		i = next
	}
	return prog
}

// nextFunction scans forward from pos for a 'returnType name(params) { body }'
// region and parses it, returning the position just past its closing brace.
func (p *Parser) nextFunction(text string, pos int) (*Function, int) {
	for pos < len(text) {
		start := skipSpace(text, pos)
		if start >= len(text) {
			return nil, len(text)
		}
		retType, i := readWord(text, start)
		if retType == "" || !typeNames[retType] {
			pos = start + 1
			continue
		}
		i = skipSpace(text, i)
		name, i := readWord(text, i)
		if name == "" {
			pos = start + 1
			continue
		}
		i = skipSpace(text, i)
		if i >= len(text) || text[i] != '(' {
			pos = start + 1
			continue
		}
		params, i, ok := balanced(text, i, '(', ')')
		if !ok {
			pos = start + 1
			continue
		}
		i = skipSpace(text, i)
		if i >= len(text) || text[i] != '{' {
			pos = start + 1
			continue
		}
		body, i, ok := balanced(text, i, '{', '}')
		if !ok {
			pos = start + 1
			continue
		}
		fn := &Function{
			ReturnType: retType,
			Name:       name,
			Params:     parseParams(params),
			Body:       p.parseBlock(body),
		}
		return fn, i
	}
	return nil, len(text)
}

func parseParams(s string) []Param {
	var params []Param
	for _, part := range splitTopLevel(s, ',') {
		part = strings.TrimSpace(part)
		if part == "" || part == "void" {
			continue
		}
		pointer := strings.Contains(part, "*")
		part = strings.ReplaceAll(part, "*", " ")
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		param := Param{Type: fields[0], Pointer: pointer}
		if len(fields) > 1 {
			param.Name = fields[len(fields)-1]
		}
		params = append(params, param)
	}
	return params
}

// parseBlock splits a body into statements. Loop and conditional headers are
// handled structurally so the braces of their nested bodies are not cut by
// the semicolon pass.
func (p *Parser) parseBlock(body string) []Stmt {
	var stmts []Stmt
	i := 0
	for i < len(body) {
		for i < len(body) && (unicode.IsSpace(rune(body[i])) || body[i] == ';') {
			i++
		}
		if i >= len(body) {
			break
		}
		if kw, _ := readWord(body, i); kw == "if" || kw == "while" || kw == "for" {
			stmt, next := p.parseControl(body, i, kw)
			stmts = append(stmts, stmt)
			i = next
			continue
		}
		j := i
		depth := 0
		inStr := false
	scan:
		for j < len(body) {
			c := body[j]
			if inStr {
				if c == '"' && body[j-1] != '\\' {
					inStr = false
				}
				j++
				continue
			}
			switch c {
			case '"':
				inStr = true
			case '(', '[':
				depth++
			case ')', ']':
				depth--
			case ';':
				if depth == 0 {
					break scan
				}
			}
			j++
		}
		seg := strings.TrimSpace(body[i:j])
		if seg != "" {
			stmts = append(stmts, p.recognize(seg))
		}
		i = j + 1
	}
	return stmts
}

func (p *Parser) parseControl(body string, pos int, kw string) (Stmt, int) {
	_, i := readWord(body, pos)
	i = skipSpace(body, i)
	if i >= len(body) || body[i] != '(' {
		return p.unknownToSemicolon(body, pos)
	}
	header, i, ok := balanced(body, i, '(', ')')
	if !ok {
		return p.unknownToSemicolon(body, pos)
	}
	i = skipSpace(body, i)
	if i >= len(body) || body[i] != '{' {
		return p.unknownToSemicolon(body, pos)
	}
	block, i, ok := balanced(body, i, '{', '}')
	if !ok {
		return p.unknownToSemicolon(body, pos)
	}
	raw := kw + " (" + strings.TrimSpace(header) + ")"

	switch kw {
	case "while":
		return &While{Cond: strings.TrimSpace(header), Body: p.parseBlock(block), Raw: raw}, i
	case "for":
		parts := splitTopLevel(header, ';')
		stmt := &For{Raw: raw, Body: p.parseBlock(block)}
		if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
			stmt.Init = p.recognize(strings.TrimSpace(parts[0]))
		}
		if len(parts) > 1 {
			stmt.Cond = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			stmt.Incr = strings.TrimSpace(parts[2])
		}
		return stmt, i
	default: // if
		stmt := &If{Cond: strings.TrimSpace(header), Then: p.parseBlock(block), Raw: raw}
		j := skipSpace(body, i)
		if w, after := readWord(body, j); w == "else" {
			j = skipSpace(body, after)
			if w2, _ := readWord(body, j); w2 == "if" {
				nested, next := p.parseControl(body, j, "if")
				stmt.Else = []Stmt{nested}
				return stmt, next
			}
			if j < len(body) && body[j] == '{' {
				elseBlock, next, ok := balanced(body, j, '{', '}')
				if ok {
					stmt.Else = p.parseBlock(elseBlock)
					return stmt, next
				}
			}
		}
		return stmt, i
	}
}

func (p *Parser) unknownToSemicolon(body string, pos int) (Stmt, int) {
	end := strings.IndexByte(body[pos:], ';')
	if end < 0 {
		return &Unknown{Raw: strings.TrimSpace(body[pos:])}, len(body)
	}
	return &Unknown{Raw: strings.TrimSpace(body[pos : pos+end])}, pos + end + 1
}

// recognize classifies one semicolon-terminated segment. The attempt order is
// load-bearing: array declarations must win over scalar ones, and the
// multiply-by-call return shape over the generic return.
func (p *Parser) recognize(seg string) Stmt {
	if w, rest := splitWord(seg); typeNames[w] {
		if stmt := p.declaration(w, rest, seg); stmt != nil {
			return stmt
		}
	}
	if stmt := p.assignment(seg); stmt != nil {
		return stmt
	}
	if name, args, ok := callShape(seg); ok {
		return &CallStmt{Name: name, Args: args, Raw: seg}
	}
	if w, rest := splitWord(seg); w == "return" {
		return p.returnStmt(rest, seg)
	}
	return &Unknown{Raw: seg}
}

func (p *Parser) declaration(typeWord, rest, raw string) Stmt {
	bracket := strings.IndexByte(rest, '[')
	assign := strings.IndexByte(rest, '=')
	if bracket >= 0 && (assign < 0 || bracket < assign) {
		return p.arrayDecl(typeWord, rest, raw)
	}

	pointer := false
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "*") {
		pointer = true
		rest = strings.TrimSpace(rest[1:])
	}
	name := rest
	init := ""
	if k := strings.IndexByte(rest, '='); k >= 0 {
		name = strings.TrimSpace(rest[:k])
		init = strings.TrimSpace(rest[k+1:])
	}
	if !isIdent(name) {
		return nil
	}
	return &VariableDecl{VarType: typeWord, Pointer: pointer, Name: name, Init: init, Raw: raw}
}

func (p *Parser) arrayDecl(elemType, rest, raw string) Stmt {
	open := strings.IndexByte(rest, '[')
	name := strings.TrimSpace(rest[:open])
	if !isIdent(name) {
		return nil
	}
	closing := strings.IndexByte(rest[open:], ']')
	if closing < 0 {
		return nil
	}
	closing += open
	sizeText := strings.TrimSpace(rest[open+1 : closing])

	stmt := &ArrayDecl{ElemType: elemType, Name: name, Raw: raw}
	switch {
	case sizeText == "":
		stmt.Size = ArraySize{Kind: SizeInferred}
	case isNumber(sizeText):
		n := 0
		for _, c := range sizeText {
			n = n*10 + int(c-'0')
		}
		stmt.Size = ArraySize{Kind: SizeNumber, Count: n}
	default:
		stmt.Size = ArraySize{Kind: SizeSymbol, Symbol: sizeText}
	}

	after := strings.TrimSpace(rest[closing+1:])
	if after == "" {
		return stmt
	}
	if !strings.HasPrefix(after, "=") {
		return nil
	}
	init := strings.TrimSpace(after[1:])
	switch {
	case strings.HasPrefix(init, "{") && strings.HasSuffix(init, "}"):
		for _, el := range splitTopLevel(init[1:len(init)-1], ',') {
			el = strings.TrimSpace(el)
			if el != "" {
				stmt.Init = append(stmt.Init, el)
			}
		}
	case strings.HasPrefix(init, `"`) && strings.HasSuffix(init, `"`) && len(init) >= 2:
		stmt.StrInit = init[1 : len(init)-1]
		stmt.IsStr = true
	default:
		return nil
	}
	return stmt
}

func (p *Parser) assignment(seg string) Stmt {
	k := topLevelAssign(seg)
	if k < 0 {
		return nil
	}
	left := strings.TrimSpace(seg[:k])
	right := strings.TrimSpace(seg[k+1:])
	if left == "" || right == "" {
		return nil
	}
	if isIdent(left) {
		return &Assignment{Target: left, Value: right, Raw: seg}
	}
	if strings.HasSuffix(left, "]") {
		open := strings.IndexByte(left, '[')
		if open > 0 {
			name := strings.TrimSpace(left[:open])
			if isIdent(name) {
				return &Assignment{
					Target: name,
					Index:  strings.TrimSpace(left[open+1 : len(left)-1]),
					Value:  right,
					Raw:    seg,
				}
			}
		}
	}
	return nil
}

func (p *Parser) returnStmt(rest, raw string) Stmt {
	rest = strings.TrimSpace(rest)
	// 'var * callee(args)' marks a recursive return: the multiplicand and the
	// callee are kept separately for the engine's continuation handling.
	if star := topLevelStar(rest); star > 0 {
		left := strings.TrimSpace(rest[:star])
		if name, args, ok := callShape(strings.TrimSpace(rest[star+1:])); ok && isIdent(left) {
			return &Return{
				Expr:      rest,
				Recursive: &RecursiveReturn{Var: left, Callee: name, Args: args},
				Raw:       raw,
			}
		}
	}
	return &Return{Expr: rest, Raw: raw}
}

// CallShape reports whether s has the form 'name(args)' and splits it.
func CallShape(s string) (string, []string, bool) {
	return callShape(s)
}

// Recognize classifies a single semicolon-free segment. The engine uses it
// to re-parse loop increment expressions at execution time.
func Recognize(seg string) Stmt {
	return New("").recognize(seg)
}

// --- text helpers ---

func stripComments(src string) string {
	var b strings.Builder
	i := 0
	for i < len(src) {
		if strings.HasPrefix(src[i:], "//") {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		}
		if strings.HasPrefix(src[i:], "/*") {
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				break
			}
			i += end + 4
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(src[i])
		i++
	}
	return b.String()
}

func includeTarget(line string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "#include"))
	rest = strings.Trim(rest, `<>"`)
	return rest
}

// balanced captures the content between open at pos and its matching close,
// returning the inner text and the position just past the closer. Brackets
// inside string literals do not count toward the depth.
func balanced(text string, pos int, open, close byte) (string, int, bool) {
	if pos >= len(text) || text[pos] != open {
		return "", pos, false
	}
	depth := 0
	inStr := false
	for i := pos; i < len(text); i++ {
		c := text[i]
		if inStr {
			if c == '"' && text[i-1] != '\\' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[pos+1 : i], i + 1, true
			}
		}
	}
	return "", pos, false
}

// splitTopLevel splits on sep, ignoring separators nested in parens,
// brackets, or braces, so commas inside call arguments survive.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	inStr := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			if c == '"' && (i == 0 || s[i-1] != '\\') {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// topLevelAssign finds a bare '=' outside any nesting or string literal,
// skipping the two-character comparison operators.
func topLevelAssign(s string) int {
	depth := 0
	inStr := false
	for i := 0; i < len(s); i++ {
		if inStr {
			if s[i] == '"' && s[i-1] != '\\' {
				inStr = false
			}
			continue
		}
		switch s[i] {
		case '"':
			inStr = true
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(s) && s[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && (s[i-1] == '=' || s[i-1] == '!' || s[i-1] == '<' || s[i-1] == '>') {
				continue
			}
			return i
		}
	}
	return -1
}

func topLevelStar(s string) int {
	depth := 0
	inStr := false
	for i := 0; i < len(s); i++ {
		if inStr {
			if s[i] == '"' && s[i-1] != '\\' {
				inStr = false
			}
			continue
		}
		switch s[i] {
		case '"':
			inStr = true
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '*':
			if depth == 0 && (i+1 >= len(s) || s[i+1] != '*') && (i == 0 || s[i-1] != '*') {
				return i
			}
		}
	}
	return -1
}

// callShape matches 'name(args)' spanning the whole segment.
func callShape(s string) (string, []string, bool) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", nil, false
	}
	name := strings.TrimSpace(s[:open])
	if !isIdent(name) {
		return "", nil, false
	}
	inner, end, ok := balanced(s, open, '(', ')')
	if !ok || end != len(s) {
		return "", nil, false
	}
	var args []string
	for _, a := range splitTopLevel(inner, ',') {
		a = strings.TrimSpace(a)
		if a != "" {
			args = append(args, a)
		}
	}
	return name, args, true
}

func splitWord(s string) (string, string) {
	w, i := readWord(s, 0)
	return w, s[i:]
}

func readWord(s string, pos int) (string, int) {
	i := pos
	for i < len(s) && (unicode.IsLetter(rune(s[i])) || s[i] == '_' || (i > pos && unicode.IsDigit(rune(s[i])))) {
		i++
	}
	return s[pos:i], i
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && unicode.IsSpace(rune(s[pos])) {
		pos++
	}
	return pos
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if unicode.IsLetter(c) || c == '_' {
			continue
		}
		if i > 0 && unicode.IsDigit(c) {
			continue
		}
		return false
	}
	return true
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}
