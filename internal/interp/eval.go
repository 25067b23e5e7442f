// internal/interp/eval.go
package interp

import (
	"math"
	"strings"

	"cstep/internal/errors"
	"cstep/internal/lexer"
	"cstep/internal/memory"
	"cstep/internal/parser"
)

// evaluate resolves an expression against the current memory image. Evaluation
// is flat: a single operand, a pointer dereference, or one binary operation
// between two operands. Anything deeper resolves to its first operand.
func (i *Interpreter) evaluate(expr, scope string) (memory.Value, *errors.Diagnostic) {
	expr = strings.TrimSpace(expr)
	expr = stripOuterParens(expr)
	if expr == "" {
		return memory.Int(0), nil
	}
	if strings.HasPrefix(expr, "&") {
		name := strings.TrimSpace(expr[1:])
		sym, ok := i.space.Lookup(name, scope)
		if !ok {
			return memory.Int(0), errors.NewWarning(errors.UndeclaredSymbol, "%s is not declared", name).In(scope)
		}
		return memory.Addr(sym.Address), nil
	}
	// A call in expression position resolves through the last-return cache;
	// live calls are handled by the engine before evaluation. No cached
	// value yet means the callee defaults to 0.
	if name, _, ok := parser.CallShape(expr); ok {
		if v, ok := i.space.LastReturn(name); ok {
			return v, nil
		}
		if i.program.Find(name) == nil {
			return memory.Int(0), errors.NewWarning(errors.UndefinedFunction, "%s is not defined", name).In(scope)
		}
		return memory.Int(0), nil
	}

	tokens := lexer.NewScanner(expr).ScanTokens()
	tokens = tokens[:len(tokens)-1] // drop EOF
	switch {
	case len(tokens) == 0:
		return memory.Int(0), nil
	case len(tokens) == 1:
		return i.operand(tokens[0], scope)
	case len(tokens) == 2 && tokens[0].Type == lexer.TokenStar && tokens[1].Type == lexer.TokenIdent:
		return i.deref(tokens[1].Lexeme, scope)
	case len(tokens) == 3 && tokens[1].IsOperator():
		left, diag := i.operand(tokens[0], scope)
		if diag != nil && diag.Fatal {
			return memory.Int(0), diag
		}
		right, diag2 := i.operand(tokens[2], scope)
		if diag2 != nil && diag2.Fatal {
			return memory.Int(0), diag2
		}
		if diag != nil {
			i.report(diag)
		}
		if diag2 != nil {
			i.report(diag2)
		}
		return binary(left, tokens[1].Type, right, scope)
	default:
		return i.operand(tokens[0], scope)
	}
}

func (i *Interpreter) operand(t lexer.Token, scope string) (memory.Value, *errors.Diagnostic) {
	switch t.Type {
	case lexer.TokenNumber, lexer.TokenChar:
		if t.Integral {
			return memory.Int(int64(t.Value)), nil
		}
		return memory.Float(t.Value), nil
	case lexer.TokenIdent:
		if v, ok := i.space.GetVariable(t.Lexeme, scope); ok {
			return v, nil
		}
		return memory.Int(0), errors.NewWarning(errors.UndeclaredSymbol, "%s is not declared", t.Lexeme).In(scope)
	case lexer.TokenArrayAccess:
		return i.element(t.Name, t.Index, scope)
	case lexer.TokenString:
		return memory.Int(0), errors.NewWarning(errors.UnsupportedItem, "string literal outside printf").In(scope)
	default:
		return memory.Int(0), errors.NewFatal(errors.UnknownToken, "cannot evaluate '%s'", t.Lexeme).In(scope)
	}
}

// element reads one array element through a recursively evaluated index.
// An index outside the declared bounds is fatal.
func (i *Interpreter) element(name, index, scope string) (memory.Value, *errors.Diagnostic) {
	sym, ok := i.space.Lookup(name, scope)
	if !ok {
		return memory.Int(0), errors.NewWarning(errors.UndeclaredSymbol, "%s is not declared", name).In(scope)
	}
	idxVal, diag := i.evaluate(index, scope)
	if diag != nil && diag.Fatal {
		return memory.Int(0), diag
	}
	idx := int(idxVal.AsInt())
	if sym.Array == nil {
		if sym.Pointer {
			base := i.space.ReadCell(sym.Address)
			if base.Kind == memory.KindAddr {
				return i.space.ReadCell(base.A + uint32(idx*sym.Type.Size())), nil
			}
		}
		return memory.Int(0), errors.NewWarning(errors.UnsupportedItem, "%s is not an array", name).In(scope)
	}
	if idx < 0 || idx >= sym.Array.Count {
		return memory.Int(0), errors.NewFatal(errors.OutOfBounds,
			"index %d out of bounds for %s[%d]", idx, name, sym.Array.Count).In(scope)
	}
	return i.space.ReadElement(sym, idx), nil
}

func (i *Interpreter) deref(name, scope string) (memory.Value, *errors.Diagnostic) {
	sym, ok := i.space.Lookup(name, scope)
	if !ok {
		return memory.Int(0), errors.NewWarning(errors.UndeclaredSymbol, "%s is not declared", name).In(scope)
	}
	v := i.space.ReadCell(sym.Address)
	if v.Kind != memory.KindAddr {
		return memory.Int(0), errors.NewWarning(errors.BadAssignment, "%s does not hold an address", name).In(scope)
	}
	return i.space.ReadCell(v.A), nil
}

// binary applies one operator. Integer operands stay integral: division
// truncates toward zero and modulo is integer-only. Division or modulo by
// zero is fatal.
func binary(left memory.Value, op lexer.TokenType, right memory.Value, scope string) (memory.Value, *errors.Diagnostic) {
	integral := left.Kind != memory.KindFloat && right.Kind != memory.KindFloat
	l, r := left.Num(), right.Num()
	truth := func(b bool) memory.Value {
		if b {
			return memory.Int(1)
		}
		return memory.Int(0)
	}
	switch op {
	case lexer.TokenPlus:
		if integral {
			return memory.Int(left.AsInt() + right.AsInt()), nil
		}
		return memory.Float(l + r), nil
	case lexer.TokenMinus:
		if integral {
			return memory.Int(left.AsInt() - right.AsInt()), nil
		}
		return memory.Float(l - r), nil
	case lexer.TokenStar:
		if integral {
			return memory.Int(left.AsInt() * right.AsInt()), nil
		}
		return memory.Float(l * r), nil
	case lexer.TokenSlash:
		if r == 0 {
			return memory.Int(0), errors.NewFatal(errors.DivideByZero, "division by zero").In(scope)
		}
		if integral {
			return memory.Int(left.AsInt() / right.AsInt()), nil
		}
		return memory.Float(l / r), nil
	case lexer.TokenPercent:
		if right.AsInt() == 0 {
			return memory.Int(0), errors.NewFatal(errors.DivideByZero, "modulo by zero").In(scope)
		}
		return memory.Int(left.AsInt() % right.AsInt()), nil
	case lexer.TokenPower:
		if integral {
			return memory.Int(int64(math.Pow(l, r))), nil
		}
		return memory.Float(math.Pow(l, r)), nil
	case lexer.TokenLT:
		return truth(l < r), nil
	case lexer.TokenLE:
		return truth(l <= r), nil
	case lexer.TokenGT:
		return truth(l > r), nil
	case lexer.TokenGE:
		return truth(l >= r), nil
	case lexer.TokenEQ:
		return truth(l == r), nil
	case lexer.TokenNE:
		return truth(l != r), nil
	case lexer.TokenAnd:
		return truth(left.IsTrue() && right.IsTrue()), nil
	case lexer.TokenOr:
		return truth(left.IsTrue() || right.IsTrue()), nil
	default:
		return memory.Int(0), errors.NewWarning(errors.UnknownToken, "unsupported operator %s", op).In(scope)
	}
}

func mulValues(a, b memory.Value) memory.Value {
	if a.Kind != memory.KindFloat && b.Kind != memory.KindFloat {
		return memory.Int(a.AsInt() * b.AsInt())
	}
	return memory.Float(a.Num() * b.Num())
}

// mulCall splits 'left * name(args)' where the right side calls a defined
// function. The split ignores '*' nested in brackets and the '**' operator.
func (i *Interpreter) mulCall(expr string) (string, string, []string, bool) {
	depth := 0
	for k := 0; k < len(expr); k++ {
		switch expr[k] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '*':
			if depth != 0 {
				continue
			}
			if k+1 < len(expr) && expr[k+1] == '*' {
				k++
				continue
			}
			if k > 0 && expr[k-1] == '*' {
				continue
			}
			left := strings.TrimSpace(expr[:k])
			if name, args, ok := parser.CallShape(strings.TrimSpace(expr[k+1:])); ok && i.program.Find(name) != nil {
				return left, name, args, true
			}
		}
	}
	return "", "", nil, false
}

// userCall reports whether expr is a call to a function defined in the
// program, as opposed to a builtin or a malformed shape.
func (i *Interpreter) userCall(expr string) (string, []string, bool) {
	name, args, ok := parser.CallShape(expr)
	if !ok || i.program.Find(name) == nil {
		return "", nil, false
	}
	return name, args, true
}

func stripOuterParens(s string) string {
	for strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		depth := 0
		wraps := true
		for k := 0; k < len(s); k++ {
			switch s[k] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 && k != len(s)-1 {
					wraps = false
				}
			}
		}
		if !wraps {
			return s
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func unescape(s string) string {
	var b strings.Builder
	for k := 0; k < len(s); k++ {
		if s[k] == '\\' && k+1 < len(s) {
			k++
			switch s[k] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(s[k])
			}
			continue
		}
		b.WriteByte(s[k])
	}
	return b.String()
}
