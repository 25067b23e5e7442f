// internal/memory/value.go
package memory

import (
	"fmt"
	"math"
)

// Kind discriminates the closed set of things a memory cell can hold.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindAddr
)

// Value is one memory cell: an integer, a float, or an address. Keeping the
// variant closed makes pointer-vs-scalar confusion a checked condition
// instead of a runtime ambiguity.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	A    uint32
}

func Int(n int64) Value     { return Value{Kind: KindInt, I: n} }
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }
func Addr(a uint32) Value   { return Value{Kind: KindAddr, A: a} }

// Num returns the numeric view of the value; addresses numerify for display.
func (v Value) Num() float64 {
	switch v.Kind {
	case KindFloat:
		return v.F
	case KindAddr:
		return float64(v.A)
	default:
		return float64(v.I)
	}
}

// AsInt truncates toward zero, C-style.
func (v Value) AsInt() int64 {
	switch v.Kind {
	case KindFloat:
		return int64(math.Trunc(v.F))
	case KindAddr:
		return int64(v.A)
	default:
		return v.I
	}
}

func (v Value) IsTrue() bool {
	return v.Num() != 0
}

func (v Value) String() string {
	switch v.Kind {
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	case KindAddr:
		return FormatAddress(v.A)
	default:
		return fmt.Sprintf("%d", v.I)
	}
}

// Coerce adapts the value to the element type it is being stored under.
func (v Value) Coerce(t CType) Value {
	if v.Kind == KindAddr {
		return v
	}
	if t.IsFloat() {
		return Float(v.Num())
	}
	return Int(v.AsInt())
}

// CType is a declared element type of the interpreted language.
type CType string

const (
	Char   CType = "char"
	Short  CType = "short"
	IntT   CType = "int"
	FloatT CType = "float"
	Double CType = "double"
	LongT  CType = "long"
	Void   CType = "void"
)

// PointerSize is the fixed width of pointer cells and parameter slots.
const PointerSize = 4

// Size returns the element width in bytes.
func (t CType) Size() int {
	switch t {
	case Char:
		return 1
	case Short:
		return 2
	case Double, LongT:
		return 8
	default:
		return 4
	}
}

func (t CType) IsFloat() bool {
	return t == FloatT || t == Double
}

// Default is the zero value stored for uninitialized cells of this type.
func (t CType) Default() Value {
	if t.IsFloat() {
		return Float(0)
	}
	return Int(0)
}

// FormatAddress renders an address the way the display shows it.
func FormatAddress(a uint32) string {
	return fmt.Sprintf("0x%04X", a)
}
