// internal/interp/printf.go
package interp

import (
	"fmt"
	"strings"

	"cstep/internal/errors"
	"cstep/internal/memory"
)

// printfText renders a printf call. The first argument is the format string;
// %d %i %f %g %c %s %x %p consume one evaluated argument each, missing
// arguments print as zero.
func (i *Interpreter) printfText(args []string, scope string) (string, *errors.Diagnostic) {
	if len(args) == 0 {
		return "", nil
	}
	format := strings.TrimSpace(args[0])
	if strings.HasPrefix(format, `"`) && strings.HasSuffix(format, `"`) && len(format) >= 2 {
		format = format[1 : len(format)-1]
	}
	format = unescape(format)

	var b strings.Builder
	next := 1
	for k := 0; k < len(format); k++ {
		c := format[k]
		if c != '%' || k+1 >= len(format) {
			b.WriteByte(c)
			continue
		}
		k++
		verb := format[k]
		if verb == '%' {
			b.WriteByte('%')
			continue
		}
		// placeholders past the last argument stay verbatim
		if next >= len(args) {
			b.WriteByte('%')
			b.WriteByte(verb)
			continue
		}
		arg := args[next]
		val, diag := i.evaluate(arg, scope)
		if diag != nil {
			if diag.Fatal {
				return "", diag
			}
			i.report(diag)
		}
		next++
		switch verb {
		case 'd', 'i':
			fmt.Fprintf(&b, "%d", val.AsInt())
		case 'f':
			fmt.Fprintf(&b, "%f", val.Num())
		case 'g':
			fmt.Fprintf(&b, "%g", val.Num())
		case 'c':
			b.WriteByte(byte(val.AsInt()))
		case 'x':
			fmt.Fprintf(&b, "%x", val.AsInt())
		case 'p':
			b.WriteString(memory.FormatAddress(uint32(val.AsInt())))
		case 's':
			b.WriteString(i.stringAt(arg, scope))
		default:
			b.WriteByte(verb)
		}
	}
	return b.String(), nil
}

// stringAt reads a char array as text, stopping at the null terminator.
func (i *Interpreter) stringAt(arg, scope string) string {
	sym, ok := i.space.Lookup(strings.TrimSpace(arg), scope)
	if !ok || sym.Array == nil {
		return ""
	}
	var b strings.Builder
	for k := 0; k < sym.Array.Count; k++ {
		c := i.space.ReadElement(sym, k).AsInt()
		if c == 0 {
			break
		}
		b.WriteByte(byte(c))
	}
	return b.String()
}
