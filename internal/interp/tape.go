// internal/interp/tape.go
package interp

import "cstep/internal/parser"

// markerKind distinguishes plain statements from the synthetic control
// markers that encode block boundaries on the flattened tape.
type markerKind int

const (
	markerNone markerKind = iota
	markerIfCond
	markerIfEnd
	markerElseStart
	markerElseEnd
	markerWhileCond
	markerWhileEnd
	markerForCond
	markerForIncr
	markerForEnd
	markerFuncEnd
)

// tapeItem is one steppable unit. jump carries the resolved target index for
// markers that move the program counter; its meaning depends on kind.
type tapeItem struct {
	kind markerKind
	stmt parser.Stmt
	cond string
	incr string
	jump int
}

// flattenFunction desugars a function body into a linear tape. Loop bodies
// appear exactly once; iteration moves the program counter backward to the
// condition marker. The segment always ends with a markerFuncEnd.
func flattenFunction(fn *parser.Function) []*tapeItem {
	tape := flattenBody(fn.Body)
	return append(tape, &tapeItem{kind: markerFuncEnd, jump: -1})
}

func flattenBody(stmts []parser.Stmt) []*tapeItem {
	var tape []*tapeItem
	emit := func(item *tapeItem) int {
		tape = append(tape, item)
		return len(tape) - 1
	}

	var walk func(stmts []parser.Stmt)
	walk = func(stmts []parser.Stmt) {
		for _, st := range stmts {
			switch s := st.(type) {
			case *parser.If:
				ci := emit(&tapeItem{kind: markerIfCond, stmt: st, cond: s.Cond, jump: -1})
				walk(s.Then)
				ei := emit(&tapeItem{kind: markerIfEnd, stmt: st, jump: -1})
				if len(s.Else) > 0 {
					es := emit(&tapeItem{kind: markerElseStart, stmt: st, jump: -1})
					walk(s.Else)
					ee := emit(&tapeItem{kind: markerElseEnd, stmt: st, jump: -1})
					tape[ci].jump = es     // false falls into the else block
					tape[ei].jump = ee + 1 // then-path skips the else block
				} else {
					tape[ci].jump = ei
				}
			case *parser.While:
				ci := emit(&tapeItem{kind: markerWhileCond, stmt: st, cond: s.Cond, jump: -1})
				walk(s.Body)
				we := emit(&tapeItem{kind: markerWhileEnd, stmt: st})
				tape[ci].jump = we + 1 // false exits past the end marker
				tape[we].jump = ci     // loop back to the condition check
			case *parser.For:
				if s.Init != nil {
					walk([]parser.Stmt{s.Init})
				}
				ci := emit(&tapeItem{kind: markerForCond, stmt: st, cond: s.Cond, jump: -1})
				walk(s.Body)
				fi := emit(&tapeItem{kind: markerForIncr, stmt: st, incr: s.Incr})
				fe := emit(&tapeItem{kind: markerForEnd, stmt: st, jump: -1})
				tape[ci].jump = fe + 1 // false exits past the end marker, as with while
				tape[fi].jump = ci     // increment loops back to the check
			default:
				emit(&tapeItem{stmt: st, jump: -1})
			}
		}
	}
	walk(stmts)
	return tape
}

// text renders a tape item for the current-statement display.
func (item *tapeItem) text(function string) string {
	switch item.kind {
	case markerIfEnd:
		return "end if"
	case markerElseStart:
		return "else"
	case markerElseEnd:
		return "end else"
	case markerWhileEnd:
		return "end while"
	case markerForIncr:
		return item.incr
	case markerForEnd:
		return "end for"
	case markerFuncEnd:
		return "end " + function
	default:
		if item.stmt != nil {
			return item.stmt.Text()
		}
		return ""
	}
}
