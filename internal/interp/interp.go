// internal/interp/interp.go
//
// The execution engine. A loaded program runs as a stack of execution
// frames, one per live function activation, each holding its own flattened
// tape and program counter. Step executes exactly one tape item; calls
// suspend the statement that made them and resume it when the callee's
// result is delivered.
package interp

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"cstep/internal/errors"
	"cstep/internal/memory"
	"cstep/internal/parser"
)

// State is the run lifecycle. Ready arms the first statement; Done is
// terminal until Reset.
type State string

const (
	StateReady   State = "ready"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateDone    State = "done"
)

// ContinueLimit bounds run-to-completion driven by the shell or the server,
// so a loop that never exits cannot hang the driver.
const ContinueLimit = 100000

// execFrame is one live activation: its tape, its position on it, and the
// call it is suspended on, if any. The entry function's frame carries no
// memory frame, so completed-frame history counts callee invocations only.
type execFrame struct {
	function string
	tape     []*tapeItem
	pc       int
	hasFrame bool
	pending  *pendingCall
}

// pendingCall parks a statement across a function call. When the callee
// returns, done is set and the statement re-runs to consume the result.
// multiplier carries the left side of a 'var * callee(args)' return.
type pendingCall struct {
	multiplier *memory.Value
	done       bool
	result     memory.Value
}

// value folds the multiplier into the delivered result.
func (p *pendingCall) value() memory.Value {
	if p.multiplier != nil {
		return mulValues(*p.multiplier, p.result)
	}
	return p.result
}

type Interpreter struct {
	program *parser.Program
	space   *memory.Space
	source  string
	entry   string
	stack   []*execFrame
	state   State
	output  []string
	steps   int
	current string
	logger  zerolog.Logger
}

func New(source string) *Interpreter {
	return &Interpreter{
		program: parser.Parse(source),
		space:   memory.NewSpace(),
		source:  source,
		state:   StateReady,
		logger:  zerolog.Nop(),
	}
}

func (i *Interpreter) SetLogger(l zerolog.Logger) { i.logger = l }

// Program exposes the parsed program for inspection.
func (i *Interpreter) Program() *parser.Program { return i.program }

// Source returns the text the program was loaded from.
func (i *Interpreter) Source() string { return i.source }

// Space exposes the simulated memory image.
func (i *Interpreter) Space() *memory.Space { return i.space }

// Load selects the entry function and arms the first statement. An empty
// name prefers main and falls back to the first function in the source.
func (i *Interpreter) Load(entry string) error {
	if len(i.program.Functions) == 0 {
		return fmt.Errorf("no functions found in source")
	}
	if entry == "" {
		entry = "main"
		if i.program.Find(entry) == nil {
			entry = i.program.Functions[0].Name
		}
	}
	if i.program.Find(entry) == nil {
		return fmt.Errorf("function %s not found", entry)
	}
	i.entry = entry
	i.rewind()
	return nil
}

func (i *Interpreter) rewind() {
	i.space.Reset()
	fn := i.program.Find(i.entry)
	i.stack = []*execFrame{{function: fn.Name, tape: flattenFunction(fn)}}
	i.state = StateReady
	i.output = nil
	i.steps = 0
	i.current = ""
}

// Reset rewinds the loaded program to its armed state. Resetting twice in a
// row is the same as resetting once.
func (i *Interpreter) Reset() {
	if i.entry == "" {
		return
	}
	i.rewind()
}

func (i *Interpreter) Status() State { return i.state }

func (i *Interpreter) Pause() {
	if i.state == StateRunning {
		i.state = StatePaused
	}
}

func (i *Interpreter) Resume() {
	if i.state == StatePaused {
		i.state = StateRunning
	}
}

// StepResult describes the single tape item a Step executed.
type StepResult struct {
	State     State  `json:"state"`
	Statement string `json:"statement"`
	Function  string `json:"function"`
	Step      int    `json:"step"`
}

// Step executes exactly one tape item. Stepping a finished program changes
// nothing and reports the terminal state; stepping a paused one is likewise
// a no-op until Resume.
func (i *Interpreter) Step() StepResult {
	if i.state == StateDone || len(i.stack) == 0 {
		return StepResult{State: StateDone, Step: i.steps}
	}
	if i.state == StatePaused {
		return StepResult{State: StatePaused, Step: i.steps}
	}
	if i.state == StateReady {
		i.state = StateRunning
	}
	top := i.stack[len(i.stack)-1]
	if top.pc >= len(top.tape) {
		i.finishReturn(nil)
		return StepResult{State: i.state, Function: top.function, Step: i.steps}
	}
	item := top.tape[top.pc]
	i.steps++
	i.current = item.text(top.function)
	i.logger.Trace().
		Str("function", top.function).
		Int("pc", top.pc).
		Str("stmt", i.current).
		Msg("step")
	i.dispatch(top, item)
	return StepResult{State: i.state, Statement: i.current, Function: top.function, Step: i.steps}
}

// Run steps until the program finishes, a Pause lands, or maxSteps is
// reached.
func (i *Interpreter) Run(maxSteps int) ExecutionState {
	for n := 0; n < maxSteps && i.state != StateDone && i.state != StatePaused; n++ {
		i.Step()
	}
	return i.Snapshot()
}

func (i *Interpreter) dispatch(fr *execFrame, item *tapeItem) {
	switch item.kind {
	case markerIfCond, markerWhileCond, markerForCond:
		v, diag := i.evaluate(item.cond, fr.function)
		if i.handle(diag) {
			return
		}
		if v.IsTrue() {
			fr.pc++
		} else {
			fr.pc = item.jump
		}
	case markerIfEnd:
		if item.jump >= 0 {
			fr.pc = item.jump
		} else {
			fr.pc++
		}
	case markerElseStart, markerElseEnd, markerForEnd:
		fr.pc++
	case markerWhileEnd:
		fr.pc = item.jump
	case markerForIncr:
		i.execIncr(fr, item.incr)
		if i.state != StateDone {
			fr.pc = item.jump
		}
	case markerFuncEnd:
		i.finishReturn(nil)
	default:
		i.execStmt(fr, item.stmt)
	}
}

func (i *Interpreter) execStmt(fr *execFrame, st parser.Stmt) {
	scope := fr.function
	switch s := st.(type) {
	case *parser.VariableDecl:
		i.execDecl(fr, s, scope)
	case *parser.ArrayDecl:
		i.execArrayDecl(fr, s, scope)
	case *parser.Assignment:
		i.execAssign(fr, s, scope)
	case *parser.CallStmt:
		i.execCall(fr, s, scope)
	case *parser.Return:
		i.execReturn(fr, s, scope)
	case *parser.Unknown:
		i.report(errors.NewWarning(errors.UnsupportedItem, "skipping '%s'", s.Raw).In(scope))
		fr.pc++
	default:
		fr.pc++
	}
}

func (i *Interpreter) execDecl(fr *execFrame, s *parser.VariableDecl, scope string) {
	t := memory.CType(s.VarType)
	if fr.pending != nil && fr.pending.done {
		v := fr.pending.value()
		fr.pending = nil
		i.declareScalar(s, t, &v, scope)
		fr.pc++
		return
	}
	if s.Init != "" && !s.Pointer {
		if left, name, args, ok := i.mulCall(s.Init); ok {
			i.suspendMul(fr, left, name, args, scope)
			return
		}
		if name, args, ok := i.userCall(s.Init); ok {
			i.suspend(fr, nil, name, args, scope)
			return
		}
	}
	if s.Pointer {
		i.declareScalar(s, t, nil, scope)
		if s.Init != "" {
			i.assignTo(s.Name, "", s.Init, scope)
		}
		fr.pc++
		return
	}
	var init *memory.Value
	if s.Init != "" {
		v, diag := i.evaluate(s.Init, scope)
		if i.handle(diag) {
			return
		}
		init = &v
	}
	i.declareScalar(s, t, init, scope)
	if i.state != StateDone {
		fr.pc++
	}
}

// declareScalar allocates and registers a variable. A name already bound in
// this scope means the declaration is being revisited inside a loop, so it
// degrades to an assignment.
func (i *Interpreter) declareScalar(s *parser.VariableDecl, t memory.CType, init *memory.Value, scope string) {
	addr, err := i.space.DeclareScalar(s.Name, t, s.Pointer, init, scope)
	if err != nil {
		if init != nil {
			if serr := i.space.SetVariable(s.Name, *init, scope); serr != nil {
				i.report(errors.NewWarning(errors.BadAssignment, "%s", serr.Error()).In(scope))
			}
		}
		return
	}
	i.space.AddLocal(s.Name, addr)
}

func (i *Interpreter) execArrayDecl(fr *execFrame, s *parser.ArrayDecl, scope string) {
	elem := memory.CType(s.ElemType)
	count := 0
	switch s.Size.Kind {
	case parser.SizeNumber:
		count = s.Size.Count
	case parser.SizeSymbol:
		v, ok := i.space.GetVariable(s.Size.Symbol, scope)
		if !ok {
			// the array then does not exist; later accesses fail as undeclared
			i.report(errors.NewWarning(errors.BadArraySize,
				"size %s of array %s is not declared", s.Size.Symbol, s.Name).In(scope))
			fr.pc++
			return
		}
		count = int(v.AsInt())
	case parser.SizeInferred:
		if s.IsStr {
			count = len(unescape(s.StrInit)) + 1
		} else {
			count = len(s.Init)
		}
	}
	if count <= 0 {
		i.report(errors.NewWarning(errors.BadArraySize, "array %s has invalid size %d", s.Name, count).In(scope))
		fr.pc++
		return
	}

	var addr uint32
	var err error
	if s.IsStr {
		addr, err = i.space.DeclareArrayString(s.Name, elem, count, unescape(s.StrInit), scope)
	} else {
		init := make([]memory.Value, 0, len(s.Init))
		for _, el := range s.Init {
			v, diag := i.evaluate(el, scope)
			if i.handle(diag) {
				return
			}
			init = append(init, v)
		}
		addr, err = i.space.DeclareArray(s.Name, elem, count, init, scope)
	}
	if err != nil {
		i.report(errors.NewWarning(errors.BadAssignment, "%s", err.Error()).In(scope))
		fr.pc++
		return
	}
	i.space.AddLocal(s.Name, addr)
	fr.pc++
}

func (i *Interpreter) execAssign(fr *execFrame, s *parser.Assignment, scope string) {
	if fr.pending != nil && fr.pending.done {
		v := fr.pending.value()
		fr.pending = nil
		i.assignValue(s.Target, s.Index, v, scope)
		fr.pc++
		return
	}
	if left, name, args, ok := i.mulCall(s.Value); ok {
		i.suspendMul(fr, left, name, args, scope)
		return
	}
	if name, args, ok := i.userCall(s.Value); ok {
		i.suspend(fr, nil, name, args, scope)
		return
	}
	i.assignTo(s.Target, s.Index, s.Value, scope)
	if i.state != StateDone {
		fr.pc++
	}
}

func (i *Interpreter) execCall(fr *execFrame, s *parser.CallStmt, scope string) {
	if fr.pending != nil && fr.pending.done {
		// bare call: the result is discarded but stays in the return cache
		fr.pending = nil
		fr.pc++
		return
	}
	switch s.Name {
	case "printf":
		text, diag := i.printfText(s.Args, scope)
		if i.handle(diag) {
			return
		}
		i.emit(text)
		fr.pc++
	case "scanf":
		i.report(errors.NewWarning(errors.UnsupportedItem, "scanf is not supported").In(scope))
		fr.pc++
	default:
		if i.program.Find(s.Name) == nil {
			// the call becomes a no-op and execution continues
			i.report(errors.NewWarning(errors.UndefinedFunction, "%s is not defined", s.Name).In(scope))
			fr.pc++
			return
		}
		i.suspend(fr, nil, s.Name, s.Args, scope)
	}
}

func (i *Interpreter) execReturn(fr *execFrame, s *parser.Return, scope string) {
	if fr.pending != nil && fr.pending.done {
		v := fr.pending.value()
		fr.pending = nil
		i.finishReturn(&v)
		return
	}
	if s.Recursive != nil {
		m, diag := i.evaluate(s.Recursive.Var, scope)
		if i.handle(diag) {
			return
		}
		i.suspend(fr, &m, s.Recursive.Callee, s.Recursive.Args, scope)
		return
	}
	if left, name, args, ok := i.mulCall(s.Expr); ok {
		i.suspendMul(fr, left, name, args, scope)
		return
	}
	if name, args, ok := i.userCall(s.Expr); ok {
		i.suspend(fr, nil, name, args, scope)
		return
	}
	v, diag := i.evaluate(s.Expr, scope)
	if i.handle(diag) {
		return
	}
	i.finishReturn(&v)
}

func (i *Interpreter) suspendMul(fr *execFrame, left, callee string, args []string, scope string) {
	m, diag := i.evaluate(left, scope)
	if i.handle(diag) {
		return
	}
	i.suspend(fr, &m, callee, args, scope)
}

// suspend evaluates the arguments in the caller's scope, pushes the callee's
// memory and execution frames, and parks the caller on its current statement.
// Arguments must be evaluated before the push so recursive calls read the
// caller's bindings, not the shadowing callee's.
func (i *Interpreter) suspend(fr *execFrame, multiplier *memory.Value, callee string, args []string, scope string) {
	fn := i.program.Find(callee)
	if fn == nil {
		i.report(errors.NewWarning(errors.UndefinedFunction, "%s is not defined", callee).In(scope))
		fr.pc++
		return
	}
	bindings := make([]memory.ParamBinding, 0, len(fn.Params))
	for k, p := range fn.Params {
		b := memory.ParamBinding{Name: p.Name, Type: memory.CType(p.Type), Pointer: p.Pointer}
		if k < len(args) {
			v, diag := i.evaluate(args[k], scope)
			if i.handle(diag) {
				return
			}
			b.Value = v
		} else {
			b.Value = memory.Int(0)
		}
		bindings = append(bindings, b)
	}
	i.space.PushFrame(fn.Name, bindings, scope)
	fr.pending = &pendingCall{multiplier: multiplier}
	i.stack = append(i.stack, &execFrame{function: fn.Name, tape: flattenFunction(fn), hasFrame: true})
}

// finishReturn pops the current activation and delivers the value to the
// caller's pending call. The entry function has no memory frame; its return
// finishes the run.
func (i *Interpreter) finishReturn(ret *memory.Value) {
	top := i.stack[len(i.stack)-1]
	i.stack = i.stack[:len(i.stack)-1]
	if top.hasFrame {
		i.space.PopFrame(ret)
	}
	if len(i.stack) == 0 {
		i.state = StateDone
		return
	}
	parent := i.stack[len(i.stack)-1]
	if parent.pending != nil {
		parent.pending.done = true
		if ret != nil {
			parent.pending.result = *ret
		}
	}
}

// assignTo evaluates a right-hand side and writes it to the target. An '&'
// prefix records a pointer target instead of a plain value.
func (i *Interpreter) assignTo(target, index, value, scope string) {
	value = strings.TrimSpace(value)
	if index == "" && strings.HasPrefix(value, "&") {
		if err := i.space.SetPointer(target, strings.TrimSpace(value[1:]), scope); err != nil {
			i.report(errors.NewWarning(errors.UndeclaredSymbol, "%s", err.Error()).In(scope))
		}
		return
	}
	v, diag := i.evaluate(value, scope)
	if i.handle(diag) {
		return
	}
	i.assignValue(target, index, v, scope)
}

func (i *Interpreter) assignValue(target, index string, v memory.Value, scope string) {
	if index == "" {
		if err := i.space.SetVariable(target, v, scope); err != nil {
			i.report(errors.NewWarning(errors.BadAssignment, "%s", err.Error()).In(scope))
		}
		return
	}
	sym, ok := i.space.Lookup(target, scope)
	if !ok {
		i.report(errors.NewWarning(errors.UndeclaredSymbol, "%s is not declared", target).In(scope))
		return
	}
	if sym.Array == nil {
		i.report(errors.NewWarning(errors.BadAssignment, "%s is not an array", target).In(scope))
		return
	}
	idxVal, diag := i.evaluate(index, scope)
	if i.handle(diag) {
		return
	}
	idx := int(idxVal.AsInt())
	if idx < 0 || idx >= sym.Array.Count {
		i.handle(errors.NewFatal(errors.OutOfBounds,
			"index %d out of bounds for %s[%d]", idx, target, sym.Array.Count).In(scope))
		return
	}
	i.space.WriteElement(sym, idx, v)
}

// execIncr runs a for-loop increment as a one-off statement. The ++/--
// shorthands are rewritten here; anything else re-parses as an assignment.
func (i *Interpreter) execIncr(fr *execFrame, incr string) {
	incr = strings.TrimSpace(incr)
	scope := fr.function
	switch {
	case incr == "":
	case strings.HasSuffix(incr, "++"):
		i.bump(strings.TrimSpace(strings.TrimSuffix(incr, "++")), 1, scope)
	case strings.HasPrefix(incr, "++"):
		i.bump(strings.TrimSpace(strings.TrimPrefix(incr, "++")), 1, scope)
	case strings.HasSuffix(incr, "--"):
		i.bump(strings.TrimSpace(strings.TrimSuffix(incr, "--")), -1, scope)
	case strings.HasPrefix(incr, "--"):
		i.bump(strings.TrimSpace(strings.TrimPrefix(incr, "--")), -1, scope)
	default:
		if s, ok := parser.Recognize(incr).(*parser.Assignment); ok {
			i.assignTo(s.Target, s.Index, s.Value, scope)
			return
		}
		i.report(errors.NewWarning(errors.UnsupportedItem, "cannot apply increment '%s'", incr).In(scope))
	}
}

func (i *Interpreter) bump(name string, delta int64, scope string) {
	v, ok := i.space.GetVariable(name, scope)
	if !ok {
		i.report(errors.NewWarning(errors.UndeclaredSymbol, "%s is not declared", name).In(scope))
		return
	}
	if err := i.space.SetVariable(name, memory.Int(v.AsInt()+delta), scope); err != nil {
		i.report(errors.NewWarning(errors.BadAssignment, "%s", err.Error()).In(scope))
	}
}

// handle reports a diagnostic; a fatal one ends the run. It returns true
// when the caller should stop processing the current item.
func (i *Interpreter) handle(diag *errors.Diagnostic) bool {
	if diag == nil {
		return false
	}
	i.report(diag)
	if diag.Fatal {
		i.state = StateDone
		return true
	}
	return false
}

func (i *Interpreter) report(diag *errors.Diagnostic) {
	i.output = append(i.output, diag.Error())
	i.logger.Debug().
		Str("category", string(diag.Category)).
		Bool("fatal", diag.Fatal).
		Msg(diag.Message)
}

func (i *Interpreter) emit(text string) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		i.output = append(i.output, line)
	}
}

// Output returns the accumulated program output and diagnostics.
func (i *Interpreter) Output() []string {
	return append([]string(nil), i.output...)
}

// ExecutionState is the full observable state of a run, shaped for the
// display and the websocket stream.
type ExecutionState struct {
	State     State               `json:"state"`
	Step      int                 `json:"step"`
	Statement string              `json:"statement"`
	Function  string              `json:"function"`
	Output    []string            `json:"output"`
	Memory    []memory.MemEntry   `json:"memory"`
	Stack     []memory.FrameEntry `json:"stack"`
	Completed []memory.FrameEntry `json:"completed"`
}

// Snapshot projects the current execution state. It is a pure read.
func (i *Interpreter) Snapshot() ExecutionState {
	st := ExecutionState{
		State:     i.state,
		Step:      i.steps,
		Statement: i.current,
		Output:    append([]string(nil), i.output...),
		Memory:    i.space.Snapshot(),
		Stack:     i.space.StackSnapshot(),
		Completed: i.space.CompletedFrames(),
	}
	if len(i.stack) > 0 {
		st.Function = i.stack[len(i.stack)-1].function
	}
	return st
}
