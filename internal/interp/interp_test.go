// internal/interp/interp_test.go
package interp

import (
	"strings"
	"testing"

	"cstep/internal/memory"
)

func run(t *testing.T, src string) (*Interpreter, ExecutionState) {
	t.Helper()
	in := New(src)
	if err := in.Load(""); err != nil {
		t.Fatalf("load: %v", err)
	}
	state := in.Run(10000)
	return in, state
}

func mustVar(t *testing.T, in *Interpreter, name, scope string) memory.Value {
	t.Helper()
	v, ok := in.Space().GetVariable(name, scope)
	if !ok {
		t.Fatalf("variable %s not found in %s", name, scope)
	}
	return v
}

func hasOutput(state ExecutionState, substr string) bool {
	for _, line := range state.Output {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestRecursiveFactorial(t *testing.T) {
	src := `
int factorial(int n) {
    if (n == 0) {
        return 1;
    }
    return n * factorial(n - 1);
}

int main() {
    int result = factorial(5);
    printf("%d\n", result);
    return 0;
}
`
	in, state := run(t, src)
	if state.State != StateDone {
		t.Fatalf("state = %s, want done", state.State)
	}
	if got := mustVar(t, in, "result", "main"); got.AsInt() != 120 {
		t.Errorf("result = %d, want 120", got.AsInt())
	}
	if !hasOutput(state, "120") {
		t.Errorf("output %v missing 120", state.Output)
	}
	if len(state.Completed) != 6 {
		t.Fatalf("completed frames = %d, want 6", len(state.Completed))
	}
	// frames complete innermost first
	for k, fr := range state.Completed {
		if fr.Function != "factorial" {
			t.Errorf("frame %d function = %s, want factorial", k, fr.Function)
		}
	}
	first := state.Completed[0]
	if first.ReturnValue == nil || *first.ReturnValue != 1 {
		t.Errorf("innermost return = %v, want 1", first.ReturnValue)
	}
	last := state.Completed[5]
	if last.ReturnValue == nil || *last.ReturnValue != 120 {
		t.Errorf("outermost return = %v, want 120", last.ReturnValue)
	}
	if v, ok := in.Space().LastReturn("factorial"); !ok || v.AsInt() != 120 {
		t.Errorf("last return = %v, want 120", v)
	}
}

func TestArrayInitializerSnapshot(t *testing.T) {
	src := `
int main() {
    int a[3] = {1, 2, 3};
    return 0;
}
`
	_, state := run(t, src)
	if len(state.Memory) != 3 {
		t.Fatalf("memory entries = %d, want 3", len(state.Memory))
	}
	wantAddrs := []string{"0x1000", "0x1004", "0x1008"}
	wantNames := []string{"a[0]", "a[1]", "a[2]"}
	for k, entry := range state.Memory {
		if entry.Address != wantAddrs[k] {
			t.Errorf("entry %d address = %s, want %s", k, entry.Address, wantAddrs[k])
		}
		if entry.Name != wantNames[k] {
			t.Errorf("entry %d name = %s, want %s", k, entry.Name, wantNames[k])
		}
		if entry.Value != float64(k+1) {
			t.Errorf("entry %d value = %v, want %d", k, entry.Value, k+1)
		}
		if entry.Scope != "main" {
			t.Errorf("entry %d scope = %s, want main", k, entry.Scope)
		}
	}
}

func TestCharArrayStringInit(t *testing.T) {
	src := `
int main() {
    char s[] = "hi";
    printf("%s\n", s);
    return 0;
}
`
	in, state := run(t, src)
	sym, ok := in.Space().Lookup("s", "main")
	if !ok || sym.Array == nil {
		t.Fatalf("array s not declared")
	}
	if sym.Array.Count != 3 {
		t.Fatalf("count = %d, want 3", sym.Array.Count)
	}
	want := []int64{104, 105, 0}
	for k, w := range want {
		if got := in.Space().ReadElement(sym, k).AsInt(); got != w {
			t.Errorf("s[%d] = %d, want %d", k, got, w)
		}
	}
	if !hasOutput(state, "hi") {
		t.Errorf("output %v missing hi", state.Output)
	}
}

func TestOutOfBoundsWriteIsFatal(t *testing.T) {
	src := `
int main() {
    int a[3] = {1, 2, 3};
    a[5] = 9;
    printf("unreached\n");
    return 0;
}
`
	_, state := run(t, src)
	if state.State != StateDone {
		t.Fatalf("state = %s, want done", state.State)
	}
	if !hasOutput(state, "OutOfBounds") {
		t.Errorf("output %v missing OutOfBounds", state.Output)
	}
	if hasOutput(state, "unreached") {
		t.Errorf("execution continued past fatal error")
	}
}

func TestOutOfBoundsReadIsFatal(t *testing.T) {
	src := `
int main() {
    int a[2] = {1, 2};
    int x = a[7];
    return 0;
}
`
	_, state := run(t, src)
	if !hasOutput(state, "OutOfBounds") {
		t.Errorf("output %v missing OutOfBounds", state.Output)
	}
}

func TestIntegerDivisionTruncates(t *testing.T) {
	src := `
int main() {
    int x = 7 / 2;
    return 0;
}
`
	in, _ := run(t, src)
	if got := mustVar(t, in, "x", "main"); got.AsInt() != 3 {
		t.Errorf("x = %d, want 3", got.AsInt())
	}
}

func TestDivideByZeroIsFatal(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"division", "7 / 0"},
		{"modulo", "7 % 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "int main() {\n    int x = " + tt.expr + ";\n    return 0;\n}\n"
			_, state := run(t, src)
			if state.State != StateDone {
				t.Fatalf("state = %s, want done", state.State)
			}
			if !hasOutput(state, "DivideByZero") {
				t.Errorf("output %v missing DivideByZero", state.Output)
			}
		})
	}
}

func TestFloatDivision(t *testing.T) {
	src := `
int main() {
    float x = 7.0 / 2;
    return 0;
}
`
	in, _ := run(t, src)
	if got := mustVar(t, in, "x", "main"); got.Num() != 3.5 {
		t.Errorf("x = %v, want 3.5", got.Num())
	}
}

func TestWhileLoop(t *testing.T) {
	src := `
int main() {
    int i = 0;
    int sum = 0;
    while (i < 5) {
        sum = sum + i;
        i = i + 1;
    }
    return sum;
}
`
	in, state := run(t, src)
	if state.State != StateDone {
		t.Fatalf("state = %s, want done", state.State)
	}
	if got := mustVar(t, in, "sum", "main"); got.AsInt() != 10 {
		t.Errorf("sum = %d, want 10", got.AsInt())
	}
}

func TestForLoop(t *testing.T) {
	src := `
int main() {
    int total = 0;
    for (int i = 0; i < 4; i = i + 1) {
        total = total + i;
    }
    return 0;
}
`
	in, _ := run(t, src)
	if got := mustVar(t, in, "total", "main"); got.AsInt() != 6 {
		t.Errorf("total = %d, want 6", got.AsInt())
	}
}

func TestForLoopIncrementShorthand(t *testing.T) {
	src := `
int main() {
    int total = 0;
    for (int i = 0; i < 3; i++) {
        total = total + 1;
    }
    return 0;
}
`
	in, _ := run(t, src)
	if got := mustVar(t, in, "total", "main"); got.AsInt() != 3 {
		t.Errorf("total = %d, want 3", got.AsInt())
	}
}

func TestIfElse(t *testing.T) {
	tests := []struct {
		name string
		x    string
		want int64
	}{
		{"then branch", "9", 1},
		{"else branch", "3", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `
int main() {
    int x = ` + tt.x + `;
    int y = 0;
    if (x > 5) {
        y = 1;
    } else {
        y = 2;
    }
    return 0;
}
`
			in, _ := run(t, src)
			if got := mustVar(t, in, "y", "main"); got.AsInt() != tt.want {
				t.Errorf("y = %d, want %d", got.AsInt(), tt.want)
			}
		})
	}
}

func TestPointerDeclareAndDeref(t *testing.T) {
	src := `
int main() {
    int v = 41;
    int *p = &v;
    v = 42;
    int w = *p;
    return 0;
}
`
	in, state := run(t, src)
	if got := mustVar(t, in, "w", "main"); got.AsInt() != 42 {
		t.Errorf("w = %d, want 42", got.AsInt())
	}
	vsym, _ := in.Space().Lookup("v", "main")
	found := false
	for _, entry := range state.Memory {
		if entry.Name == "p" {
			found = true
			if !entry.IsPointer {
				t.Errorf("p not marked as pointer")
			}
			if entry.PointerTarget != memory.FormatAddress(vsym.Address) {
				t.Errorf("p target = %s, want %s", entry.PointerTarget, memory.FormatAddress(vsym.Address))
			}
		}
	}
	if !found {
		t.Fatalf("p missing from snapshot")
	}
}

func TestPointerParameterWritesCaller(t *testing.T) {
	src := `
void set(int *p) {
    *p = 7;
}

int main() {
    int v = 0;
    set(&v);
    return 0;
}
`
	// deref assignment is outside the recognized statement set; the callee
	// still runs and the frame completes.
	_, state := run(t, src)
	if state.State != StateDone {
		t.Fatalf("state = %s, want done", state.State)
	}
	if len(state.Completed) != 1 {
		t.Errorf("completed frames = %d, want 1", len(state.Completed))
	}
}

func TestStepAfterDoneIsNoop(t *testing.T) {
	in, state := run(t, "int main() {\n    return 0;\n}\n")
	if state.State != StateDone {
		t.Fatalf("state = %s, want done", state.State)
	}
	before := in.Snapshot()
	res := in.Step()
	if res.State != StateDone {
		t.Errorf("step after done state = %s, want done", res.State)
	}
	after := in.Snapshot()
	if after.Step != before.Step {
		t.Errorf("step count changed from %d to %d", before.Step, after.Step)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	src := `
int main() {
    int x = 1;
    int y = 2;
    return 0;
}
`
	in, _ := run(t, src)
	in.Reset()
	once := in.Snapshot()
	in.Reset()
	twice := in.Snapshot()
	if once.State != StateReady || twice.State != StateReady {
		t.Fatalf("reset states = %s, %s, want ready", once.State, twice.State)
	}
	if once.Step != 0 || twice.Step != 0 {
		t.Errorf("step counts = %d, %d, want 0", once.Step, twice.Step)
	}
	if len(once.Memory) != 0 || len(twice.Memory) != 0 {
		t.Errorf("memory not cleared after reset")
	}

	// the rerun behaves exactly like the first run
	state := in.Run(10000)
	if state.State != StateDone {
		t.Fatalf("rerun state = %s, want done", state.State)
	}
	if got := mustVar(t, in, "x", "main"); got.AsInt() != 1 {
		t.Errorf("x = %d after rerun, want 1", got.AsInt())
	}
}

func TestPauseAndResume(t *testing.T) {
	in := New("int main() {\n    int x = 1;\n    int y = 2;\n    return 0;\n}\n")
	if err := in.Load(""); err != nil {
		t.Fatalf("load: %v", err)
	}
	if in.Status() != StateReady {
		t.Fatalf("status = %s, want ready", in.Status())
	}
	in.Step()
	if in.Status() != StateRunning {
		t.Fatalf("status = %s, want running", in.Status())
	}
	in.Pause()
	if in.Status() != StatePaused {
		t.Fatalf("status = %s, want paused", in.Status())
	}
	// stepping while paused is a no-op
	before := in.Snapshot().Step
	res := in.Step()
	if res.State != StatePaused || in.Snapshot().Step != before {
		t.Errorf("paused step executed: %+v", res)
	}
	in.Resume()
	if in.Status() != StateRunning {
		t.Fatalf("status = %s, want running", in.Status())
	}
	if res := in.Step(); res.Step != before+1 {
		t.Errorf("resumed step = %d, want %d", res.Step, before+1)
	}
}

func TestEntryFallsBackToFirstFunction(t *testing.T) {
	src := `
int compute() {
    int x = 5;
    return x;
}
`
	in := New(src)
	if err := in.Load(""); err != nil {
		t.Fatalf("load: %v", err)
	}
	state := in.Run(100)
	if state.State != StateDone {
		t.Fatalf("state = %s, want done", state.State)
	}
	if got := mustVar(t, in, "x", "compute"); got.AsInt() != 5 {
		t.Errorf("x = %d, want 5", got.AsInt())
	}
}

func TestLoadErrors(t *testing.T) {
	if err := New("").Load(""); err == nil {
		t.Errorf("empty source loaded without error")
	}
	if err := New("int main() { return 0; }").Load("missing"); err == nil {
		t.Errorf("unknown entry loaded without error")
	}
}

func TestUndefinedFunctionIsReportedAndSkipped(t *testing.T) {
	src := `
int main() {
    frobnicate(1);
    int x = 5;
    return 0;
}
`
	in, state := run(t, src)
	if state.State != StateDone {
		t.Fatalf("state = %s, want done", state.State)
	}
	if !hasOutput(state, "UndefinedFunction") {
		t.Errorf("output %v missing UndefinedFunction", state.Output)
	}
	// the call is a no-op; execution continues
	if got := mustVar(t, in, "x", "main"); got.AsInt() != 5 {
		t.Errorf("x = %d, want 5", got.AsInt())
	}
}

func TestSymbolicArraySize(t *testing.T) {
	src := `
int main() {
    int n = 4;
    int a[n];
    a[3] = 9;
    return 0;
}
`
	in, state := run(t, src)
	if state.State != StateDone {
		t.Fatalf("state = %s, want done", state.State)
	}
	sym, ok := in.Space().Lookup("a", "main")
	if !ok || sym.Array == nil {
		t.Fatalf("array a not declared")
	}
	if sym.Array.Count != 4 {
		t.Errorf("count = %d, want 4", sym.Array.Count)
	}
	if got := in.Space().ReadElement(sym, 3).AsInt(); got != 9 {
		t.Errorf("a[3] = %d, want 9", got)
	}
}

func TestUnresolvedArraySizeSkipsDeclaration(t *testing.T) {
	src := `
int main() {
    int a[n];
    int x = 5;
    return 0;
}
`
	in, state := run(t, src)
	if state.State != StateDone {
		t.Fatalf("state = %s, want done", state.State)
	}
	if !hasOutput(state, "BadArraySize") {
		t.Errorf("output %v missing BadArraySize", state.Output)
	}
	// the array does not exist afterward; execution continues
	if _, ok := in.Space().Lookup("a", "main"); ok {
		t.Errorf("array a exists despite unresolved size")
	}
	if got := mustVar(t, in, "x", "main"); got.AsInt() != 5 {
		t.Errorf("x = %d, want 5", got.AsInt())
	}
}

func TestCallStatementStepGranularity(t *testing.T) {
	src := `
int twice(int n) {
    return n + n;
}

int main() {
    int r = twice(21);
    return 0;
}
`
	in := New(src)
	if err := in.Load(""); err != nil {
		t.Fatalf("load: %v", err)
	}
	// decl suspends, callee return, decl completes, return, end
	var funcs []string
	for in.Status() != StateDone {
		res := in.Step()
		if res.Statement != "" {
			funcs = append(funcs, res.Function+": "+res.Statement)
		}
		if len(funcs) > 50 {
			t.Fatalf("run did not converge: %v", funcs)
		}
	}
	if got := mustVar(t, in, "r", "main"); got.AsInt() != 42 {
		t.Errorf("r = %d, want 42", got.AsInt())
	}
	sawCallee := false
	for _, f := range funcs {
		if strings.HasPrefix(f, "twice:") {
			sawCallee = true
		}
	}
	if !sawCallee {
		t.Errorf("callee statements never surfaced in steps: %v", funcs)
	}
}

func TestPrintfFormats(t *testing.T) {
	src := `
int main() {
    int d = 42;
    float f = 1.5;
    char c = 'A';
    printf("d=%d f=%f c=%c pct=%%\n", d, f, c);
    return 0;
}
`
	_, state := run(t, src)
	if !hasOutput(state, "d=42 f=1.500000 c=A pct=%") {
		t.Errorf("output %v missing formatted line", state.Output)
	}
}

func TestPrintfWithBracketsInFormat(t *testing.T) {
	src := `
int main() {
    int x = 1;
    printf("x) = %d\n", x);
    int y = 2;
    return 0;
}
`
	in, state := run(t, src)
	if state.State != StateDone {
		t.Fatalf("state = %s, want done", state.State)
	}
	if !hasOutput(state, "x) = 1") {
		t.Errorf("output %v missing formatted line", state.Output)
	}
	if hasOutput(state, "UnsupportedItem") {
		t.Errorf("valid statements reported as unsupported: %v", state.Output)
	}
	if got := mustVar(t, in, "y", "main"); got.AsInt() != 2 {
		t.Errorf("y = %d, want 2", got.AsInt())
	}
}

func TestPrintfExcessPlaceholdersStayVerbatim(t *testing.T) {
	src := `
int main() {
    int x = 1;
    printf("x=%d y=%d\n", x);
    return 0;
}
`
	_, state := run(t, src)
	if !hasOutput(state, "x=1 y=%d") {
		t.Errorf("output %v missing verbatim placeholder", state.Output)
	}
}

func TestLoopExitSkipsEndMarkers(t *testing.T) {
	src := `
int main() {
    int sum = 0;
    for (int i = 0; i < 2; i = i + 1) {
        sum = sum + 1;
    }
    int j = 0;
    while (j < 2) {
        j = j + 1;
    }
    return 0;
}
`
	in := New(src)
	if err := in.Load(""); err != nil {
		t.Fatalf("load: %v", err)
	}
	var stmts []string
	for in.Status() != StateDone && len(stmts) < 100 {
		res := in.Step()
		stmts = append(stmts, res.Statement)
	}
	// neither loop kind shows its end marker as the exit step
	for k, s := range stmts {
		if s == "end for" {
			t.Errorf("step %d dispatched 'end for'", k)
		}
		if s == "end while" && k+1 < len(stmts) && stmts[k+1] == "return 0" {
			t.Errorf("while exit passed through its end marker at step %d", k)
		}
	}
	if got := mustVar(t, in, "sum", "main"); got.AsInt() != 2 {
		t.Errorf("sum = %d, want 2", got.AsInt())
	}
	if got := mustVar(t, in, "j", "main"); got.AsInt() != 2 {
		t.Errorf("j = %d, want 2", got.AsInt())
	}
}

func TestNestedLoops(t *testing.T) {
	src := `
int main() {
    int total = 0;
    for (int i = 0; i < 3; i = i + 1) {
        for (int j = 0; j < 3; j = j + 1) {
            total = total + 1;
        }
    }
    return 0;
}
`
	in, _ := run(t, src)
	if got := mustVar(t, in, "total", "main"); got.AsInt() != 9 {
		t.Errorf("total = %d, want 9", got.AsInt())
	}
}

func TestElseIfChain(t *testing.T) {
	src := `
int main() {
    int x = 5;
    int grade = 0;
    if (x > 8) {
        grade = 3;
    } else if (x > 4) {
        grade = 2;
    } else {
        grade = 1;
    }
    return 0;
}
`
	in, _ := run(t, src)
	if got := mustVar(t, in, "grade", "main"); got.AsInt() != 2 {
		t.Errorf("grade = %d, want 2", got.AsInt())
	}
}
