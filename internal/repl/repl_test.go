// internal/repl/repl_test.go
package repl

import (
	"bytes"
	"strings"
	"testing"

	"cstep/internal/interp"
)

const countdown = `
int main() {
    int n = 3;
    while (n > 0) {
        n = n - 1;
    }
    return 0;
}
`

func newShell(t *testing.T) (*Repl, *interp.Interpreter, *bytes.Buffer) {
	t.Helper()
	in := interp.New(countdown)
	if err := in.Load("main"); err != nil {
		t.Fatalf("load: %v", err)
	}
	var out bytes.Buffer
	return New(in, &out), in, &out
}

func TestPauseHaltsStepping(t *testing.T) {
	r, in, out := newShell(t)

	r.execute("s")
	if in.Status() != interp.StateRunning {
		t.Fatalf("status after step = %s", in.Status())
	}

	r.execute("p")
	if in.Status() != interp.StatePaused {
		t.Fatalf("status after pause = %s", in.Status())
	}
	if !strings.Contains(out.String(), "[paused]") {
		t.Errorf("pause not reported: %q", out.String())
	}

	out.Reset()
	before := in.Snapshot().Step
	r.execute("s")
	if in.Snapshot().Step != before {
		t.Errorf("step advanced while paused")
	}
	if !strings.Contains(out.String(), "[paused]") {
		t.Errorf("paused step not reported: %q", out.String())
	}

	out.Reset()
	r.execute("c")
	if in.Status() != interp.StateDone {
		t.Errorf("status after continue = %s", in.Status())
	}
	if !strings.Contains(out.String(), "[done]") {
		t.Errorf("continue did not report completion: %q", out.String())
	}
}

func TestSrcShowsLoadedSource(t *testing.T) {
	r, _, out := newShell(t)
	r.execute("src")
	text := out.String()
	if !strings.Contains(text, "int main()") || !strings.Contains(text, "n = n - 1;") {
		t.Errorf("src output missing program text: %q", text)
	}
}

func TestUnknownCommandIsReported(t *testing.T) {
	r, _, out := newShell(t)
	r.execute("bogus")
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("unknown command not reported: %q", out.String())
	}
}
