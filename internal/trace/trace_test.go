// internal/trace/trace_test.go
package trace

import (
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndReplay(t *testing.T) {
	r := openTest(t)
	id, err := r.Begin("fact.c", "main")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	steps := []struct {
		fn, stmt, state string
	}{
		{"main", "int result = factorial(5)", "running"},
		{"factorial", "if (n == 0)", "running"},
		{"main", "return 0", "done"},
	}
	for k, s := range steps {
		if err := r.Record(k+1, s.fn, s.stmt, s.state); err != nil {
			t.Fatalf("record %d: %v", k+1, err)
		}
	}

	got, err := r.Steps(id)
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("steps = %d, want 3", len(got))
	}
	if got[0].Statement != "int result = factorial(5)" || got[0].Function != "main" {
		t.Errorf("first step = %+v", got[0])
	}
	if got[2].State != "done" {
		t.Errorf("last state = %s, want done", got[2].State)
	}
}

func TestRecordWithoutSessionFails(t *testing.T) {
	r := openTest(t)
	if err := r.Record(1, "main", "int x = 1", "running"); err == nil {
		t.Errorf("record without session succeeded")
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	r := openTest(t)
	first, _ := r.Begin("a.c", "main")
	second, _ := r.Begin("b.c", "compute")

	sessions, err := r.Sessions()
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[0].ID != second || sessions[1].ID != first {
		t.Errorf("order = %d, %d, want newest first", sessions[0].ID, sessions[1].ID)
	}
	if sessions[0].Source != "b.c" || sessions[0].Entry != "compute" {
		t.Errorf("session = %+v", sessions[0])
	}
}
