// internal/repl/repl.go
//
// Interactive stepping shell. One command per line: step through the loaded
// program, inspect memory and the call stack, reset, quit.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"cstep/internal/interp"
)

const historyFile = ".cstep_history"

type Repl struct {
	in  *interp.Interpreter
	out io.Writer
}

func New(in *interp.Interpreter, out io.Writer) *Repl {
	return &Repl{in: in, out: out}
}

// Run drives the shell until quit or EOF.
func (r *Repl) Run() error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := filepath.Join(os.TempDir(), historyFile)
	if f, err := os.Open(histPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(r.out, "type 'help' for commands")
	for {
		input, err := line.Prompt("cstep> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			// bare enter repeats a single step
			input = "s"
		} else {
			line.AppendHistory(input)
		}
		if quit := r.execute(input); quit {
			return nil
		}
	}
}

func (r *Repl) execute(input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "q", "quit", "exit":
		return true
	case "h", "help":
		r.help()
	case "s", "step":
		n := 1
		if len(fields) > 1 {
			if parsed, err := strconv.Atoi(fields[1]); err == nil && parsed > 0 {
				n = parsed
			}
		}
		r.stepN(n)
	case "c", "continue":
		r.in.Resume()
		state := r.in.Run(interp.ContinueLimit)
		fmt.Fprintf(r.out, "[%s] after %d steps\n", state.State, state.Step)
	case "p", "pause":
		r.in.Pause()
		fmt.Fprintf(r.out, "[%s]\n", r.in.Status())
	case "src":
		fmt.Fprintln(r.out, strings.TrimSpace(r.in.Source()))
	case "mem":
		r.showMemory()
	case "stack":
		r.showStack()
	case "out":
		for _, l := range r.in.Output() {
			fmt.Fprintln(r.out, l)
		}
	case "reset":
		r.in.Reset()
		fmt.Fprintln(r.out, "[ready]")
	default:
		fmt.Fprintf(r.out, "unknown command %q, type 'help'\n", fields[0])
	}
	return false
}

func (r *Repl) stepN(n int) {
	for k := 0; k < n; k++ {
		res := r.in.Step()
		if res.State == interp.StatePaused {
			fmt.Fprintln(r.out, "[paused] resume with 'c'")
			return
		}
		if res.State == interp.StateDone && res.Statement == "" {
			fmt.Fprintln(r.out, "[done]")
			return
		}
		fmt.Fprintf(r.out, "%4d  %-12s %s\n", res.Step, res.Function, res.Statement)
		if res.State == interp.StateDone {
			fmt.Fprintln(r.out, "[done]")
			return
		}
	}
}

func (r *Repl) showMemory() {
	entries := r.in.Space().Snapshot()
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "memory is empty")
		return
	}
	for _, e := range entries {
		extra := ""
		if e.IsPointer && e.PointerTarget != "" {
			extra = " -> " + e.PointerTarget
		}
		fmt.Fprintf(r.out, "%s  %-12s %-8s %s%s\n", e.Address, e.Name, e.Scope, e.Display, extra)
	}
}

func (r *Repl) showStack() {
	frames := r.in.Space().StackSnapshot()
	if len(frames) == 0 {
		fmt.Fprintln(r.out, "no live frames")
		return
	}
	for k := len(frames) - 1; k >= 0; k-- {
		fr := frames[k]
		fmt.Fprintf(r.out, "#%d %s (called from %s)\n", fr.FrameID, fr.Function, fr.Caller)
		for name, v := range fr.Variables {
			fmt.Fprintf(r.out, "    %s = %g @ %s\n", name, v.Value, v.Address)
		}
	}
}

func (r *Repl) help() {
	fmt.Fprint(r.out, `commands:
  s [n], step [n]   execute the next statement (or n statements)
  c, continue       run until the program finishes
  p, pause          pause; stepping resumes after 'c'
  mem               show the memory snapshot
  stack             show live call frames
  out               show program output and diagnostics
  src               show the loaded source
  reset             rewind to the first statement
  q, quit           leave the shell
`)
}
