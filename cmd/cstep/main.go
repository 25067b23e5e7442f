// cmd/cstep/main.go
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cstep/internal/config"
	"cstep/internal/interp"
	"cstep/internal/repl"
	"cstep/internal/server"
	"cstep/internal/trace"
)

const VERSION = "1.0.0"

const configFile = "cstep.yaml"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	if args[0] == "--help" || args[0] == "-h" || args[0] == "help" {
		showUsage()
		return
	}

	if args[0] == "--version" || args[0] == "-v" || args[0] == "version" {
		fmt.Printf("cstep %s\n", VERSION)
		return
	}

	switch args[0] {
	case "run":
		if len(args) < 2 {
			fatal("usage: cstep run <file.c> [--trace <db>]")
		}
		tracePath, traceOn := flagValue(args[2:], "--trace")
		runProgram(args[1], tracePath, traceOn)
	case "step":
		if len(args) < 2 {
			fatal("usage: cstep step <file.c>")
		}
		stepProgram(args[1])
	case "serve":
		if len(args) < 2 {
			fatal("usage: cstep serve <file.c> [--addr <addr>]")
		}
		addr, _ := flagValue(args[2:], "--addr")
		if addr == "" && len(args) > 2 && !strings.HasPrefix(args[2], "--") {
			addr = args[2]
		}
		serveProgram(args[1], addr)
	case "check":
		if len(args) < 2 {
			fatal("usage: cstep check <file.c>")
		}
		checkProgram(args[1])
	case "trace":
		if len(args) < 2 {
			fatal("usage: cstep trace <trace.db> [session]")
		}
		showTrace(args[1:])
	default:
		// a bare filename steps it interactively
		if _, err := os.Stat(args[0]); err == nil {
			stepProgram(args[0])
			return
		}
		fmt.Printf("Unknown command: %s\n\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

// flagValue scans args for a --name flag and returns its value and whether
// the flag appeared at all. A flag at the end of the line, or followed by
// another flag, counts as present with an empty value.
func flagValue(args []string, name string) (string, bool) {
	for k, a := range args {
		if a != name {
			continue
		}
		if k+1 < len(args) && !strings.HasPrefix(args[k+1], "--") {
			return args[k+1], true
		}
		return "", true
	}
	return "", false
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if os.Getenv("CSTEP_DEBUG") != "" {
		level = zerolog.TraceLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func load(path string) (*interp.Interpreter, config.Config) {
	cfg, err := config.Load(configFile)
	if err != nil {
		fatal("config: %v", err)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		fatal("read %s: %v", path, err)
	}
	in := interp.New(string(source))
	in.SetLogger(newLogger())
	if err := in.Load(cfg.Entry); err != nil {
		fatal("load %s: %v", path, err)
	}
	return in, cfg
}

// runProgram executes to completion and prints the output and final memory.
// --trace overrides the configured trace path; with no value it falls back
// to the config, then to trace.db.
func runProgram(path, tracePath string, traceOn bool) {
	in, cfg := load(path)

	if tracePath == "" {
		tracePath = cfg.TracePath
	}
	if traceOn && tracePath == "" {
		tracePath = "trace.db"
	}

	var recorder *trace.Recorder
	if tracePath != "" {
		var err error
		recorder, err = trace.Open(tracePath)
		if err != nil {
			fatal("trace: %v", err)
		}
		defer recorder.Close()
		if _, err := recorder.Begin(path, cfg.Entry); err != nil {
			fatal("trace: %v", err)
		}
	}

	delay := time.Duration(cfg.StepDelayMs) * time.Millisecond
	for n := 0; n < cfg.Steps() && in.Status() != interp.StateDone; n++ {
		res := in.Step()
		if recorder != nil && res.Statement != "" {
			if err := recorder.Record(res.Step, res.Function, res.Statement, string(res.State)); err != nil {
				fatal("trace: %v", err)
			}
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	for _, line := range in.Output() {
		fmt.Println(line)
	}
	state := in.Snapshot()
	if len(state.Memory) > 0 {
		fmt.Println("\nmemory:")
		for _, e := range state.Memory {
			fmt.Printf("  %s  %-12s %-8s %s\n", e.Address, e.Name, e.Scope, e.Display)
		}
	}
	if len(state.Completed) > 0 {
		fmt.Printf("\n%d function call(s) completed\n", len(state.Completed))
	}
}

// stepProgram opens the interactive shell.
func stepProgram(path string) {
	in, _ := load(path)
	if err := repl.New(in, os.Stdout).Run(); err != nil {
		fatal("%v", err)
	}
}

// serveProgram runs the websocket state server for a display frontend.
func serveProgram(path, addr string) {
	in, cfg := load(path)
	if addr == "" {
		addr = cfg.ServeAddr
	}
	srv := server.New(in, newLogger())
	if err := srv.ListenAndServe(addr); err != nil {
		fatal("serve: %v", err)
	}
}

// checkProgram parses only and reports what was recognized.
func checkProgram(path string) {
	in, _ := load(path)
	prog := in.Program()
	fmt.Printf("%s: %d function(s)\n", path, len(prog.Functions))
	for _, fn := range prog.Functions {
		fmt.Printf("  %s %s (%d params, %d statements)\n",
			fn.ReturnType, fn.Name, len(fn.Params), len(fn.Body))
	}
}

// showTrace lists recorded sessions, or replays one.
func showTrace(args []string) {
	recorder, err := trace.Open(args[0])
	if err != nil {
		fatal("trace: %v", err)
	}
	defer recorder.Close()

	if len(args) > 1 {
		var session int64
		if _, err := fmt.Sscanf(args[1], "%d", &session); err != nil {
			fatal("bad session id %q", args[1])
		}
		steps, err := recorder.Steps(session)
		if err != nil {
			fatal("trace: %v", err)
		}
		for _, s := range steps {
			fmt.Printf("%4d  %-12s %s\n", s.Step, s.Function, s.Statement)
		}
		return
	}

	sessions, err := recorder.Sessions()
	if err != nil {
		fatal("trace: %v", err)
	}
	for _, s := range sessions {
		fmt.Printf("%4d  %s  %s (entry %s)\n",
			s.ID, s.StartedAt.Format(time.RFC3339), s.Source, s.Entry)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func showUsage() {
	fmt.Printf(`cstep %s - single-stepping interpreter for a C subset

Usage:
  cstep run <file.c> [--trace <db>]     Run to completion; optionally record a step trace
  cstep step <file.c>                   Step interactively
  cstep serve <file.c> [--addr <addr>]  Serve execution state over HTTP/websocket
  cstep check <file.c>                  Parse and report recognized functions
  cstep trace <db> [session]            List or replay recorded step traces
  cstep version                         Show version
  cstep help                            Show this help

A cstep.yaml next to the working directory configures the entry function,
step delay, trace recording, and the serve address.
`, VERSION)
}
