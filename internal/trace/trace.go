// internal/trace/trace.go
//
// Step trace recording. A Recorder persists each executed statement into a
// SQLite file so a finished run can be replayed and inspected offline.
package trace

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	source     TEXT NOT NULL,
	entry      TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS steps (
	session_id INTEGER NOT NULL REFERENCES sessions(id),
	step       INTEGER NOT NULL,
	function   TEXT NOT NULL,
	statement  TEXT NOT NULL,
	state      TEXT NOT NULL,
	PRIMARY KEY (session_id, step)
);
`

// Recorder writes step traces for one or more sessions into a single file.
type Recorder struct {
	db      *sql.DB
	session int64
}

func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create trace schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Begin opens a new session for a source file and makes it current.
func (r *Recorder) Begin(source, entry string) (int64, error) {
	res, err := r.db.Exec(
		"INSERT INTO sessions (source, entry, started_at) VALUES (?, ?, ?)",
		source, entry, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("begin session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("begin session: %w", err)
	}
	r.session = id
	return id, nil
}

// Record appends one executed step to the current session.
func (r *Recorder) Record(step int, function, statement, state string) error {
	if r.session == 0 {
		return fmt.Errorf("no session begun")
	}
	_, err := r.db.Exec(
		"INSERT INTO steps (session_id, step, function, statement, state) VALUES (?, ?, ?, ?, ?)",
		r.session, step, function, statement, state,
	)
	if err != nil {
		return fmt.Errorf("record step %d: %w", step, err)
	}
	return nil
}

// Session describes one recorded run.
type Session struct {
	ID        int64
	Source    string
	Entry     string
	StartedAt time.Time
}

// Step is one recorded statement execution.
type Step struct {
	Step      int
	Function  string
	Statement string
	State     string
}

// Sessions lists recorded sessions, newest first.
func (r *Recorder) Sessions() ([]Session, error) {
	rows, err := r.db.Query("SELECT id, source, entry, started_at FROM sessions ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Source, &s.Entry, &s.StartedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Steps replays one session's trace in execution order.
func (r *Recorder) Steps(session int64) ([]Step, error) {
	rows, err := r.db.Query(
		"SELECT step, function, statement, state FROM steps WHERE session_id = ? ORDER BY step",
		session,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()
	var steps []Step
	for rows.Next() {
		var s Step
		if err := rows.Scan(&s.Step, &s.Function, &s.Statement, &s.State); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
