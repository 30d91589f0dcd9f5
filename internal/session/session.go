// Package session holds the per-file processing state. Each uploaded file
// gets its own Session so files in one batch never share cleaning or
// visualization state. A Session advances through an explicit state machine
// instead of being recomputed on every interaction:
//
//	Loaded -> Cleaned -> Projected -> Visualized / Reported / Exported
//
// Later states imply the earlier ones; read-only operations (visualize,
// report, export) never regress the state.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datadesk/datadesk/internal/dataset"
)

// State is a session's position in the processing pipeline.
type State string

const (
	StateLoaded     State = "loaded"
	StateCleaned    State = "cleaned"
	StateProjected  State = "projected"
	StateVisualized State = "visualized"
	StateReported   State = "reported"
	StateExported   State = "exported"
)

// rank orders states so transitions only ever move forward.
func (s State) rank() int {
	switch s {
	case StateLoaded:
		return 0
	case StateCleaned:
		return 1
	case StateProjected:
		return 2
	case StateVisualized, StateReported, StateExported:
		return 3
	default:
		return -1
	}
}

// Session is the mutable processing context for one uploaded file.
type Session struct {
	ID       string
	FileName string
	FileSize int64
	Created  time.Time

	mu       sync.Mutex
	table    *dataset.Table
	state    State
	lastUsed time.Time
	ops      []string
}

// New creates a session around a freshly loaded table.
func New(table *dataset.Table) *Session {
	now := time.Now()
	return &Session{
		ID:       uuid.NewString(),
		FileName: table.SourceName,
		FileSize: table.SourceSize,
		Created:  now,
		table:    table,
		state:    StateLoaded,
		lastUsed: now,
	}
}

// State returns the session's current pipeline state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Operations returns the log of operations applied so far.
func (s *Session) Operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ops))
	copy(out, s.ops)
	return out
}

// LastUsed returns when the session last handled an operation.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Mutate runs fn against the session's table under the session lock, then
// advances the state machine. fn mutates the table in place (cleaning) or
// returns a replacement table (projection).
func (s *Session) Mutate(next State, fn func(t *dataset.Table) (*dataset.Table, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replacement, err := fn(s.table)
	if err != nil {
		return err
	}
	if replacement != nil {
		s.table = replacement
	}
	s.advance(next)
	s.lastUsed = time.Now()
	s.ops = append(s.ops, string(next))
	return nil
}

// View runs fn read-only against the session's table under the session lock
// and records the terminal state reached (visualized, reported, exported).
func (s *Session) View(reached State, fn func(t *dataset.Table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.table); err != nil {
		return err
	}
	s.advance(reached)
	s.lastUsed = time.Now()
	s.ops = append(s.ops, string(reached))
	return nil
}

// Snapshot returns the table's current display summary without copying data.
type Snapshot struct {
	ID       string     `json:"id"`
	FileName string     `json:"file_name"`
	SizeKB   float64    `json:"size_kb"`
	Rows     int        `json:"rows"`
	Cols     int        `json:"cols"`
	Columns  []string   `json:"columns"`
	Numeric  []string   `json:"numeric_columns"`
	State    State      `json:"state"`
	Preview  [][]string `json:"preview"`
	Ops      []string   `json:"operations,omitempty"`
}

// previewRows is how many leading rows the dashboard preview shows.
const previewRows = 5

// Snapshot builds the display summary used by the dashboard.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:       s.ID,
		FileName: s.FileName,
		SizeKB:   float64(s.FileSize) / 1024,
		Rows:     s.table.Nrow(),
		Cols:     s.table.Ncol(),
		Columns:  s.table.Columns(),
		Numeric:  s.table.NumericColumns(),
		State:    s.state,
		Preview:  s.table.Preview(previewRows),
		Ops:      append([]string(nil), s.ops...),
	}
}

// advance moves the state machine forward, never backward. Read-only
// terminal states do not regress a projected table back to cleaned.
func (s *Session) advance(next State) {
	if next.rank() >= s.state.rank() {
		s.state = next
	}
}

// String implements fmt.Stringer for log readability.
func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.ID, s.FileName)
}
