// Package runlog records migration runs in a local SQLite database so
// earlier planning and rewrite sessions stay inspectable.
package runlog

import (
	"time"

	"github.com/google/uuid"
)

// Mode identifies what a run did.
type Mode string

const (
	// ModePlan means the run only computed and reported the migration.
	ModePlan Mode = "plan"
	// ModeRewrite means the run also rewrote sources in the extension
	// checkout.
	ModeRewrite Mode = "rewrite"
)

// Run captures one invocation of the migration pipeline.
type Run struct {
	ID           string     `json:"id"`
	Extension    string     `json:"extension"`
	Mode         Mode       `json:"mode"`
	Fingerprint  string     `json:"fingerprint,omitempty"`
	Candidates   int        `json:"candidates"`
	Renames      int        `json:"renames"`
	Conflicts    int        `json:"conflicts"`
	FilesChanged int        `json:"filesChanged"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// NewRun creates a run for the given extension and mode.
func NewRun(extension string, mode Mode) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Extension: extension,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
}

// Complete marks the run as finished.
func (r *Run) Complete() {
	now := time.Now().UTC()
	r.FinishedAt = &now
}

// Fail marks the run as finished with an error.
func (r *Run) Fail(err error) {
	r.Error = err.Error()
	r.Complete()
}

// Succeeded reports whether the run finished without an error.
func (r *Run) Succeeded() bool {
	return r.Error == ""
}

// Duration returns how long the run took, or zero while it is unfinished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
