package domain

import "time"

// RunStatus is the terminal outcome of a run.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed" // plan exhausted normally
	StatusStopped   RunStatus = "stopped"   // plan returned ErrStop
	StatusFailed    RunStatus = "failed"    // device, command, validation or callback failure
	StatusAborted   RunStatus = "aborted"   // cancelled from outside
)

// RunResult summarizes one execution of a plan.
type RunResult struct {
	UID       string    `json:"uid"`
	PlanName  string    `json:"plan_name,omitempty"`
	Status    RunStatus `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	NumEvents int       `json:"num_events"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

// Duration returns how long the run lasted.
func (r *RunResult) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
