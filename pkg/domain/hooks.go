package domain

import (
	"context"
	"time"
)

// RunEvent describes a run boundary.
type RunEvent struct {
	RunUID   string
	PlanName string
	Result   *RunResult // nil on start
}

// MessageEvent describes one dispatched message.
type MessageEvent struct {
	RunUID   string
	Command  Command
	Target   string
	Duration time.Duration
	Err      error
}

// LifecycleHooks defines callbacks for engine observability.
// Unlike subscribers, hooks cannot fail a run.
type LifecycleHooks struct {
	OnRunStart func(context.Context, *RunEvent)
	OnRunEnd   func(context.Context, *RunEvent)
	OnMessage  func(context.Context, *MessageEvent)
	OnDocument func(context.Context, Document)
}
