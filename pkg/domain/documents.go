package domain

import "time"

// DocType is the key subscribers use to select documents.
type DocType string

const (
	// DocStart is published once when a run begins.
	DocStart DocType = "start"
	// DocEvent is published for every saved bundle of readings.
	DocEvent DocType = "event"
	// DocStop is published once when a run ends, whatever the outcome.
	DocStop DocType = "stop"
	// DocAll subscribes to every document type.
	DocAll DocType = "all"
)

// Document is any record published through the dispatcher.
type Document interface {
	DocType() DocType
}

// Reading is one value reported by a device, with the time it was taken.
type Reading struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// RunStart opens the document stream of a run.
type RunStart struct {
	UID      string         `json:"uid"`
	Time     time.Time      `json:"time"`
	PlanName string         `json:"plan_name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (RunStart) DocType() DocType { return DocStart }

// Event holds the readings gathered between a create and its save.
type Event struct {
	UID        string               `json:"uid"`
	RunUID     string               `json:"run_uid"`
	Seq        int                  `json:"seq"`
	Time       time.Time            `json:"time"`
	Data       map[string]any       `json:"data"`
	Timestamps map[string]time.Time `json:"timestamps"`
}

func (Event) DocType() DocType { return DocEvent }

// RunStop closes the document stream of a run.
type RunStop struct {
	UID        string    `json:"uid"`
	RunUID     string    `json:"run_uid"`
	Time       time.Time `json:"time"`
	ExitStatus RunStatus `json:"exit_status"`
	Reason     string    `json:"reason,omitempty"`
	NumEvents  int       `json:"num_events"`
}

func (RunStop) DocType() DocType { return DocStop }
