package model

import (
	"fmt"

	"github.com/tari-project/tari-core/model/hotstuff"
)

// WorkerState is a state of the consensus worker.
type WorkerState uint8

const (
	StateStarting WorkerState = iota
	StateIdle
	StateNextView
	StatePrepare
	StatePreCommit
	StateCommit
	StateDecide
)

func (s WorkerState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateIdle:
		return "idle"
	case StateNextView:
		return "next_view"
	case StatePrepare:
		return "prepare"
	case StatePreCommit:
		return "pre_commit"
	case StateCommit:
		return "commit"
	case StateDecide:
		return "decide"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// EventKind is the outcome of a state.
type EventKind uint8

const (
	EventInitialized EventKind = iota
	EventNotPartOfCommittee
	EventBaseLayerCheckpointNotFound
	EventNewView
	EventPrepared
	EventPreCommitted
	EventCommitted
	EventDecided
	EventTimedOut
	EventShutdownReceived
)

func (k EventKind) String() string {
	switch k {
	case EventInitialized:
		return "initialized"
	case EventNotPartOfCommittee:
		return "not_part_of_committee"
	case EventBaseLayerCheckpointNotFound:
		return "base_layer_checkpoint_not_found"
	case EventNewView:
		return "new_view"
	case EventPrepared:
		return "prepared"
	case EventPreCommitted:
		return "pre_committed"
	case EventCommitted:
		return "committed"
	case EventDecided:
		return "decided"
	case EventTimedOut:
		return "timed_out"
	case EventShutdownReceived:
		return "shutdown_received"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Event is returned by a state and drives the transition to the next one.
// NewView is set for EventNewView.
type Event struct {
	Kind    EventKind
	NewView *hotstuff.View
}

func NewEvent(kind EventKind) Event {
	return Event{Kind: kind}
}

func NewViewEvent(view hotstuff.View) Event {
	return Event{Kind: EventNewView, NewView: &view}
}

func (e Event) String() string {
	if e.NewView != nil {
		return fmt.Sprintf("%s(%s)", e.Kind, e.NewView.ID)
	}
	return e.Kind.String()
}

// StateChangedEvent is published on every transition of the worker.
type StateChangedEvent struct {
	Asset string
	From  WorkerState
	To    WorkerState
	Event Event
	View  hotstuff.ViewID
}
