package returns

import "slices"

// State implements the state pattern for the return workflow.
type State interface {
	Status() Status
	Approve(r *Return) (State, error)
	Reject(r *Return) (State, error)
	Process(r *Return) (State, error)
	Complete(r *Return) (State, error)
}

func stateFor(s Status) State {
	switch s {
	case StatusApproved:
		return approvedState{}
	case StatusRejected:
		return rejectedState{}
	case StatusProcessed:
		return processedState{}
	case StatusCompleted:
		return completedState{}
	default:
		return requestedState{}
	}
}

// nextStatuses fires every workflow event at s and collects where the
// accepted ones lead.
func nextStatuses(s State) []Status {
	var out []Status
	scratch := &Return{Status: s.Status()}
	for _, event := range []func(*Return) (State, error){s.Approve, s.Reject, s.Process, s.Complete} {
		if next, err := event(scratch); err == nil {
			out = append(out, next.Status())
		}
	}
	return out
}

// CanTransition reports whether the workflow allows moving from one status to another.
func CanTransition(from, to Status) bool {
	if !from.Valid() {
		return false
	}
	return slices.Contains(nextStatuses(stateFor(from)), to)
}

type requestedState struct{}

func (requestedState) Status() Status { return StatusRequested }

func (requestedState) Approve(*Return) (State, error) { return approvedState{}, nil }

func (requestedState) Reject(*Return) (State, error) { return rejectedState{}, nil }

func (requestedState) Process(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (requestedState) Complete(*Return) (State, error) { return nil, ErrInvalidStateTransition }

type approvedState struct{}

func (approvedState) Status() Status { return StatusApproved }

func (approvedState) Approve(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (approvedState) Reject(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (approvedState) Process(*Return) (State, error) { return processedState{}, nil }

func (approvedState) Complete(*Return) (State, error) { return completedState{}, nil }

type rejectedState struct{}

func (rejectedState) Status() Status { return StatusRejected }

func (rejectedState) Approve(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (rejectedState) Reject(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (rejectedState) Process(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (rejectedState) Complete(*Return) (State, error) { return nil, ErrInvalidStateTransition }

// processedState has no outgoing transitions: only approved returns complete.
type processedState struct{}

func (processedState) Status() Status { return StatusProcessed }

func (processedState) Approve(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (processedState) Reject(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (processedState) Process(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (processedState) Complete(*Return) (State, error) { return nil, ErrInvalidStateTransition }

type completedState struct{}

func (completedState) Status() Status { return StatusCompleted }

func (completedState) Approve(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (completedState) Reject(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (completedState) Process(*Return) (State, error) { return nil, ErrInvalidStateTransition }

func (completedState) Complete(*Return) (State, error) { return nil, ErrInvalidStateTransition }
