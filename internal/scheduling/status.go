package scheduling

import (
	"tutoring-scheduler/internal/data/entity"
)

type Trigger string

const (
	TriggerConfirm  Trigger = "confirm"
	TriggerComplete Trigger = "complete"
	TriggerCancel   Trigger = "cancel"

	// Not status transitions; they label edits rejected on terminal sessions.
	TriggerUpdate     Trigger = "update"
	TriggerReschedule Trigger = "reschedule"
)

type transition struct {
	from    entity.SessionStatus
	trigger Trigger
}

var transitions = map[transition]entity.SessionStatus{
	{entity.SessionStatusScheduled, TriggerConfirm}:  entity.SessionStatusConfirmed,
	{entity.SessionStatusScheduled, TriggerCancel}:   entity.SessionStatusCancelled,
	{entity.SessionStatusConfirmed, TriggerComplete}: entity.SessionStatusCompleted,
	{entity.SessionStatusConfirmed, TriggerCancel}:   entity.SessionStatusCancelled,
}

// Next returns the status reached by firing trigger from current.
func Next(current entity.SessionStatus, trigger Trigger) (entity.SessionStatus, error) {
	next, ok := transitions[transition{current, trigger}]
	if !ok {
		return current, &InvalidStateError{Current: current, Trigger: trigger}
	}
	return next, nil
}

// Apply moves the session to its next status. It is the only place that
// changes Status after creation.
func Apply(s *entity.Session, trigger Trigger) error {
	next, err := Next(s.Status, trigger)
	if err != nil {
		return err
	}
	s.Status = next
	return nil
}

// IsTerminal reports whether no trigger leaves the status.
func IsTerminal(status entity.SessionStatus) bool {
	for t := range transitions {
		if t.from == status {
			return false
		}
	}
	return true
}

// EnsureMutable rejects edits to sessions that reached a terminal status.
func EnsureMutable(s *entity.Session, trigger Trigger) error {
	if IsTerminal(s.Status) {
		return &InvalidStateError{Current: s.Status, Trigger: trigger}
	}
	return nil
}
