package scheduling

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutoring-scheduler/internal/data/entity"
)

func TestNextFollowsTransitionTable(t *testing.T) {
	statuses := []entity.SessionStatus{
		entity.SessionStatusScheduled,
		entity.SessionStatusConfirmed,
		entity.SessionStatusCompleted,
		entity.SessionStatusCancelled,
	}
	triggers := []Trigger{TriggerConfirm, TriggerComplete, TriggerCancel}

	allowed := map[entity.SessionStatus]map[Trigger]entity.SessionStatus{
		entity.SessionStatusScheduled: {
			TriggerConfirm: entity.SessionStatusConfirmed,
			TriggerCancel:  entity.SessionStatusCancelled,
		},
		entity.SessionStatusConfirmed: {
			TriggerComplete: entity.SessionStatusCompleted,
			TriggerCancel:   entity.SessionStatusCancelled,
		},
	}

	for _, from := range statuses {
		for _, trigger := range triggers {
			next, err := Next(from, trigger)
			want, ok := allowed[from][trigger]
			if ok {
				require.NoError(t, err, "%s --%s-->", from, trigger)
				assert.Equal(t, want, next)
				continue
			}

			var stateErr *InvalidStateError
			require.True(t, errors.As(err, &stateErr), "%s --%s--> should fail", from, trigger)
			assert.Equal(t, from, stateErr.Current)
			assert.Equal(t, trigger, stateErr.Trigger)
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
}

func TestApply(t *testing.T) {
	s := &entity.Session{Status: entity.SessionStatusScheduled}

	require.NoError(t, Apply(s, TriggerConfirm))
	assert.Equal(t, entity.SessionStatusConfirmed, s.Status)

	require.NoError(t, Apply(s, TriggerComplete))
	assert.Equal(t, entity.SessionStatusCompleted, s.Status)

	err := Apply(s, TriggerCancel)
	assert.Error(t, err)
	assert.Equal(t, entity.SessionStatusCompleted, s.Status, "failed transition leaves status untouched")
}

func TestCompleteFromScheduledIsRejected(t *testing.T) {
	s := &entity.Session{Status: entity.SessionStatusScheduled}
	err := Apply(s, TriggerComplete)
	assert.EqualError(t, err, "cannot complete session in status SCHEDULED")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(entity.SessionStatusScheduled))
	assert.False(t, IsTerminal(entity.SessionStatusConfirmed))
	assert.True(t, IsTerminal(entity.SessionStatusCompleted))
	assert.True(t, IsTerminal(entity.SessionStatusCancelled))
}

func TestEnsureMutable(t *testing.T) {
	for _, status := range []entity.SessionStatus{entity.SessionStatusScheduled, entity.SessionStatusConfirmed} {
		assert.NoError(t, EnsureMutable(&entity.Session{Status: status}, TriggerUpdate))
	}

	err := EnsureMutable(&entity.Session{Status: entity.SessionStatusCancelled}, TriggerReschedule)
	assert.ErrorIs(t, err, ErrConflict)
	assert.EqualError(t, err, "cannot reschedule session in status CANCELLED")
}
