package services

import (
	"encoding/json"
	"errors"

	"github.com/arenadesk/scorekeeper/models"
	"github.com/arenadesk/scorekeeper/repositories"
)

// Status machines are closed: every transition not listed here is rejected at
// the service boundary instead of leaning on database CHECK constraints.

// Submissions have no same-status shortcut: re-reviewing an already reviewed
// submission is exactly what the table has to reject (force bypasses it).
func isValidSubmissionTransition(current, next models.SubmissionStatus) bool {
	allowed := map[models.SubmissionStatus][]models.SubmissionStatus{
		models.SubmissionStatusPending:  {models.SubmissionStatusAccepted, models.SubmissionStatusRejected},
		models.SubmissionStatusAccepted: {},
		models.SubmissionStatusRejected: {models.SubmissionStatusAccepted},
	}
	for _, status := range allowed[current] {
		if next == status {
			return true
		}
	}
	return false
}

func isValidQueueTransition(current, next models.QueueStatus) bool {
	if current == next {
		return true
	}
	allowed := map[models.QueueStatus][]models.QueueStatus{
		models.QueueStatusQueued:     {models.QueueStatusCalled, models.QueueStatusInProgress, models.QueueStatusCompleted},
		models.QueueStatusCalled:     {models.QueueStatusQueued, models.QueueStatusInProgress, models.QueueStatusCompleted},
		models.QueueStatusInProgress: {models.QueueStatusCompleted, models.QueueStatusQueued},
		models.QueueStatusCompleted:  {models.QueueStatusQueued},
	}
	for _, status := range allowed[current] {
		if next == status {
			return true
		}
	}
	return false
}

func isValidGameTransition(current, next models.GameStatus) bool {
	if current == next {
		return true
	}
	allowed := map[models.GameStatus][]models.GameStatus{
		models.GameStatusPending:    {models.GameStatusReady, models.GameStatusBye},
		models.GameStatusReady:      {models.GameStatusInProgress, models.GameStatusCompleted},
		models.GameStatusInProgress: {models.GameStatusCompleted, models.GameStatusReady},
		models.GameStatusCompleted:  {},
		models.GameStatusBye:        {},
	}
	for _, status := range allowed[current] {
		if next == status {
			return true
		}
	}
	return false
}

// mapRepositoryError translates store-level not-found sentinels into the
// service taxonomy; everything else passes through untouched.
func mapRepositoryError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrEventNotFound):
		return ErrEventNotFound
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrSubmissionNotFound):
		return ErrSubmissionNotFound
	case errors.Is(err, repositories.ErrBracketGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repositories.ErrQueueItemNotFound):
		return ErrQueueItemNotFound
	default:
		return err
	}
}

// auditValue renders an entity snapshot for the audit trail. Marshal failures
// degrade to a nil value rather than blocking the write.
func auditValue(v interface{}) *string {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(raw)
	return &s
}

// auditIP turns a caller address into the nullable audit column value.
func auditIP(ip string) *string {
	if ip == "" {
		return nil
	}
	return &ip
}

func intPtr(v int) *int { return &v }
