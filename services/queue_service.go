package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arenadesk/scorekeeper/brackets"
	"github.com/arenadesk/scorekeeper/models"
	"github.com/arenadesk/scorekeeper/repositories"
)

// QueueSyncResult reports what a sync pass changed.
type QueueSyncResult struct {
	ItemsCreated   int `json:"items_created"`
	ItemsCompleted int `json:"items_completed"`
	ItemsReverted  int `json:"items_reverted"`
}

// QueueService keeps the "next games to run" worklist consistent with the
// seeding ledger and the bracket graph. Sync never reassigns queue_position or
// table_number: those belong to the operator and survive every pass.
type QueueService interface {
	ListQueue(ctx context.Context, eventID int) ([]*models.GameQueueItem, error)
	SyncSeedingQueue(ctx context.Context, eventID int) (*QueueSyncResult, error)
	SyncBracketQueue(ctx context.Context, eventID int) (*QueueSyncResult, error)

	// Manual operations layered on the same table.
	Enqueue(ctx context.Context, eventID int, seedingTeamID, seedingRound, bracketGameID *int) (*models.GameQueueItem, error)
	Reorder(ctx context.Context, eventID int, orderedIDs []int) error
	CallItem(ctx context.Context, itemID int, tableNumber *int) error
	UpdateItemStatus(ctx context.Context, itemID int, status models.QueueStatus) error
	PopulateFromSeeding(ctx context.Context, eventID int) error
	PopulateFromBracket(ctx context.Context, eventID int) error
}

type queueService struct {
	tx             repositories.TxRunner
	queueRepo      repositories.QueueRepository
	eventRepo      repositories.EventRepository
	teamRepo       repositories.TeamRepository
	scoreRepo      repositories.SeedingScoreRepository
	submissionRepo repositories.SubmissionRepository
	gameRepo       repositories.BracketGameRepository
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewQueueService(
	tx repositories.TxRunner,
	queueRepo repositories.QueueRepository,
	eventRepo repositories.EventRepository,
	teamRepo repositories.TeamRepository,
	scoreRepo repositories.SeedingScoreRepository,
	submissionRepo repositories.SubmissionRepository,
	gameRepo repositories.BracketGameRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) QueueService {
	return &queueService{
		tx:             tx,
		queueRepo:      queueRepo,
		eventRepo:      eventRepo,
		teamRepo:       teamRepo,
		scoreRepo:      scoreRepo,
		submissionRepo: submissionRepo,
		gameRepo:       gameRepo,
		hub:            hub,
		logger:         logger,
	}
}

func (s *queueService) ListQueue(ctx context.Context, eventID int) ([]*models.GameQueueItem, error) {
	items, err := s.queueRepo.ListByEvent(ctx, nil, eventID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return items, nil
}

func seedingKey(teamID, round int) string {
	return fmt.Sprintf("%d:%d", teamID, round)
}

// scoredSeedingPairs collects every (team, round) that has a backing score:
// ledger rows plus pending/accepted submissions not yet folded in.
func (s *queueService) scoredSeedingPairs(ctx context.Context, eventID int, teams []*models.Team) (map[string]bool, error) {
	scored := make(map[string]bool)

	scores, err := s.scoreRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeding scores for queue sync: %w", err)
	}
	for _, score := range scores {
		if score.Score != nil {
			scored[seedingKey(score.TeamID, score.RoundNumber)] = true
		}
	}

	byNumber := make(map[int]*models.Team, len(teams))
	for _, team := range teams {
		byNumber[team.TeamNumber] = team
	}
	subs, err := s.submissionRepo.ListSeedingByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeding submissions for queue sync: %w", err)
	}
	for _, sub := range subs {
		if sub.Score == nil || sub.RoundNumber == nil {
			continue
		}
		teamID := 0
		if sub.TeamID != nil {
			teamID = *sub.TeamID
		} else if sub.TeamNumber != nil {
			if team, ok := byNumber[*sub.TeamNumber]; ok {
				teamID = team.ID
			}
		}
		if teamID != 0 {
			scored[seedingKey(teamID, *sub.RoundNumber)] = true
		}
	}
	return scored, nil
}

func (s *queueService) SyncSeedingQueue(ctx context.Context, eventID int) (*QueueSyncResult, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	teams, err := s.teamRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for queue sync: %w", err)
	}
	scored, err := s.scoredSeedingPairs(ctx, eventID, teams)
	if err != nil {
		return nil, err
	}

	result := &QueueSyncResult{}
	err = s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		items, err := s.queueRepo.ListByEvent(ctx, exec, eventID)
		if err != nil {
			return err
		}
		byKey := make(map[string]*models.GameQueueItem)
		maxPosition := 0
		for _, item := range items {
			if item.QueuePosition > maxPosition {
				maxPosition = item.QueuePosition
			}
			if item.IsSeeding() {
				key := seedingKey(*item.SeedingTeamID, *item.SeedingRound)
				if _, dup := byKey[key]; !dup {
					byKey[key] = item
				}
			}
		}

		for _, team := range teams {
			for round := 1; round <= event.SeedingRounds; round++ {
				key := seedingKey(team.ID, round)
				hasScore := scored[key]

				item, ok := byKey[key]
				if !ok {
					if !team.Active() {
						continue
					}
					status := models.QueueStatusQueued
					if hasScore {
						status = models.QueueStatusCompleted
					}
					maxPosition++
					newItem := &models.GameQueueItem{
						EventID:       eventID,
						SeedingTeamID: intPtr(team.ID),
						SeedingRound:  intPtr(round),
						QueuePosition: maxPosition,
						Status:        status,
					}
					if err := s.queueRepo.Create(ctx, exec, newItem); err != nil {
						return err
					}
					byKey[key] = newItem
					result.ItemsCreated++
					continue
				}

				if hasScore && item.Status != models.QueueStatusCompleted {
					if err := s.queueRepo.UpdateStatus(ctx, exec, item.ID, models.QueueStatusCompleted); err != nil {
						return err
					}
					item.Status = models.QueueStatusCompleted
					result.ItemsCompleted++
				} else if !hasScore && item.Status == models.QueueStatusCompleted {
					// The backing score is gone (admin delete): the run has to
					// happen again, so the item goes back in line.
					if err := s.queueRepo.RevertToQueued(ctx, exec, item.ID); err != nil {
						return err
					}
					item.Status = models.QueueStatusQueued
					item.TableNumber = nil
					item.CalledAt = nil
					result.ItemsReverted++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcastQueue(ctx, eventID)
	return result, nil
}

func (s *queueService) SyncBracketQueue(ctx context.Context, eventID int) (*QueueSyncResult, error) {
	games, err := s.gameRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bracket games for queue sync: %w", err)
	}

	result := &QueueSyncResult{}
	err = s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		items, err := s.queueRepo.ListByEvent(ctx, exec, eventID)
		if err != nil {
			return err
		}
		byGame := make(map[int]*models.GameQueueItem)
		maxPosition := 0
		for _, item := range items {
			if item.QueuePosition > maxPosition {
				maxPosition = item.QueuePosition
			}
			if item.BracketGameID != nil {
				if _, dup := byGame[*item.BracketGameID]; !dup {
					byGame[*item.BracketGameID] = item
				}
			}
		}

		for _, game := range games {
			item, exists := byGame[game.ID]

			switch {
			case game.Status == models.GameStatusCompleted:
				if exists {
					if item.Status != models.QueueStatusCompleted {
						if err := s.queueRepo.UpdateStatus(ctx, exec, item.ID, models.QueueStatusCompleted); err != nil {
							return err
						}
						item.Status = models.QueueStatusCompleted
						result.ItemsCompleted++
					}
				} else {
					maxPosition++
					newItem := &models.GameQueueItem{
						EventID:       eventID,
						BracketGameID: intPtr(game.ID),
						QueuePosition: maxPosition,
						Status:        models.QueueStatusCompleted,
					}
					if err := s.queueRepo.Create(ctx, exec, newItem); err != nil {
						return err
					}
					byGame[game.ID] = newItem
					result.ItemsCreated++
				}

			case game.Status == models.GameStatusReady,
				game.Status == models.GameStatusInProgress,
				game.Status == models.GameStatusPending && game.BothSlotsFilled():
				if !exists {
					maxPosition++
					newItem := &models.GameQueueItem{
						EventID:       eventID,
						BracketGameID: intPtr(game.ID),
						QueuePosition: maxPosition,
						Status:        models.QueueStatusQueued,
					}
					if err := s.queueRepo.Create(ctx, exec, newItem); err != nil {
						return err
					}
					byGame[game.ID] = newItem
					result.ItemsCreated++
				}

			default:
				// Not runnable yet; rows for games that regressed are
				// tolerated and left in place.
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcastQueue(ctx, eventID)
	return result, nil
}

func (s *queueService) Enqueue(ctx context.Context, eventID int, seedingTeamID, seedingRound, bracketGameID *int) (*models.GameQueueItem, error) {
	isSeeding := seedingTeamID != nil && seedingRound != nil
	if isSeeding == (bracketGameID != nil) {
		return nil, ErrQueueItemMisconfigured
	}

	var created *models.GameQueueItem
	err := s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		items, err := s.queueRepo.ListByEvent(ctx, exec, eventID)
		if err != nil {
			return err
		}
		maxPosition := 0
		for _, item := range items {
			if item.QueuePosition > maxPosition {
				maxPosition = item.QueuePosition
			}
			if isSeeding && item.IsSeeding() &&
				*item.SeedingTeamID == *seedingTeamID && *item.SeedingRound == *seedingRound {
				return ErrQueueItemConflict
			}
			if !isSeeding && item.BracketGameID != nil && *item.BracketGameID == *bracketGameID {
				return ErrQueueItemConflict
			}
		}

		created = &models.GameQueueItem{
			EventID:       eventID,
			SeedingTeamID: seedingTeamID,
			SeedingRound:  seedingRound,
			BracketGameID: bracketGameID,
			QueuePosition: maxPosition + 1,
			Status:        models.QueueStatusQueued,
		}
		return s.queueRepo.Create(ctx, exec, created)
	})
	if err != nil {
		return nil, err
	}

	s.broadcastQueue(ctx, eventID)
	return created, nil
}

func (s *queueService) Reorder(ctx context.Context, eventID int, orderedIDs []int) error {
	err := s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		items, err := s.queueRepo.ListByEvent(ctx, exec, eventID)
		if err != nil {
			return err
		}
		byID := make(map[int]*models.GameQueueItem, len(items))
		for _, item := range items {
			byID[item.ID] = item
		}

		position := 0
		placed := make(map[int]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			item, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: queue item %d", ErrQueueItemNotFound, id)
			}
			position++
			placed[id] = true
			if item.QueuePosition != position {
				if err := s.queueRepo.UpdatePosition(ctx, exec, id, position); err != nil {
					return err
				}
			}
		}

		// Unlisted items keep their relative order after the reordered block.
		for _, item := range items {
			if placed[item.ID] {
				continue
			}
			position++
			if item.QueuePosition != position {
				if err := s.queueRepo.UpdatePosition(ctx, exec, item.ID, position); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.broadcastQueue(ctx, eventID)
	return nil
}

func (s *queueService) CallItem(ctx context.Context, itemID int, tableNumber *int) error {
	item, err := s.queueRepo.GetByID(ctx, itemID)
	if err != nil {
		return mapRepositoryError(err)
	}
	if !isValidQueueTransition(item.Status, models.QueueStatusCalled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidQueueTransition, item.Status, models.QueueStatusCalled)
	}
	if err := s.queueRepo.MarkCalled(ctx, nil, itemID, tableNumber, time.Now().UTC()); err != nil {
		return mapRepositoryError(err)
	}

	s.broadcastQueue(ctx, item.EventID)
	return nil
}

func (s *queueService) UpdateItemStatus(ctx context.Context, itemID int, status models.QueueStatus) error {
	item, err := s.queueRepo.GetByID(ctx, itemID)
	if err != nil {
		return mapRepositoryError(err)
	}
	if !isValidQueueTransition(item.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidQueueTransition, item.Status, status)
	}

	if status == models.QueueStatusQueued {
		err = s.queueRepo.RevertToQueued(ctx, nil, itemID)
	} else {
		err = s.queueRepo.UpdateStatus(ctx, nil, itemID, status)
	}
	if err != nil {
		return mapRepositoryError(err)
	}

	s.broadcastQueue(ctx, item.EventID)
	return nil
}

// PopulateFromSeeding is the destructive initial-setup path: it replaces the
// whole queue with one row per (active team, round), round-major order.
func (s *queueService) PopulateFromSeeding(ctx context.Context, eventID int) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return mapRepositoryError(err)
	}
	teams, err := s.teamRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to list teams for queue populate: %w", err)
	}
	scored, err := s.scoredSeedingPairs(ctx, eventID, teams)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.queueRepo.DeleteByEvent(ctx, exec, eventID); err != nil {
			return err
		}
		position := 0
		for round := 1; round <= event.SeedingRounds; round++ {
			for _, team := range teams {
				if !team.Active() {
					continue
				}
				status := models.QueueStatusQueued
				if scored[seedingKey(team.ID, round)] {
					status = models.QueueStatusCompleted
				}
				position++
				item := &models.GameQueueItem{
					EventID:       eventID,
					SeedingTeamID: intPtr(team.ID),
					SeedingRound:  intPtr(round),
					QueuePosition: position,
					Status:        status,
				}
				if err := s.queueRepo.Create(ctx, exec, item); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.broadcastQueue(ctx, eventID)
	return nil
}

// PopulateFromBracket replaces the whole queue with the event's runnable and
// completed bracket games in bracket order.
func (s *queueService) PopulateFromBracket(ctx context.Context, eventID int) error {
	games, err := s.gameRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to list bracket games for queue populate: %w", err)
	}

	err = s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.queueRepo.DeleteByEvent(ctx, exec, eventID); err != nil {
			return err
		}
		position := 0
		for _, game := range games {
			var status models.QueueStatus
			switch {
			case game.Status == models.GameStatusCompleted:
				status = models.QueueStatusCompleted
			case game.Status == models.GameStatusReady,
				game.Status == models.GameStatusInProgress,
				game.Status == models.GameStatusPending && game.BothSlotsFilled():
				status = models.QueueStatusQueued
			default:
				continue
			}
			position++
			item := &models.GameQueueItem{
				EventID:       eventID,
				BracketGameID: intPtr(game.ID),
				QueuePosition: position,
				Status:        status,
			}
			if err := s.queueRepo.Create(ctx, exec, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.broadcastQueue(ctx, eventID)
	return nil
}

func (s *queueService) broadcastQueue(ctx context.Context, eventID int) {
	items, err := s.queueRepo.ListByEvent(ctx, nil, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load queue for broadcast", slog.Int("event_id", eventID), slog.Any("error", err))
		return
	}
	s.hub.BroadcastToRoom(eventRoom(eventID), brackets.WebSocketMessage{
		Type:    brackets.MessageQueueUpdated,
		Payload: items,
	})
}
