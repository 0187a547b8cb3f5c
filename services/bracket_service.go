package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arenadesk/scorekeeper/brackets"
	"github.com/arenadesk/scorekeeper/models"
	"github.com/arenadesk/scorekeeper/repositories"
)

// ByeResolution reports what a resolver pass changed.
type ByeResolution struct {
	ByeGamesResolved  int `json:"bye_games_resolved"`
	SlotsFilled       int `json:"slots_filled"`
	ReadyGamesUpdated int `json:"ready_games_updated"`
}

type BracketService interface {
	// ResolveByes cascades bye advancement to a fixed point and flips games
	// whose slots just filled from pending to ready. Safe to call after any
	// slot-filling change, and repeatedly.
	ResolveByes(ctx context.Context, eventID int) (*ByeResolution, error)
	// GenerateBracket replaces the event's bracket with a fresh double
	// elimination layout seeded from the ranking table.
	GenerateBracket(ctx context.Context, eventID int) ([]*models.BracketGame, error)
	GetBracket(ctx context.Context, eventID int) ([]*models.BracketGame, error)
}

type bracketService struct {
	tx          repositories.TxRunner
	gameRepo    repositories.BracketGameRepository
	teamRepo    repositories.TeamRepository
	rankingRepo repositories.SeedingRankingRepository
	generator   brackets.Generator
	hub         *brackets.Hub
	logger      *slog.Logger
}

func NewBracketService(
	tx repositories.TxRunner,
	gameRepo repositories.BracketGameRepository,
	teamRepo repositories.TeamRepository,
	rankingRepo repositories.SeedingRankingRepository,
	generator brackets.Generator,
	hub *brackets.Hub,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tx:          tx,
		gameRepo:    gameRepo,
		teamRepo:    teamRepo,
		rankingRepo: rankingRepo,
		generator:   generator,
		hub:         hub,
		logger:      logger,
	}
}

func (s *bracketService) ResolveByes(ctx context.Context, eventID int) (*ByeResolution, error) {
	games, err := s.gameRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bracket for bye resolution: %w", err)
	}
	byID := make(map[int]*models.BracketGame, len(games))
	for _, game := range games {
		byID[game.ID] = game
	}

	resolution := &ByeResolution{}
	err = s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		for {
			changed := false
			incoming, dead := slotFeeds(games)

			// A pending game whose empty slot can never be fed is a bye in
			// disguise: its real occupant has no opponent coming.
			for _, game := range games {
				if game.Status != models.GameStatusPending || dead[game.ID] {
					continue
				}
				empty := emptySlot(game)
				if empty == 0 {
					continue
				}
				if incoming[game.ID][empty-1] == 0 {
					if err := s.gameRepo.UpdateStatus(ctx, exec, game.ID, models.GameStatusBye); err != nil {
						return err
					}
					game.Status = models.GameStatusBye
					changed = true
				}
			}

			// Advance the sole occupant of each unresolved bye along its
			// winner edge as if it had won.
			for _, game := range games {
				if game.Status != models.GameStatusBye || game.WinnerID != nil {
					continue
				}
				occupant := game.SoleOccupant()
				if occupant == nil {
					continue
				}
				if err := s.gameRepo.SetByeWinner(ctx, exec, game.ID, *occupant); err != nil {
					return err
				}
				game.WinnerID = occupant
				resolution.ByeGamesResolved++
				changed = true

				if game.WinnerAdvancesToID != nil && game.WinnerSlot != nil {
					target := byID[*game.WinnerAdvancesToID]
					if target == nil {
						return fmt.Errorf("bye winner edge of game %d points at missing game %d", game.ID, *game.WinnerAdvancesToID)
					}
					if err := s.gameRepo.SetSlot(ctx, exec, target.ID, *game.WinnerSlot, *occupant); err != nil {
						return err
					}
					assignSlot(target, *game.WinnerSlot, *occupant)
					resolution.SlotsFilled++
				}
			}

			for _, game := range games {
				if game.Status == models.GameStatusPending && game.BothSlotsFilled() {
					if err := s.gameRepo.UpdateStatus(ctx, exec, game.ID, models.GameStatusReady); err != nil {
						return err
					}
					game.Status = models.GameStatusReady
					resolution.ReadyGamesUpdated++
					changed = true
				}
			}

			if !changed {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return resolution, nil
}

func (s *bracketService) GenerateBracket(ctx context.Context, eventID int) ([]*models.BracketGame, error) {
	teams, err := s.teamRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for bracket generation: %w", err)
	}
	rankings, err := s.rankingRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankings for bracket generation: %w", err)
	}

	entries := seedEntries(teams, rankings)
	if len(entries) < 2 {
		return nil, ErrBracketNotEnoughTeams
	}

	generated, err := s.generator.Generate(ctx, brackets.GenerateParams{EventID: eventID, Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("failed to generate bracket structure for event %d: %w", eventID, err)
	}

	err = s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.gameRepo.DeleteByEvent(ctx, exec, eventID); err != nil {
			return err
		}

		// First pass creates every node so it has a database id; the second
		// pass resolves UID edges to those ids.
		idByUID := make(map[string]int, len(generated))
		modelByUID := make(map[string]*models.BracketGame, len(generated))
		for _, gen := range generated {
			game := &models.BracketGame{
				EventID:  eventID,
				Bracket:  gen.Bracket,
				Round:    gen.Round,
				Position: gen.Position,
				Team1ID:  gen.Team1ID,
				Team2ID:  gen.Team2ID,
				Status:   initialGameStatus(gen),
			}
			if err := s.gameRepo.Create(ctx, exec, game); err != nil {
				return err
			}
			idByUID[gen.UID] = game.ID
			modelByUID[gen.UID] = game
		}

		for _, gen := range generated {
			if gen.WinnerToUID == nil && gen.LoserToUID == nil {
				continue
			}
			var winnerTo, loserTo *int
			if gen.WinnerToUID != nil {
				id, ok := idByUID[*gen.WinnerToUID]
				if !ok {
					return fmt.Errorf("generated game %s has unknown winner edge target %s", gen.UID, *gen.WinnerToUID)
				}
				winnerTo = &id
			}
			if gen.LoserToUID != nil {
				id, ok := idByUID[*gen.LoserToUID]
				if !ok {
					return fmt.Errorf("generated game %s has unknown loser edge target %s", gen.UID, *gen.LoserToUID)
				}
				loserTo = &id
			}
			if err := s.gameRepo.UpdateAdvancement(ctx, exec, modelByUID[gen.UID].ID, winnerTo, gen.WinnerToSlot, loserTo, gen.LoserToSlot); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save generated bracket for event %d: %w", eventID, err)
	}

	// Generation byes cascade immediately so round-one walkovers surface as
	// ready games.
	if _, err := s.ResolveByes(ctx, eventID); err != nil {
		return nil, err
	}

	games, err := s.gameRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastToRoom(eventRoom(eventID), brackets.WebSocketMessage{
		Type:    brackets.MessageBracketUpdated,
		Payload: games,
	})
	s.logger.InfoContext(ctx, "bracket generated",
		slog.Int("event_id", eventID),
		slog.Int("entrants", len(entries)),
		slog.Int("games", len(games)),
	)
	return games, nil
}

func (s *bracketService) GetBracket(ctx context.Context, eventID int) ([]*models.BracketGame, error) {
	games, err := s.gameRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return games, nil
}

// seedEntries orders bracket entrants: ranked teams by seed rank, then any
// remaining active teams in team-number order.
func seedEntries(teams []*models.Team, rankings []*models.SeedingRanking) []brackets.SeededEntry {
	active := make(map[int]*models.Team, len(teams))
	for _, team := range teams {
		if team.Active() {
			active[team.ID] = team
		}
	}

	entries := make([]brackets.SeededEntry, 0, len(active))
	seeded := make(map[int]bool, len(active))
	for _, ranking := range rankings {
		if ranking.SeedRank == nil {
			continue
		}
		if _, ok := active[ranking.TeamID]; !ok {
			continue
		}
		entries = append(entries, brackets.SeededEntry{TeamID: ranking.TeamID, Seed: len(entries) + 1})
		seeded[ranking.TeamID] = true
	}
	for _, team := range teams {
		if !team.Active() || seeded[team.ID] {
			continue
		}
		entries = append(entries, brackets.SeededEntry{TeamID: team.ID, Seed: len(entries) + 1})
	}
	return entries
}

func initialGameStatus(gen *brackets.GeneratedGame) models.GameStatus {
	if gen.IsBye {
		return models.GameStatusBye
	}
	if gen.Team1ID != nil && gen.Team2ID != nil {
		return models.GameStatusReady
	}
	return models.GameStatusPending
}

// slotFeeds counts, per game slot, the edges that can still deliver a team,
// and marks games that can never produce a winner (both slots empty with no
// feeds). Loser edges of bye games and of dead games never deliver, and the
// grand-final reset loser edge is excluded by definition.
func slotFeeds(games []*models.BracketGame) (map[int][2]int, map[int]bool) {
	dead := make(map[int]bool)
	var incoming map[int][2]int
	for {
		incoming = make(map[int][2]int, len(games))
		record := func(targetID *int, slot *int) {
			if targetID == nil || slot == nil || *slot < 1 || *slot > 2 {
				return
			}
			counts := incoming[*targetID]
			counts[*slot-1]++
			incoming[*targetID] = counts
		}
		for _, game := range games {
			if dead[game.ID] {
				continue
			}
			record(game.WinnerAdvancesToID, game.WinnerSlot)
			if game.Status != models.GameStatusBye && !game.HasResetEdge() {
				record(game.LoserAdvancesToID, game.LoserSlot)
			}
		}

		grew := false
		for _, game := range games {
			if dead[game.ID] || game.Status == models.GameStatusCompleted {
				continue
			}
			if game.Team1ID == nil && game.Team2ID == nil &&
				incoming[game.ID][0] == 0 && incoming[game.ID][1] == 0 {
				dead[game.ID] = true
				grew = true
			}
		}
		if !grew {
			return incoming, dead
		}
	}
}

// emptySlot returns which slot (1 or 2) is empty when exactly one is. Zero
// means none or both are empty.
func emptySlot(game *models.BracketGame) int {
	if game.Team1ID == nil && game.Team2ID != nil {
		return 1
	}
	if game.Team2ID == nil && game.Team1ID != nil {
		return 2
	}
	return 0
}

func assignSlot(game *models.BracketGame, slot, teamID int) {
	if slot == 1 {
		game.Team1ID = &teamID
	} else {
		game.Team2ID = &teamID
	}
}

func eventRoom(eventID int) string {
	return fmt.Sprintf("event_%d", eventID)
}
