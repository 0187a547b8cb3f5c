package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/arenadesk/scorekeeper/models"
	"github.com/arenadesk/scorekeeper/repositories"
)

// RankingResult reports how many teams ended up ranked after a recompute.
type RankingResult struct {
	TeamsRanked   int `json:"teams_ranked"`
	TeamsUnranked int `json:"teams_unranked"`
}

// RankingService recomputes the event-wide seeding ranking table. The table is
// fully derived: the whole thing is rebuilt from the seeding ledger on every
// accepted score, which keeps it the single source of truth for rank.
type RankingService interface {
	Recalculate(ctx context.Context, eventID int) (*RankingResult, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.SeedingRanking, error)
}

type rankingService struct {
	tx          repositories.TxRunner
	teamRepo    repositories.TeamRepository
	scoreRepo   repositories.SeedingScoreRepository
	rankingRepo repositories.SeedingRankingRepository
	logger      *slog.Logger
}

func NewRankingService(
	tx repositories.TxRunner,
	teamRepo repositories.TeamRepository,
	scoreRepo repositories.SeedingScoreRepository,
	rankingRepo repositories.SeedingRankingRepository,
	logger *slog.Logger,
) RankingService {
	return &rankingService{
		tx:          tx,
		teamRepo:    teamRepo,
		scoreRepo:   scoreRepo,
		rankingRepo: rankingRepo,
		logger:      logger,
	}
}

func (s *rankingService) Recalculate(ctx context.Context, eventID int) (*RankingResult, error) {
	teams, err := s.teamRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for ranking recompute: %w", err)
	}
	scores, err := s.scoreRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeding scores for ranking recompute: %w", err)
	}

	rankings := buildRankings(eventID, teams, scores)

	err = s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.rankingRepo.UpsertAll(ctx, exec, rankings)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write seeding rankings for event %d: %w", eventID, err)
	}

	result := &RankingResult{}
	for _, ranking := range rankings {
		if ranking.SeedRank != nil {
			result.TeamsRanked++
		} else {
			result.TeamsUnranked++
		}
	}
	s.logger.InfoContext(ctx, "seeding rankings recalculated",
		slog.Int("event_id", eventID),
		slog.Int("teams_ranked", result.TeamsRanked),
		slog.Int("teams_unranked", result.TeamsUnranked),
	)
	return result, nil
}

func (s *rankingService) ListByEvent(ctx context.Context, eventID int) ([]*models.SeedingRanking, error) {
	return s.rankingRepo.ListByEvent(ctx, eventID)
}

// buildRankings is the pure scores-to-rankings function. Teams with zero
// non-null scores keep null average, tiebreaker and rank, and sort last in
// team-id order with no defined order amongst themselves.
func buildRankings(eventID int, teams []*models.Team, scores []*models.SeedingScore) []*models.SeedingRanking {
	scoresByTeam := make(map[int][]float64, len(teams))
	for _, score := range scores {
		if score.Score == nil {
			continue
		}
		scoresByTeam[score.TeamID] = append(scoresByTeam[score.TeamID], *score.Score)
	}

	rankings := make([]*models.SeedingRanking, 0, len(teams))
	for _, team := range teams {
		average, tiebreaker := seedingStats(scoresByTeam[team.ID])
		rankings = append(rankings, &models.SeedingRanking{
			EventID:     eventID,
			TeamID:      team.ID,
			SeedAverage: average,
			Tiebreaker:  tiebreaker,
		})
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]
		if a.SeedAverage == nil || b.SeedAverage == nil {
			return a.SeedAverage != nil && b.SeedAverage == nil
		}
		if *a.SeedAverage != *b.SeedAverage {
			return *a.SeedAverage > *b.SeedAverage
		}
		return *a.Tiebreaker > *b.Tiebreaker
	})

	rankedCount := 0
	for _, ranking := range rankings {
		if ranking.SeedAverage != nil {
			rankedCount++
		}
	}
	if rankedCount == 0 {
		return rankings
	}

	maxAverage := *rankings[0].SeedAverage
	for i := 0; i < rankedCount; i++ {
		rank := i + 1
		rankings[i].SeedRank = &rank

		raw := 0.75 * (float64(rankedCount-rank+1) / float64(rankedCount))
		if maxAverage > 0 {
			raw += 0.25 * (*rankings[i].SeedAverage / maxAverage)
		}
		rankings[i].RawSeedScore = &raw
	}
	return rankings
}

// seedingStats computes the seed average (mean of the two highest scores, or
// the single score) and the tiebreaker (third-highest score when there are at
// least three, otherwise the sum of everything available).
func seedingStats(values []float64) (average, tiebreaker *float64) {
	if len(values) == 0 {
		return nil, nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	var avg float64
	if len(sorted) >= 2 {
		avg = (sorted[0] + sorted[1]) / 2
	} else {
		avg = sorted[0]
	}

	var tb float64
	if len(sorted) >= 3 {
		tb = sorted[2]
	} else {
		for _, v := range sorted {
			tb += v
		}
	}
	return &avg, &tb
}
