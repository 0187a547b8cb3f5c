package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arenadesk/scorekeeper/models"
	"github.com/arenadesk/scorekeeper/repositories"
	"github.com/arenadesk/scorekeeper/storage"
)

// ExportService publishes CSV snapshots of event state to object storage so
// results can be shared without exposing the API.
type ExportService interface {
	ExportRankings(ctx context.Context, eventID int) (*storage.UploadResult, error)
	ExportBracket(ctx context.Context, eventID int) (*storage.UploadResult, error)
}

type exportService struct {
	teamRepo    repositories.TeamRepository
	rankingRepo repositories.SeedingRankingRepository
	scoreRepo   repositories.SeedingScoreRepository
	gameRepo    repositories.BracketGameRepository
	uploader    storage.FileUploader
	logger      *slog.Logger
}

func NewExportService(
	teamRepo repositories.TeamRepository,
	rankingRepo repositories.SeedingRankingRepository,
	scoreRepo repositories.SeedingScoreRepository,
	gameRepo repositories.BracketGameRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ExportService {
	return &exportService{
		teamRepo:    teamRepo,
		rankingRepo: rankingRepo,
		scoreRepo:   scoreRepo,
		gameRepo:    gameRepo,
		uploader:    uploader,
		logger:      logger,
	}
}

func (s *exportService) ExportRankings(ctx context.Context, eventID int) (*storage.UploadResult, error) {
	var rankings []*models.SeedingRanking
	var scores []*models.SeedingScore

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rankings, err = s.rankingRepo.ListByEvent(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		scores, err = s.scoreRepo.ListByEvent(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load ranking data for export: %w", err)
	}

	roundsByTeam := make(map[int]int)
	for _, score := range scores {
		if score.Score != nil {
			roundsByTeam[score.TeamID]++
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"seed_rank", "team_number", "team_name", "seed_average", "tiebreaker", "raw_seed_score", "rounds_scored"}); err != nil {
		return nil, fmt.Errorf("failed to write rankings CSV header: %w", err)
	}
	for _, ranking := range rankings {
		teamNumber, teamName := "", ""
		if ranking.Team != nil {
			teamNumber = strconv.Itoa(ranking.Team.TeamNumber)
			teamName = ranking.Team.Name
		}
		record := []string{
			csvInt(ranking.SeedRank),
			teamNumber,
			teamName,
			csvFloat(ranking.SeedAverage),
			csvFloat(ranking.Tiebreaker),
			csvFloat(ranking.RawSeedScore),
			strconv.Itoa(roundsByTeam[ranking.TeamID]),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write rankings CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush rankings CSV: %w", err)
	}

	key := exportKey(eventID, "rankings")
	result, err := s.uploader.Upload(ctx, key, "text/csv", &buf)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "rankings exported",
		slog.Int("event_id", eventID),
		slog.String("key", key),
		slog.Int("rows", len(rankings)),
	)
	return result, nil
}

func (s *exportService) ExportBracket(ctx context.Context, eventID int) (*storage.UploadResult, error) {
	var games []*models.BracketGame
	var teams []*models.Team

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		games, err = s.gameRepo.ListByEvent(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = s.teamRepo.ListByEvent(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load bracket data for export: %w", err)
	}

	names := make(map[int]string, len(teams))
	for _, team := range teams {
		names[team.ID] = team.Name
	}
	teamName := func(id *int) string {
		if id == nil {
			return ""
		}
		return names[*id]
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"bracket", "round", "position", "team1", "team2", "status", "winner", "team1_score", "team2_score"}); err != nil {
		return nil, fmt.Errorf("failed to write bracket CSV header: %w", err)
	}
	for _, game := range games {
		record := []string{
			string(game.Bracket),
			strconv.Itoa(game.Round),
			strconv.Itoa(game.Position),
			teamName(game.Team1ID),
			teamName(game.Team2ID),
			string(game.Status),
			teamName(game.WinnerID),
			csvFloat(game.Team1Score),
			csvFloat(game.Team2Score),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write bracket CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush bracket CSV: %w", err)
	}

	key := exportKey(eventID, "bracket")
	result, err := s.uploader.Upload(ctx, key, "text/csv", &buf)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "bracket exported",
		slog.Int("event_id", eventID),
		slog.String("key", key),
		slog.Int("games", len(games)),
	)
	return result, nil
}

func exportKey(eventID int, kind string) string {
	return fmt.Sprintf("exports/event-%d/%s-%s.csv", eventID, kind, time.Now().UTC().Format("20060102-150405"))
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func csvInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
