package models

import "time"

// SeedingScore is the per-(team, round) ledger row. A new accepted submission
// for the same pair overwrites the score rather than appending a second row.
type SeedingScore struct {
	ID           int       `json:"id"`
	EventID      int       `json:"event_id"`
	TeamID       int       `json:"team_id"`
	RoundNumber  int       `json:"round_number"`
	Score        *float64  `json:"score,omitempty"`
	SubmissionID *int      `json:"submission_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SeedingRanking is fully derived from a team's SeedingScore rows and is
// recomputed in bulk for the whole event whenever any contributing score
// changes. A team with zero non-null scores keeps a null rank and sorts last.
type SeedingRanking struct {
	ID           int       `json:"id"`
	EventID      int       `json:"event_id"`
	TeamID       int       `json:"team_id"`
	SeedAverage  *float64  `json:"seed_average,omitempty"`
	Tiebreaker   *float64  `json:"tiebreaker,omitempty"`
	SeedRank     *int      `json:"seed_rank,omitempty"`
	RawSeedScore *float64  `json:"raw_seed_score,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`

	Team *Team `json:"team,omitempty"`
}
