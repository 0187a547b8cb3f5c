package brackets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/arenadesk/scorekeeper/models"
)

// DoubleEliminationGenerator lays out a winners bracket, a losers bracket fed
// by winners-round drops, and a grand final. The grand final carries winner
// and loser edges into the same terminal node, which marks the "no true
// reset" rule: a winners-side champion ends the tournament outright.
type DoubleEliminationGenerator struct {
}

func NewDoubleEliminationGenerator() Generator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) Name() string {
	return "DoubleElimination"
}

func (g *DoubleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) ([]*GeneratedGame, error) {
	entries := make([]SeededEntry, len(params.Entries))
	copy(entries, params.Entries)
	n := len(entries)
	if n < 2 {
		return nil, errors.New("not enough entrants to generate a double elimination bracket (minimum 2)")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seed < entries[j].Seed })

	numRounds := int(math.Ceil(math.Log2(float64(n))))
	size := 1 << uint(numRounds)

	games := make([]*GeneratedGame, 0, 2*size)
	byUID := make(map[string]*GeneratedGame)
	add := func(game *GeneratedGame) *GeneratedGame {
		games = append(games, game)
		byUID[game.UID] = game
		return game
	}

	winnersUID := func(round, pos int) string { return fmt.Sprintf("W%d-%d", round, pos) }
	losersUID := func(round, pos int) string { return fmt.Sprintf("L%d-%d", round, pos) }

	// Winners round 1, entrants placed in standard seed order so the top seeds
	// cannot meet before the late rounds. Seeds beyond n leave a bye slot.
	seedOrder := standardSeedOrder(size)
	for i := 0; i < size/2; i++ {
		game := &GeneratedGame{
			UID:      winnersUID(1, i+1),
			Bracket:  models.BracketWinners,
			Round:    1,
			Position: i + 1,
		}
		if s := seedOrder[2*i]; s <= n {
			game.Team1ID = intRef(entries[s-1].TeamID)
		}
		if s := seedOrder[2*i+1]; s <= n {
			game.Team2ID = intRef(entries[s-1].TeamID)
		}
		game.IsBye = (game.Team1ID == nil) != (game.Team2ID == nil)
		add(game)
	}

	// Winners rounds 2..numRounds.
	for r := 2; r <= numRounds; r++ {
		count := size >> uint(r)
		for i := 0; i < count; i++ {
			add(&GeneratedGame{
				UID:      winnersUID(r, i+1),
				Bracket:  models.BracketWinners,
				Round:    r,
				Position: i + 1,
			})
			feed1 := byUID[winnersUID(r-1, 2*i+1)]
			feed2 := byUID[winnersUID(r-1, 2*i+2)]
			feed1.WinnerToUID = strRef(winnersUID(r, i+1))
			feed1.WinnerToSlot = intRef(1)
			feed2.WinnerToUID = strRef(winnersUID(r, i+1))
			feed2.WinnerToSlot = intRef(2)
		}
	}

	// Losers bracket: rounds come in pairs. L(2i-1) pairs the survivors of the
	// previous losers round; L(2i) drops in the losers of winners round i+1.
	// L1 is the first pairing round, fed directly by winners round 1 losers.
	losersRounds := 0
	if numRounds >= 2 {
		losersRounds = 2 * (numRounds - 1)

		for i := 0; i < size/4; i++ {
			add(&GeneratedGame{
				UID:      losersUID(1, i+1),
				Bracket:  models.BracketLosers,
				Round:    1,
				Position: i + 1,
			})
			feed1 := byUID[winnersUID(1, 2*i+1)]
			feed2 := byUID[winnersUID(1, 2*i+2)]
			feed1.LoserToUID = strRef(losersUID(1, i+1))
			feed1.LoserToSlot = intRef(1)
			feed2.LoserToUID = strRef(losersUID(1, i+1))
			feed2.LoserToSlot = intRef(2)
		}

		for i := 1; i <= numRounds-1; i++ {
			count := size >> uint(i+1)
			if count == 0 {
				count = 1
			}

			// Minor pairing round, except L1 which was built above.
			if i >= 2 {
				minor := 2*i - 1
				for j := 0; j < count; j++ {
					add(&GeneratedGame{
						UID:      losersUID(minor, j+1),
						Bracket:  models.BracketLosers,
						Round:    minor,
						Position: j + 1,
					})
					feed1 := byUID[losersUID(minor-1, 2*j+1)]
					feed2 := byUID[losersUID(minor-1, 2*j+2)]
					feed1.WinnerToUID = strRef(losersUID(minor, j+1))
					feed1.WinnerToSlot = intRef(1)
					feed2.WinnerToUID = strRef(losersUID(minor, j+1))
					feed2.WinnerToSlot = intRef(2)
				}
			}

			// Drop-in round: previous losers-round winner meets the fresh drop
			// from winners round i+1.
			major := 2 * i
			for j := 0; j < count; j++ {
				add(&GeneratedGame{
					UID:      losersUID(major, j+1),
					Bracket:  models.BracketLosers,
					Round:    major,
					Position: j + 1,
				})
				carry := byUID[losersUID(major-1, j+1)]
				carry.WinnerToUID = strRef(losersUID(major, j+1))
				carry.WinnerToSlot = intRef(1)
				drop := byUID[winnersUID(i+1, j+1)]
				drop.LoserToUID = strRef(losersUID(major, j+1))
				drop.LoserToSlot = intRef(2)
			}
		}
	}

	// Grand final plus its terminal node. Winner and loser edges of the grand
	// final both point at the terminal: the loser side of that pair is never
	// propagated, so a winners-side champion ends the bracket in one game.
	finalUID := "F1"
	terminalUID := "F2"
	if numRounds >= 2 {
		add(&GeneratedGame{UID: finalUID, Bracket: models.BracketFinal, Round: 1, Position: 1})

		winnersFinal := byUID[winnersUID(numRounds, 1)]
		winnersFinal.WinnerToUID = strRef(finalUID)
		winnersFinal.WinnerToSlot = intRef(1)

		losersFinal := byUID[losersUID(losersRounds, 1)]
		losersFinal.WinnerToUID = strRef(finalUID)
		losersFinal.WinnerToSlot = intRef(2)

		gf := byUID[finalUID]
		gf.WinnerToUID = strRef(terminalUID)
		gf.WinnerToSlot = intRef(1)
		gf.LoserToUID = strRef(terminalUID)
		gf.LoserToSlot = intRef(2)
	} else {
		// Two entrants: the only winners game doubles as the grand final.
		only := byUID[winnersUID(1, 1)]
		only.WinnerToUID = strRef(terminalUID)
		only.WinnerToSlot = intRef(1)
		only.LoserToUID = strRef(terminalUID)
		only.LoserToSlot = intRef(2)
	}
	add(&GeneratedGame{UID: terminalUID, Bracket: models.BracketFinal, Round: 2, Position: 1, IsBye: true})

	return games, ctx.Err()
}

// standardSeedOrder returns the classic bracket placement for a power-of-two
// field: [1 8 4 5 2 7 3 6] for size 8, and so on.
func standardSeedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		mirror := 2*len(order) + 1
		next := make([]int, 0, len(order)*2)
		for _, s := range order {
			next = append(next, s, mirror-s)
		}
		order = next
	}
	return order
}

func intRef(v int) *int { return &v }

func strRef(v string) *string { return &v }
