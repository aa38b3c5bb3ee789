package service

import (
	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/google/uuid"
)

// PositionCounter hands out bracket positions for pool matches. One counter
// is threaded through a generation call so positions stay unique across all
// pools of a tournament.
type PositionCounter struct {
	next int
}

func NewPositionCounter(start int) *PositionCounter {
	return &PositionCounter{next: start}
}

func (c *PositionCounter) Next() int {
	pos := c.next
	c.next++
	return pos
}

// GenerateRoundRobin pairs every participant with every later one, in input
// order. Fewer than two participants yields no matches.
func GenerateRoundRobin(pool bracket.Pool, participants []bracket.Participant, positions *PositionCounter) []bracket.Match {
	if len(participants) < 2 {
		return nil
	}

	matches := make([]bracket.Match, 0, len(participants)*(len(participants)-1)/2)
	poolID := pool.ID
	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			slot1, slot2 := participants[i], participants[j]
			matches = append(matches, bracket.Match{
				ID:              uuid.New(),
				TournamentID:    pool.TournamentID,
				Category:        pool.Category,
				PoolID:          &poolID,
				Type:            bracket.PoolMatch,
				Round:           1,
				BracketPosition: positions.Next(),
				Slot1:           &slot1,
				Slot2:           &slot2,
				Status:          bracket.MatchPending,
			})
		}
	}
	return matches
}
