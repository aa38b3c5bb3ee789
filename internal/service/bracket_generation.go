package service

import (
	"math"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/google/uuid"
)

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

func calcTotalRounds(count int) int {
	size := calcBracketSize(count)
	if size == 0 {
		return 0
	}
	return int(math.Log2(float64(size)))
}

// GenerateSingleElimBracket builds a knockout for seeded participants.
// Round 1 pairs consecutive seeds; an odd last seed gets a completed bye.
// Later rounds are empty placeholders linked position p -> p/2.
// The result is ordered final first, so every match follows its next match.
func GenerateSingleElimBracket(tournamentID uuid.UUID, category string, participants []bracket.Participant) ([]bracket.Match, error) {
	if len(participants) < 2 {
		return nil, apperr.Validationf("a knockout needs at least 2 participants, got %d", len(participants))
	}

	totalRounds := calcTotalRounds(len(participants))
	round1Count := (len(participants) + 1) / 2

	var matches []bracket.Match
	rounds := make([][]int, totalRounds+1)

	// Significantly easier to start from the last round and work backwards
	var nextRoundMatchIDs []uuid.UUID
	for r := totalRounds; r >= 1; r-- {
		matchesInCurrentRound := int(math.Pow(2, float64(totalRounds-r)))
		if r == 1 {
			matchesInCurrentRound = round1Count
		}
		currentRoundMatchIDs := make([]uuid.UUID, matchesInCurrentRound)

		for pos := 0; pos < matchesInCurrentRound; pos++ {
			m := bracket.Match{
				ID:              uuid.New(),
				TournamentID:    tournamentID,
				Category:        category,
				Type:            bracket.KnockoutMatch,
				Round:           r,
				BracketPosition: pos,
				Status:          bracket.MatchPending,
			}
			if r < totalRounds {
				parentID := nextRoundMatchIDs[pos/2]
				m.NextMatchID = &parentID
			}
			if r == 1 {
				slot1 := participants[2*pos]
				m.Slot1 = &slot1
				if 2*pos+1 < len(participants) {
					slot2 := participants[2*pos+1]
					m.Slot2 = &slot2
				} else {
					m.CompleteAsBye(slot1)
				}
			}

			rounds[r] = append(rounds[r], len(matches))
			matches = append(matches, m)
			currentRoundMatchIDs[pos] = m.ID
		}
		nextRoundMatchIDs = currentRoundMatchIDs
	}

	settleByes(matches, rounds)
	return matches, nil
}

// settleByes resolves, round by round, everything that is already decided at
// creation: bye winners move forward, a match fed only by a bye becomes a bye
// itself, and a match that no feeder can ever reach is cancelled.
func settleByes(matches []bracket.Match, rounds [][]int) {
	for r := 2; r < len(rounds); r++ {
		prev := rounds[r-1]
		for pos, idx := range rounds[r] {
			next := &matches[idx]

			var live []*bracket.Match
			for _, feederPos := range []int{2 * pos, 2*pos + 1} {
				if feederPos >= len(prev) {
					continue
				}
				feeder := &matches[prev[feederPos]]
				if feeder.Status == bracket.MatchCancelled {
					continue
				}
				live = append(live, feeder)
				if feeder.Status == bracket.MatchCompleted && feeder.Winner != nil {
					winner := *feeder.Winner
					next.SetSlot(bracket.NextSlot(feeder.BracketPosition), &winner)
				}
			}

			switch {
			case len(live) == 0:
				next.Status = bracket.MatchCancelled
			case len(live) == 1 && live[0].Status == bracket.MatchCompleted:
				next.CompleteAsBye(*live[0].Winner)
			}
		}
	}
}
