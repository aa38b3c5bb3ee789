package service

import (
	"sort"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
)

// CalculateStandings ranks a pool's members from its completed pool matches.
// Order: wins, point differential, points for, then membership position.
func CalculateStandings(pool bracket.Pool, memberships []bracket.PoolMembership, matches []bracket.Match) []bracket.Standing {
	members := append([]bracket.PoolMembership(nil), memberships...)
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Position < members[j].Position
	})

	var completed []bracket.Match
	for _, m := range matches {
		if m.Type == bracket.PoolMatch && m.PoolID != nil && *m.PoolID == pool.ID && m.Status == bracket.MatchCompleted {
			completed = append(completed, m)
		}
	}

	standings := make([]bracket.Standing, 0, len(members))
	for _, member := range members {
		s := bracket.Standing{Participant: member.Participant, Position: member.Position}
		for i := range completed {
			m := &completed[i]
			slot := m.SlotOf(member.Participant)
			if slot == 0 {
				continue
			}
			s.Played++
			if m.IsWinner(slot) {
				s.Wins++
			} else {
				s.Losses++
			}
			for _, set := range m.SetScores {
				if slot == 1 {
					s.PointsFor += set.Slot1
					s.PointsAgainst += set.Slot2
				} else {
					s.PointsFor += set.Slot2
					s.PointsAgainst += set.Slot1
				}
			}
		}
		s.PointDifferential = s.PointsFor - s.PointsAgainst
		if s.Played > 0 {
			s.WinPercentage = float64(s.Wins) / float64(s.Played)
		}
		standings = append(standings, s)
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.PointDifferential != b.PointDifferential {
			return a.PointDifferential > b.PointDifferential
		}
		if a.PointsFor != b.PointsFor {
			return a.PointsFor > b.PointsFor
		}
		return a.Position < b.Position
	})

	for i := range standings {
		standings[i].Rank = i + 1
		standings[i].Advances = standings[i].Rank <= pool.AdvanceCount
	}
	return standings
}

// IsPoolComplete reports whether the pool has matches and all are completed.
func IsPoolComplete(matches []bracket.Match) bool {
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if m.Status != bracket.MatchCompleted {
			return false
		}
	}
	return true
}
