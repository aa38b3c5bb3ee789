package service

import (
	"sort"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
)

// PoolStandings is one pool with its computed standings.
type PoolStandings struct {
	Pool      bracket.Pool       `json:"pool"`
	Standings []bracket.Standing `json:"standings"`
	Complete  bool               `json:"complete"`
}

// SelectQualifiers takes the top AdvanceCount finishers of each pool and
// interleaves them by pool rank: every pool winner first, in pool order,
// then every runner-up, and so on.
func SelectQualifiers(results []PoolStandings) ([]bracket.Qualifier, error) {
	if len(results) == 0 {
		return nil, apperr.NotFoundf("no pools to select qualifiers from")
	}

	pools := append([]PoolStandings(nil), results...)
	sort.SliceStable(pools, func(i, j int) bool {
		a, b := pools[i].Pool, pools[j].Pool
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		return a.Name < b.Name
	})

	var incomplete []string
	for _, r := range pools {
		if !r.Complete {
			incomplete = append(incomplete, r.Pool.Name)
		}
	}
	if len(incomplete) > 0 {
		return nil, apperr.Preconditionf("pools not complete: %d of %d still have unfinished matches %v", len(incomplete), len(pools), incomplete)
	}

	perPool := make([][]bracket.Qualifier, len(pools))
	for i, r := range pools {
		take := min(r.Pool.AdvanceCount, len(r.Standings))
		for _, s := range r.Standings[:take] {
			perPool[i] = append(perPool[i], bracket.Qualifier{
				Participant: s.Participant,
				PoolID:      r.Pool.ID,
				PoolName:    r.Pool.Name,
				PoolRank:    s.Rank,
			})
		}
	}

	var qualifiers []bracket.Qualifier
	rankFound := true
	for rank := 0; rankFound; rank++ {
		rankFound = false
		for _, group := range perPool {
			if rank >= len(group) {
				continue
			}
			rankFound = true
			q := group[rank]
			q.Seed = len(qualifiers) + 1
			qualifiers = append(qualifiers, q)
		}
	}

	if len(qualifiers) < 2 {
		return nil, apperr.Validationf("a knockout needs at least 2 qualifiers, got %d", len(qualifiers))
	}
	return qualifiers, nil
}

func qualifierParticipants(qualifiers []bracket.Qualifier) []bracket.Participant {
	participants := make([]bracket.Participant, len(qualifiers))
	for i, q := range qualifiers {
		participants[i] = q.Participant
	}
	return participants
}
