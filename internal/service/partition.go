package service

import (
	"sort"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/google/uuid"
)

// Entrant is one resolved participant of a category.
type Entrant struct {
	RegistrationID uuid.UUID           `json:"registration_id"`
	PlayerID       uuid.UUID           `json:"player_id"`
	Participant    bracket.Participant `json:"participant"`
	// Placeholder marks an unpaired player in a team category. Participant is
	// the player until a placeholder team is created for them.
	Placeholder bool `json:"placeholder"`
	// Merged lists further registrations of the same unpaired player in the
	// category; they share the placeholder team.
	Merged []uuid.UUID `json:"merged_registration_ids,omitempty"`
}

type CategoryEntrants struct {
	Category  string    `json:"category"`
	TeamBased bool      `json:"team_based"`
	Entrants  []Entrant `json:"entrants"`
	Eligible  bool      `json:"eligible"`
}

func (c CategoryEntrants) Participants() []bracket.Participant {
	participants := make([]bracket.Participant, len(c.Entrants))
	for i, e := range c.Entrants {
		participants[i] = e.Participant
	}
	return participants
}

func (c CategoryEntrants) Placeholders() int {
	n := 0
	for _, e := range c.Entrants {
		if e.Placeholder {
			n++
		}
	}
	return n
}

// PartitionRegistrations groups confirmed registrations by category, keeping
// registration order inside each category. Partners registered separately
// under one team count once. A participant entered in two categories is
// rejected.
func PartitionRegistrations(registrations []bracket.Registration) ([]CategoryEntrants, error) {
	// Placeholders are keyed per category: an unpaired player may wait for
	// a partner in several team categories at once.
	type entryKey struct {
		participant         bracket.Participant
		placeholderCategory string
	}
	type seenEntry struct {
		category string
		index    int
	}
	byCategory := make(map[string]*CategoryEntrants)
	seen := make(map[entryKey]seenEntry)

	// A player who already plays in a team of a category is never also a
	// placeholder there.
	teamed := make(map[string]map[uuid.UUID]bool)
	for _, r := range registrations {
		if r.Status != bracket.RegistrationConfirmed || r.TeamID == nil {
			continue
		}
		category := r.Category()
		if teamed[category] == nil {
			teamed[category] = make(map[uuid.UUID]bool)
		}
		teamed[category][r.PlayerID] = true
	}

	for _, r := range registrations {
		if r.Status != bracket.RegistrationConfirmed {
			continue
		}

		category := r.Category()
		group, ok := byCategory[category]
		if !ok {
			group = &CategoryEntrants{Category: category, TeamBased: bracket.IsTeamCategory(category)}
			byCategory[category] = group
		}

		entrant := Entrant{RegistrationID: r.ID, PlayerID: r.PlayerID}
		switch {
		case !group.TeamBased:
			entrant.Participant = bracket.PlayerEntry(r.PlayerID)
		case r.TeamID != nil:
			entrant.Participant = bracket.TeamEntry(*r.TeamID)
		case teamed[category][r.PlayerID]:
			continue
		default:
			entrant.Participant = bracket.PlayerEntry(r.PlayerID)
			entrant.Placeholder = true
		}

		key := entryKey{participant: entrant.Participant}
		if entrant.Placeholder {
			key.placeholderCategory = category
		}
		if other, dup := seen[key]; dup {
			if other.category != category {
				return nil, apperr.Validationf("%s is registered in both %q and %q", entrant.Participant, other.category, category)
			}
			if entrant.Placeholder {
				first := &group.Entrants[other.index]
				first.Merged = append(first.Merged, r.ID)
			}
			continue
		}
		seen[key] = seenEntry{category: category, index: len(group.Entrants)}
		group.Entrants = append(group.Entrants, entrant)
	}

	categories := make([]CategoryEntrants, 0, len(byCategory))
	for _, group := range byCategory {
		group.Eligible = len(group.Entrants) >= 2
		categories = append(categories, *group)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Category < categories[j].Category
	})
	return categories, nil
}

// DistributeSnake deals seeded participants into k pools in serpentine
// order: A..K, then K..A, and so on.
func DistributeSnake(participants []bracket.Participant, k int) ([][]bracket.Participant, error) {
	if k < 1 {
		return nil, apperr.Validationf("pool count must be at least 1, got %d", k)
	}
	if len(participants) < 2*k {
		return nil, apperr.Validationf("%d participants cannot fill %d pools of at least 2", len(participants), k)
	}

	pools := make([][]bracket.Participant, k)
	for i, p := range participants {
		lap, offset := i/k, i%k
		idx := offset
		if lap%2 == 1 {
			idx = k - 1 - offset
		}
		pools[idx] = append(pools[idx], p)
	}
	return pools, nil
}

// PoolName returns "Pool A" for 0, "Pool Z" for 25, "Pool AA" for 26.
func PoolName(i int) string {
	var letters []byte
	for n := i + 1; n > 0; n = (n - 1) / 26 {
		letters = append([]byte{byte('A' + (n-1)%26)}, letters...)
	}
	return "Pool " + string(letters)
}
