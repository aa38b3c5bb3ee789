package bracket

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationWithdrawn RegistrationStatus = "withdrawn"
)

const (
	CategorySingles = "singles"
	CategoryDoubles = "doubles"
	CategoryMixed   = "mixed"
)

type Registration struct {
	ID           uuid.UUID          `json:"id"`
	TournamentID uuid.UUID          `json:"tournament_id"`
	PlayerID     uuid.UUID          `json:"player_id"`
	TeamID       *uuid.UUID         `json:"team_id,omitempty"`
	Status       RegistrationStatus `json:"status"`
	Metadata     map[string]string  `json:"metadata"`
	Seed         int                `json:"seed"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Category reads the free-form category tag, defaulting to singles.
func (r Registration) Category() string {
	return NormalizeCategory(r.Metadata["category"])
}

func NormalizeCategory(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return CategorySingles
	}
	return name
}

// IsTeamCategory reports whether participants of the category are pairs.
func IsTeamCategory(category string) bool {
	category = NormalizeCategory(category)
	return category == CategoryDoubles || category == CategoryMixed || strings.Contains(category, CategoryDoubles)
}
