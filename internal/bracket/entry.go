package bracket

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantKind string

const (
	PlayerParticipant ParticipantKind = "player"
	TeamParticipant   ParticipantKind = "team"
)

// Participant is whatever occupies a match slot: a single player or a team.
// Scheduling code never looks inside a team.
type Participant struct {
	ID   uuid.UUID       `json:"id"`
	Kind ParticipantKind `json:"kind"`
}

func PlayerEntry(id uuid.UUID) Participant {
	return Participant{ID: id, Kind: PlayerParticipant}
}

func TeamEntry(id uuid.UUID) Participant {
	return Participant{ID: id, Kind: TeamParticipant}
}

func (p Participant) IsTeam() bool {
	return p.Kind == TeamParticipant
}

func (p Participant) String() string {
	return string(p.Kind) + ":" + p.ID.String()
}

// SameAs is nil-safe equality for optional slots.
func SameAs(a, b *Participant) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type Player struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Team is a doubles pair. Player2ID stays nil until a partner is assigned.
type Team struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	Player1ID    uuid.UUID  `db:"player_1_id" json:"player_1_id"`
	Player2ID    *uuid.UUID `db:"player_2_id" json:"player_2_id,omitempty"`
	Name         string     `db:"name" json:"name"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

func (t Team) IsPlaceholder() bool {
	return t.Player2ID == nil
}
