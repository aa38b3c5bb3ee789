package bracket

import (
	"time"

	"github.com/google/uuid"
)

type PoolStatus string

const (
	PoolPending    PoolStatus = "pending"
	PoolInProgress PoolStatus = "in_progress"
	PoolCompleted  PoolStatus = "completed"
)

const DefaultAdvanceCount = 2

// Pool is a round-robin group. Ordinal is its creation index within the
// category and fixes seeding order.
type Pool struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	Category     string     `db:"category" json:"category"`
	Name         string     `db:"name" json:"name"`
	Ordinal      int        `db:"ordinal" json:"ordinal"`
	Size         int        `db:"size" json:"size"`
	AdvanceCount int        `db:"advance_count" json:"advance_count"`
	Status       PoolStatus `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// PoolMembership positions are seed/display order, never result order.
type PoolMembership struct {
	PoolID      uuid.UUID   `json:"pool_id"`
	Participant Participant `json:"participant"`
	Position    int         `json:"position"`
}

// Standing is derived from completed pool matches and never stored.
type Standing struct {
	Participant       Participant `json:"participant"`
	Position          int         `json:"position"`
	Played            int         `json:"played"`
	Wins              int         `json:"wins"`
	Losses            int         `json:"losses"`
	PointsFor         int         `json:"points_for"`
	PointsAgainst     int         `json:"points_against"`
	PointDifferential int         `json:"point_differential"`
	WinPercentage     float64     `json:"win_percentage"`
	Rank              int         `json:"rank"`
	Advances          bool        `json:"advances"`
}

// Qualifier is a pool finisher seeded into the knockout.
type Qualifier struct {
	Participant Participant `json:"participant"`
	PoolID      uuid.UUID   `json:"pool_id"`
	PoolName    string      `json:"pool_name"`
	PoolRank    int         `json:"pool_rank"`
	Seed        int         `json:"seed"`
}
