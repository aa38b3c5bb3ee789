package bracket

import (
	"time"

	"github.com/google/uuid"
)

type HistoryAction string

const (
	ActionStarted   HistoryAction = "started"
	ActionLiveScore HistoryAction = "live_score"
	ActionCompleted HistoryAction = "completed"
	ActionCorrected HistoryAction = "corrected"
	ActionBye       HistoryAction = "bye"
	ActionCancelled HistoryAction = "cancelled"
)

// HistoryEntry is append-only; it outlives the match it describes.
type HistoryEntry struct {
	ID                uuid.UUID     `json:"id"`
	MatchID           uuid.UUID     `json:"match_id"`
	TournamentID      uuid.UUID     `json:"tournament_id"`
	Action            HistoryAction `json:"action"`
	PreviousStatus    MatchStatus   `json:"previous_status"`
	NewStatus         MatchStatus   `json:"new_status"`
	PreviousSetScores []SetScore    `json:"previous_set_scores,omitempty"`
	NewSetScores      []SetScore    `json:"new_set_scores,omitempty"`
	PreviousWinner    *Participant  `json:"previous_winner,omitempty"`
	NewWinner         *Participant  `json:"new_winner,omitempty"`
	ChangedBy         string        `json:"changed_by"`
	CreatedAt         time.Time     `json:"created_at"`
}
