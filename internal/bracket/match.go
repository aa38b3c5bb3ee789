package bracket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
)

type MatchType string

const (
	PoolMatch     MatchType = "pool"
	KnockoutMatch MatchType = "knockout"
)

// Legal status moves. completed -> completed is a score correction.
var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchPending:    {MatchInProgress, MatchCompleted, MatchCancelled},
	MatchInProgress: {MatchCompleted, MatchCancelled},
	MatchCompleted:  {MatchCompleted},
}

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchPending, MatchInProgress, MatchCompleted, MatchCancelled:
		return true
	}
	return false
}

func (s MatchStatus) CanTransition(to MatchStatus) bool {
	for _, next := range matchTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns an error instead of silently writing an illegal status.
func (s MatchStatus) Transition(to MatchStatus) (MatchStatus, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("illegal match status transition %s -> %s", s, to)
	}
	return to, nil
}

// SetScore is one game of a match, keyed by slot rather than by server.
type SetScore struct {
	Slot1 int `json:"slot1"`
	Slot2 int `json:"slot2"`
}

type Match struct {
	ID           uuid.UUID  `json:"id"`
	TournamentID uuid.UUID  `json:"tournament_id"`
	Category     string     `json:"category"`
	PoolID       *uuid.UUID `json:"pool_id,omitempty"`
	Type         MatchType  `json:"match_type"`

	Round           int `json:"round"`
	BracketPosition int `json:"bracket_position"`

	Slot1 *Participant `json:"slot1,omitempty"`
	Slot2 *Participant `json:"slot2,omitempty"`

	Score1    *int       `json:"score1,omitempty"`
	Score2    *int       `json:"score2,omitempty"`
	SetScores []SetScore `json:"set_scores,omitempty"`
	Format    *string    `json:"format,omitempty"`
	Rule      *string    `json:"rule,omitempty"`

	Status      MatchStatus  `json:"status"`
	Winner      *Participant `json:"winner,omitempty"`
	NextMatchID *uuid.UUID   `json:"next_match_id,omitempty"`
	IsBye       bool         `json:"is_bye"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Match) Slot(slot int) *Participant {
	switch slot {
	case 1:
		return m.Slot1
	case 2:
		return m.Slot2
	}
	return nil
}

func (m *Match) SetSlot(slot int, p *Participant) {
	switch slot {
	case 1:
		m.Slot1 = p
	case 2:
		m.Slot2 = p
	}
}

// SlotOf returns 1 or 2 for a participant in the match, 0 otherwise.
func (m *Match) SlotOf(p Participant) int {
	if m.Slot1 != nil && *m.Slot1 == p {
		return 1
	}
	if m.Slot2 != nil && *m.Slot2 == p {
		return 2
	}
	return 0
}

func (m *Match) Involves(p Participant) bool {
	return m.SlotOf(p) != 0
}

func (m *Match) IsWinner(slot int) bool {
	return m.Status == MatchCompleted && m.Winner != nil && m.Slot(slot) != nil && *m.Slot(slot) == *m.Winner
}

func (m *Match) IsLoser(slot int) bool {
	return m.Status == MatchCompleted && m.Winner != nil && m.Slot(slot) != nil && *m.Slot(slot) != *m.Winner
}

// Ready reports whether both sides are known and the match can be played.
func (m *Match) Ready() bool {
	return m.Slot1 != nil && m.Slot2 != nil
}

// CompleteAsBye finishes a match that only ever gets one participant.
func (m *Match) CompleteAsBye(p Participant) {
	m.Status = MatchCompleted
	m.IsBye = true
	winner := p
	m.Winner = &winner
}

// NextSlot is the slot this match's winner takes in NextMatchID:
// even bracket positions feed slot 1, odd positions feed slot 2.
func NextSlot(bracketPosition int) int {
	if bracketPosition%2 == 0 {
		return 1
	}
	return 2
}
