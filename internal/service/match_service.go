package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/live"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/middleware"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/scoring"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/store"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db     *sqlx.DB
	stores *store.Stores
	hub    Broadcaster
}

func NewMatchService(db *sqlx.DB, stores *store.Stores, hub Broadcaster) *MatchService {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	return &MatchService{db: db, stores: stores, hub: hub}
}

type ScoreInput struct {
	SetScores []bracket.SetScore `json:"set_scores"`
	Format    string             `json:"format,omitempty"`
	Rule      string             `json:"rule,omitempty"`
}

type ScoreResult struct {
	Match           *bracket.Match      `json:"match"`
	Winner          bracket.Participant `json:"winner"`
	Summary         string              `json:"summary"`
	Corrected       bool                `json:"corrected"`
	AdvancedMatchID *uuid.UUID          `json:"advanced_match_id,omitempty"`
}

type LiveScoreInput struct {
	SetScores []bracket.SetScore `json:"set_scores"`
	Format    string             `json:"format,omitempty"`
}

func pickName(requested string, stored *string, fallback string) string {
	if requested != "" {
		return requested
	}
	if name := utils.OrZero(stored); name != "" {
		return name
	}
	return fallback
}

func matchFormat(requested string, m *bracket.Match) (scoring.Format, error) {
	f, err := scoring.ParseFormat(pickName(requested, m.Format, scoring.DefaultFormat))
	if err != nil {
		return f, apperr.Wrap(err, apperr.KindValidation, fmt.Sprintf("match format must be one of %v", scoring.FormatNames()))
	}
	return f, nil
}

func matchRule(requested string, m *bracket.Match) (scoring.Rule, error) {
	r, err := scoring.ParseRule(pickName(requested, m.Rule, scoring.DefaultRule))
	if err != nil {
		return r, apperr.Wrap(err, apperr.KindValidation, fmt.Sprintf("scoring rule must be one of %v", scoring.RuleNames()))
	}
	return r, nil
}

func (s *MatchService) getMatch(ctx context.Context, q store.Querier, id uuid.UUID) (*bracket.Match, error) {
	m, err := s.stores.Matches.GetMatch(ctx, q, id)
	if err != nil {
		return nil, notFound(err, "match %s not found", id)
	}
	return m, nil
}

func (s *MatchService) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return s.getMatch(ctx, s.db, id)
}

func (s *MatchService) update(ctx context.Context, tx *sqlx.Tx, m *bracket.Match, expected bracket.MatchStatus) error {
	err := s.stores.Matches.UpdateMatch(ctx, tx, m, expected)
	if errors.Is(err, store.ErrStaleMatch) {
		return apperr.Wrap(err, apperr.KindConflict, fmt.Sprintf("match %s changed while it was being updated, reload and retry", m.ID))
	}
	if err != nil {
		return fmt.Errorf("failed to update match %s: %w", m.ID, err)
	}
	return nil
}

func (s *MatchService) record(ctx context.Context, tx *sqlx.Tx, action bracket.HistoryAction, before, after *bracket.Match) error {
	entry := &bracket.HistoryEntry{
		ID:                uuid.New(),
		MatchID:           after.ID,
		TournamentID:      after.TournamentID,
		Action:            action,
		PreviousStatus:    before.Status,
		NewStatus:         after.Status,
		PreviousSetScores: before.SetScores,
		NewSetScores:      after.SetScores,
		PreviousWinner:    before.Winner,
		NewWinner:         after.Winner,
		ChangedBy:         middleware.Actor(ctx),
	}
	if err := s.stores.Matches.AppendHistory(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to record %s history: %w", action, err)
	}
	return nil
}

// RecordScore decides the winner from the set scores, completes the match and
// moves the winner into the next match. Re-posting a completed match is a
// correction: the scores change, the winner may not.
func (s *MatchService) RecordScore(ctx context.Context, matchID uuid.UUID, input ScoreInput) (*ScoreResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := s.getMatch(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	switch {
	case m.Status == bracket.MatchCancelled:
		return nil, apperr.Preconditionf("match %s is cancelled", m.ID)
	case m.IsBye:
		return nil, apperr.Preconditionf("match %s is a bye and has no score", m.ID)
	case !m.Ready():
		return nil, apperr.Preconditionf("match %s is still waiting for its participants", m.ID)
	}

	format, err := matchFormat(input.Format, m)
	if err != nil {
		return nil, err
	}
	rule, err := matchRule(input.Rule, m)
	if err != nil {
		return nil, err
	}
	slot, err := scoring.Winner(input.SetScores, format, rule)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, "invalid set scores")
	}
	winner := *m.Slot(slot)

	before := *m
	corrected := m.Status == bracket.MatchCompleted
	if corrected && !bracket.SameAs(m.Winner, &winner) {
		return nil, apperr.Preconditionf("correction would change the winner of match %s; delete and regenerate fixtures instead", m.ID)
	}
	if m.Status, err = m.Status.Transition(bracket.MatchCompleted); err != nil {
		return nil, apperr.Wrap(err, apperr.KindPrecondition, "cannot complete match")
	}

	g1, g2 := scoring.GamesWon(input.SetScores, rule)
	m.SetScores = input.SetScores
	m.Score1, m.Score2 = &g1, &g2
	m.Format, m.Rule = &format.Name, &rule.Name
	m.Winner = &winner
	if err := s.update(ctx, tx, m, before.Status); err != nil {
		return nil, err
	}

	action := bracket.ActionCompleted
	if corrected {
		action = bracket.ActionCorrected
	}
	if err := s.record(ctx, tx, action, &before, m); err != nil {
		return nil, err
	}

	result := &ScoreResult{Match: m, Winner: winner, Summary: scoring.Summary(m.SetScores), Corrected: corrected}
	touched := []bracket.Match{*m}
	if !corrected {
		settled, err := s.settleNext(ctx, tx, m)
		if err != nil {
			return nil, err
		}
		if len(settled) > 0 {
			result.AdvancedMatchID = &settled[0].ID
		}
		touched = append(touched, settled...)

		if err := s.afterTerminal(ctx, tx, touched); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("match score recorded", "match", m.ID, "action", action, "score", result.Summary, "winner", winner.String())
	s.announce(m.TournamentID, touched)
	return result, nil
}

// settleNext applies a finished match to the match it feeds, then keeps
// going while that match itself gets settled as a bye or cancelled.
func (s *MatchService) settleNext(ctx context.Context, tx *sqlx.Tx, from *bracket.Match) ([]bracket.Match, error) {
	var settled []bracket.Match
	for from.NextMatchID != nil {
		next, err := s.stores.Matches.GetMatch(ctx, tx, *from.NextMatchID)
		if err != nil {
			return nil, fmt.Errorf("failed to get next match: %w", err)
		}
		if next.Status != bracket.MatchPending {
			slog.Warn("next match no longer pending, winner not advanced", "match", from.ID, "next", next.ID, "status", next.Status)
			break
		}

		before := *next
		if from.Status == bracket.MatchCompleted && from.Winner != nil {
			winner := *from.Winner
			next.SetSlot(bracket.NextSlot(from.BracketPosition), &winner)
		}

		feeders, err := s.stores.Matches.GetFeeders(ctx, tx, next.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get feeders of %s: %w", next.ID, err)
		}
		var live []bracket.Match
		for _, f := range feeders {
			if f.Status != bracket.MatchCancelled {
				live = append(live, f)
			}
		}

		var action bracket.HistoryAction
		switch {
		case len(live) == 0:
			next.Status = bracket.MatchCancelled
			action = bracket.ActionCancelled
		case len(live) == 1 && live[0].Status == bracket.MatchCompleted && live[0].Winner != nil:
			next.CompleteAsBye(*live[0].Winner)
			action = bracket.ActionBye
		}

		if err := s.update(ctx, tx, next, bracket.MatchPending); err != nil {
			return nil, err
		}
		settled = append(settled, *next)
		if action == "" {
			break
		}
		if err := s.record(ctx, tx, action, &before, next); err != nil {
			return nil, err
		}
		from = next
	}
	return settled, nil
}

// afterTerminal rolls finished matches up into pool and tournament status.
func (s *MatchService) afterTerminal(ctx context.Context, tx *sqlx.Tx, touched []bracket.Match) error {
	finalDone := false
	for _, m := range touched {
		if m.PoolID != nil {
			if err := s.refreshPoolStatus(ctx, tx, *m.PoolID); err != nil {
				return err
			}
		}
		if m.Type == bracket.KnockoutMatch && m.NextMatchID == nil &&
			(m.Status == bracket.MatchCompleted || m.Status == bracket.MatchCancelled) {
			finalDone = true
		}
	}
	if !finalDone {
		return nil
	}

	tournamentID := touched[0].TournamentID
	unfinished, err := s.stores.Matches.CountUnfinished(ctx, tx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to count unfinished matches: %w", err)
	}
	if unfinished > 0 {
		return nil
	}
	if err := s.stores.Tournaments.UpdateTournamentStatus(ctx, tx, tournamentID, bracket.TournamentCompleted); err != nil {
		return fmt.Errorf("failed to complete tournament: %w", err)
	}
	slog.Info("tournament completed", "tournament", tournamentID)
	return nil
}

func (s *MatchService) refreshPoolStatus(ctx context.Context, tx *sqlx.Tx, poolID uuid.UUID) error {
	pool, err := s.stores.Fixtures.GetPool(ctx, tx, poolID)
	if err != nil {
		return fmt.Errorf("failed to get pool: %w", err)
	}
	matches, err := s.stores.Matches.GetPoolMatches(ctx, tx, poolID)
	if err != nil {
		return fmt.Errorf("failed to get pool matches: %w", err)
	}

	status := bracket.PoolPending
	if IsPoolComplete(matches) {
		status = bracket.PoolCompleted
	} else {
		for _, m := range matches {
			if m.Status != bracket.MatchPending {
				status = bracket.PoolInProgress
				break
			}
		}
	}
	if status == pool.Status {
		return nil
	}
	if err := s.stores.Fixtures.UpdatePoolStatus(ctx, tx, poolID, status); err != nil {
		return fmt.Errorf("failed to update pool status: %w", err)
	}
	return nil
}

func (s *MatchService) StartMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := s.getMatch(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Ready() {
		return nil, apperr.Preconditionf("match %s is still waiting for its participants", m.ID)
	}
	before := *m
	if m.Status, err = m.Status.Transition(bracket.MatchInProgress); err != nil {
		return nil, apperr.Wrap(err, apperr.KindPrecondition, "cannot start match")
	}
	if err := s.update(ctx, tx, m, before.Status); err != nil {
		return nil, err
	}
	if err := s.record(ctx, tx, bracket.ActionStarted, &before, m); err != nil {
		return nil, err
	}
	if m.PoolID != nil {
		if err := s.refreshPoolStatus(ctx, tx, *m.PoolID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.announce(m.TournamentID, []bracket.Match{*m})
	return m, nil
}

// UpdateLiveScore stores the running score of an in-progress match. The last
// game may be unfinished and no winner is decided.
func (s *MatchService) UpdateLiveScore(ctx context.Context, matchID uuid.UUID, input LiveScoreInput) (*bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := s.getMatch(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != bracket.MatchInProgress {
		return nil, apperr.Preconditionf("match %s is %s, live scores need a started match", m.ID, m.Status)
	}
	format, err := matchFormat(input.Format, m)
	if err != nil {
		return nil, err
	}
	rule, err := matchRule("", m)
	if err != nil {
		return nil, err
	}
	if err := scoring.ValidateLive(input.SetScores, format); err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, "invalid live score")
	}

	before := *m
	g1, g2 := scoring.GamesWon(input.SetScores, rule)
	m.SetScores = input.SetScores
	m.Score1, m.Score2 = &g1, &g2
	m.Format = &format.Name
	if err := s.update(ctx, tx, m, bracket.MatchInProgress); err != nil {
		return nil, err
	}
	if err := s.record(ctx, tx, bracket.ActionLiveScore, &before, m); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.announce(m.TournamentID, []bracket.Match{*m})
	return m, nil
}

// CancelMatch withdraws a knockout match. Its next match is settled as if
// this feeder never existed.
func (s *MatchService) CancelMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := s.getMatch(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Type == bracket.PoolMatch {
		return nil, apperr.Preconditionf("pool match %s cannot be cancelled, its pool would never complete", m.ID)
	}
	before := *m
	if m.Status, err = m.Status.Transition(bracket.MatchCancelled); err != nil {
		return nil, apperr.Wrap(err, apperr.KindPrecondition, "cannot cancel match")
	}
	if err := s.update(ctx, tx, m, before.Status); err != nil {
		return nil, err
	}
	if err := s.record(ctx, tx, bracket.ActionCancelled, &before, m); err != nil {
		return nil, err
	}

	settled, err := s.settleNext(ctx, tx, m)
	if err != nil {
		return nil, err
	}
	touched := append([]bracket.Match{*m}, settled...)
	if err := s.afterTerminal(ctx, tx, touched); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("match cancelled", "match", m.ID, "settled", len(settled))
	s.announce(m.TournamentID, touched)
	return m, nil
}

// History lists a match's changes oldest first. It still answers for
// matches removed by a fixture deletion.
func (s *MatchService) History(ctx context.Context, matchID uuid.UUID) ([]bracket.HistoryEntry, error) {
	entries, err := s.stores.Matches.GetHistory(ctx, s.db, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	if len(entries) == 0 {
		if _, err := s.getMatch(ctx, s.db, matchID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *MatchService) announce(tournamentID uuid.UUID, matches []bracket.Match) {
	for _, m := range matches {
		s.hub.Broadcast(tournamentID.String(), live.Event{Type: live.EventMatchUpdated, Payload: m})
	}
}
