package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

// matchRow is the table shape of a match: each slot is a nullable
// player/team column pair.
type matchRow struct {
	ID              uuid.UUID           `db:"id"`
	TournamentID    uuid.UUID           `db:"tournament_id"`
	Category        string              `db:"category"`
	PoolID          *uuid.UUID          `db:"pool_id"`
	MatchType       bracket.MatchType   `db:"match_type"`
	Round           int                 `db:"round"`
	BracketPosition int                 `db:"bracket_position"`
	Player1ID       *uuid.UUID          `db:"player_1_id"`
	Team1ID         *uuid.UUID          `db:"team_1_id"`
	Player2ID       *uuid.UUID          `db:"player_2_id"`
	Team2ID         *uuid.UUID          `db:"team_2_id"`
	Score1          *int                `db:"score_1"`
	Score2          *int                `db:"score_2"`
	SetScores       *string             `db:"set_scores"`
	ScoreFormat     *string             `db:"score_format"`
	ScoreRule       *string             `db:"score_rule"`
	Status          bracket.MatchStatus `db:"status"`
	WinnerPlayerID  *uuid.UUID          `db:"winner_player_id"`
	WinnerTeamID    *uuid.UUID          `db:"winner_team_id"`
	NextMatchID     *uuid.UUID          `db:"next_match_id"`
	IsBye           bool                `db:"is_bye"`
	CreatedAt       time.Time           `db:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at"`
}

const matchColumns = `id, tournament_id, category, pool_id, match_type, round, bracket_position,
	player_1_id, team_1_id, player_2_id, team_2_id, score_1, score_2, set_scores, score_format, score_rule,
	status, winner_player_id, winner_team_id, next_match_id, is_bye, created_at, updated_at`

func participantColumns(p *bracket.Participant) (player, team *uuid.UUID) {
	if p == nil {
		return nil, nil
	}
	id := p.ID
	if p.IsTeam() {
		return nil, &id
	}
	return &id, nil
}

func participantFromColumns(player, team *uuid.UUID) *bracket.Participant {
	switch {
	case team != nil:
		p := bracket.TeamEntry(*team)
		return &p
	case player != nil:
		p := bracket.PlayerEntry(*player)
		return &p
	}
	return nil
}

func encodeSetScores(sets []bracket.SetScore) (*string, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(sets)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

func decodeSetScores(raw *string) ([]bracket.SetScore, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var sets []bracket.SetScore
	if err := json.Unmarshal([]byte(*raw), &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

func toMatchRow(m *bracket.Match) (matchRow, error) {
	sets, err := encodeSetScores(m.SetScores)
	if err != nil {
		return matchRow{}, fmt.Errorf("failed to encode set scores for match %s: %w", m.ID, err)
	}
	row := matchRow{
		ID:              m.ID,
		TournamentID:    m.TournamentID,
		Category:        m.Category,
		PoolID:          m.PoolID,
		MatchType:       m.Type,
		Round:           m.Round,
		BracketPosition: m.BracketPosition,
		Score1:          m.Score1,
		Score2:          m.Score2,
		SetScores:       sets,
		ScoreFormat:     m.Format,
		ScoreRule:       m.Rule,
		Status:          m.Status,
		NextMatchID:     m.NextMatchID,
		IsBye:           m.IsBye,
	}
	row.Player1ID, row.Team1ID = participantColumns(m.Slot1)
	row.Player2ID, row.Team2ID = participantColumns(m.Slot2)
	row.WinnerPlayerID, row.WinnerTeamID = participantColumns(m.Winner)
	return row, nil
}

func (r matchRow) toMatch() (bracket.Match, error) {
	sets, err := decodeSetScores(r.SetScores)
	if err != nil {
		return bracket.Match{}, fmt.Errorf("match %s has malformed set scores: %w", r.ID, err)
	}
	return bracket.Match{
		ID:              r.ID,
		TournamentID:    r.TournamentID,
		Category:        r.Category,
		PoolID:          r.PoolID,
		Type:            r.MatchType,
		Round:           r.Round,
		BracketPosition: r.BracketPosition,
		Slot1:           participantFromColumns(r.Player1ID, r.Team1ID),
		Slot2:           participantFromColumns(r.Player2ID, r.Team2ID),
		Score1:          r.Score1,
		Score2:          r.Score2,
		SetScores:       sets,
		Format:          r.ScoreFormat,
		Rule:            r.ScoreRule,
		Status:          r.Status,
		Winner:          participantFromColumns(r.WinnerPlayerID, r.WinnerTeamID),
		NextMatchID:     r.NextMatchID,
		IsBye:           r.IsBye,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

func (s *MatchStore) selectMatches(ctx context.Context, q Querier, query string, args ...any) ([]bracket.Match, error) {
	var rows []matchRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	matches := make([]bracket.Match, 0, len(rows))
	for _, row := range rows {
		m, err := row.toMatch()
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// CreateMatches inserts in slice order, so a match must come after the match
// its NextMatchID points at.
func (s *MatchStore) CreateMatches(ctx context.Context, q Querier, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	rows := make([]matchRow, len(matches))
	for i := range matches {
		row, err := toMatchRow(&matches[i])
		if err != nil {
			return err
		}
		rows[i] = row
	}
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO matches (id, tournament_id, category, pool_id, match_type, round, bracket_position,
		player_1_id, team_1_id, player_2_id, team_2_id, score_1, score_2, set_scores, score_format, score_rule,
		status, winner_player_id, winner_team_id, next_match_id, is_bye)
		VALUES (:id, :tournament_id, :category, :pool_id, :match_type, :round, :bracket_position,
		:player_1_id, :team_1_id, :player_2_id, :team_2_id, :score_1, :score_2, :set_scores, :score_format, :score_rule,
		:status, :winner_player_id, :winner_team_id, :next_match_id, :is_bye)`, rows)
	return err
}

func (s *MatchStore) GetMatch(ctx context.Context, q Querier, id uuid.UUID) (*bracket.Match, error) {
	var row matchRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind("SELECT "+matchColumns+" FROM matches WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	m, err := row.toMatch()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MatchStore) GetMatches(ctx context.Context, q Querier, tournamentID uuid.UUID) ([]bracket.Match, error) {
	return s.selectMatches(ctx, q, "SELECT "+matchColumns+` FROM matches WHERE tournament_id = ?
		ORDER BY category ASC, match_type DESC, round ASC, bracket_position ASC`, tournamentID)
}

func (s *MatchStore) GetPoolMatches(ctx context.Context, q Querier, poolID uuid.UUID) ([]bracket.Match, error) {
	return s.selectMatches(ctx, q, "SELECT "+matchColumns+" FROM matches WHERE pool_id = ? ORDER BY bracket_position ASC", poolID)
}

func (s *MatchStore) GetCategoryMatches(ctx context.Context, q Querier, tournamentID uuid.UUID, category string, matchType bracket.MatchType) ([]bracket.Match, error) {
	return s.selectMatches(ctx, q, "SELECT "+matchColumns+` FROM matches
		WHERE tournament_id = ? AND category = ? AND match_type = ?
		ORDER BY round ASC, bracket_position ASC`, tournamentID, category, matchType)
}

// GetFeeders returns the matches whose winners advance into matchID.
func (s *MatchStore) GetFeeders(ctx context.Context, q Querier, matchID uuid.UUID) ([]bracket.Match, error) {
	return s.selectMatches(ctx, q, "SELECT "+matchColumns+" FROM matches WHERE next_match_id = ? ORDER BY bracket_position ASC", matchID)
}

// MaxPoolPosition returns -1 when the tournament has no pool matches yet.
func (s *MatchStore) MaxPoolPosition(ctx context.Context, q Querier, tournamentID uuid.UUID) (int, error) {
	var pos int
	err := sqlx.GetContext(ctx, q, &pos, q.Rebind(`SELECT COALESCE(MAX(bracket_position), -1) FROM matches
		WHERE tournament_id = ? AND match_type = ?`), tournamentID, bracket.PoolMatch)
	return pos, err
}

func (s *MatchStore) CountUnfinished(ctx context.Context, q Querier, tournamentID uuid.UUID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(`SELECT COUNT(*) FROM matches
		WHERE tournament_id = ? AND status NOT IN (?, ?)`), tournamentID, bracket.MatchCompleted, bracket.MatchCancelled)
	return n, err
}

// UpdateMatch writes the mutable columns of m only if the stored status is
// still expected. Zero affected rows means someone else moved the match first.
func (s *MatchStore) UpdateMatch(ctx context.Context, q Querier, m *bracket.Match, expected bracket.MatchStatus) error {
	row, err := toMatchRow(m)
	if err != nil {
		return err
	}
	result, err := q.ExecContext(ctx, q.Rebind(`UPDATE matches SET
		player_1_id = ?, team_1_id = ?, player_2_id = ?, team_2_id = ?,
		score_1 = ?, score_2 = ?, set_scores = ?, score_format = ?, score_rule = ?,
		status = ?, winner_player_id = ?, winner_team_id = ?, is_bye = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`),
		row.Player1ID, row.Team1ID, row.Player2ID, row.Team2ID,
		row.Score1, row.Score2, row.SetScores, row.ScoreFormat, row.ScoreRule,
		row.Status, row.WinnerPlayerID, row.WinnerTeamID, row.IsBye,
		row.ID, expected)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrStaleMatch)
}

type historyRow struct {
	ID                uuid.UUID             `db:"id"`
	MatchID           uuid.UUID             `db:"match_id"`
	TournamentID      uuid.UUID             `db:"tournament_id"`
	Action            bracket.HistoryAction `db:"action"`
	PreviousStatus    bracket.MatchStatus   `db:"previous_status"`
	NewStatus         bracket.MatchStatus   `db:"new_status"`
	PreviousSetScores *string               `db:"previous_set_scores"`
	NewSetScores      *string               `db:"new_set_scores"`
	PreviousWinner    *string               `db:"previous_winner"`
	NewWinner         *string               `db:"new_winner"`
	ChangedBy         string                `db:"changed_by"`
	CreatedAt         time.Time             `db:"created_at"`
}

func encodeWinner(p *bracket.Participant) (*string, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

func decodeWinner(raw *string) (*bracket.Participant, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var p bracket.Participant
	if err := json.Unmarshal([]byte(*raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MatchStore) AppendHistory(ctx context.Context, q Querier, entry *bracket.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	row := historyRow{
		ID:             entry.ID,
		MatchID:        entry.MatchID,
		TournamentID:   entry.TournamentID,
		Action:         entry.Action,
		PreviousStatus: entry.PreviousStatus,
		NewStatus:      entry.NewStatus,
		ChangedBy:      entry.ChangedBy,
		CreatedAt:      entry.CreatedAt,
	}
	var err error
	if row.PreviousSetScores, err = encodeSetScores(entry.PreviousSetScores); err != nil {
		return err
	}
	if row.NewSetScores, err = encodeSetScores(entry.NewSetScores); err != nil {
		return err
	}
	if row.PreviousWinner, err = encodeWinner(entry.PreviousWinner); err != nil {
		return err
	}
	if row.NewWinner, err = encodeWinner(entry.NewWinner); err != nil {
		return err
	}

	_, err = sqlx.NamedExecContext(ctx, q, `INSERT INTO match_history (id, match_id, tournament_id, action, previous_status, new_status,
		previous_set_scores, new_set_scores, previous_winner, new_winner, changed_by, created_at)
		VALUES (:id, :match_id, :tournament_id, :action, :previous_status, :new_status,
		:previous_set_scores, :new_set_scores, :previous_winner, :new_winner, :changed_by, :created_at)`, row)
	return err
}

// GetHistory lists entries oldest first. Entries for deleted matches are kept.
func (s *MatchStore) GetHistory(ctx context.Context, q Querier, matchID uuid.UUID) ([]bracket.HistoryEntry, error) {
	var rows []historyRow
	err := sqlx.SelectContext(ctx, q, &rows, q.Rebind("SELECT * FROM match_history WHERE match_id = ? ORDER BY created_at ASC, id ASC"), matchID)
	if err != nil {
		return nil, err
	}

	entries := make([]bracket.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := bracket.HistoryEntry{
			ID:             row.ID,
			MatchID:        row.MatchID,
			TournamentID:   row.TournamentID,
			Action:         row.Action,
			PreviousStatus: row.PreviousStatus,
			NewStatus:      row.NewStatus,
			ChangedBy:      row.ChangedBy,
			CreatedAt:      row.CreatedAt,
		}
		if entry.PreviousSetScores, err = decodeSetScores(row.PreviousSetScores); err != nil {
			return nil, err
		}
		if entry.NewSetScores, err = decodeSetScores(row.NewSetScores); err != nil {
			return nil, err
		}
		if entry.PreviousWinner, err = decodeWinner(row.PreviousWinner); err != nil {
			return nil, err
		}
		if entry.NewWinner, err = decodeWinner(row.NewWinner); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
