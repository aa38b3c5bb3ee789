package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Fixture stages recorded in fixture_sets.
const (
	StagePool     = "pool"
	StageKnockout = "knockout"
)

type FixtureStore struct {
	db *sqlx.DB
}

func NewFixtureStore(db *sqlx.DB) *FixtureStore {
	return &FixtureStore{db: db}
}

type membershipRow struct {
	ID       uuid.UUID  `db:"id"`
	PoolID   uuid.UUID  `db:"pool_id"`
	PlayerID *uuid.UUID `db:"player_id"`
	TeamID   *uuid.UUID `db:"team_id"`
	Position int        `db:"position"`
}

func (s *FixtureStore) CreatePools(ctx context.Context, q Querier, pools []bracket.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO pools (id, tournament_id, category, name, ordinal, size, advance_count, status)
		VALUES (:id, :tournament_id, :category, :name, :ordinal, :size, :advance_count, :status)`, pools)
	return err
}

func (s *FixtureStore) CreateMemberships(ctx context.Context, q Querier, memberships []bracket.PoolMembership) error {
	if len(memberships) == 0 {
		return nil
	}
	rows := make([]membershipRow, len(memberships))
	for i, m := range memberships {
		p := m.Participant
		rows[i] = membershipRow{ID: uuid.New(), PoolID: m.PoolID, Position: m.Position}
		rows[i].PlayerID, rows[i].TeamID = participantColumns(&p)
	}
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO pool_memberships (id, pool_id, player_id, team_id, position)
		VALUES (:id, :pool_id, :player_id, :team_id, :position)`, rows)
	return err
}

func (s *FixtureStore) GetPool(ctx context.Context, q Querier, id uuid.UUID) (*bracket.Pool, error) {
	var pool bracket.Pool
	err := sqlx.GetContext(ctx, q, &pool, q.Rebind("SELECT * FROM pools WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

// GetPools returns the category's pools in creation order.
func (s *FixtureStore) GetPools(ctx context.Context, q Querier, tournamentID uuid.UUID, category string) ([]bracket.Pool, error) {
	var pools []bracket.Pool
	err := sqlx.SelectContext(ctx, q, &pools, q.Rebind("SELECT * FROM pools WHERE tournament_id = ? AND category = ? ORDER BY ordinal ASC, name ASC"), tournamentID, category)
	return pools, err
}

func (s *FixtureStore) GetTournamentPools(ctx context.Context, q Querier, tournamentID uuid.UUID) ([]bracket.Pool, error) {
	var pools []bracket.Pool
	err := sqlx.SelectContext(ctx, q, &pools, q.Rebind("SELECT * FROM pools WHERE tournament_id = ? ORDER BY category ASC, ordinal ASC, name ASC"), tournamentID)
	return pools, err
}

func (s *FixtureStore) GetMemberships(ctx context.Context, q Querier, poolID uuid.UUID) ([]bracket.PoolMembership, error) {
	var rows []membershipRow
	err := sqlx.SelectContext(ctx, q, &rows, q.Rebind("SELECT * FROM pool_memberships WHERE pool_id = ? ORDER BY position ASC"), poolID)
	if err != nil {
		return nil, err
	}
	memberships := make([]bracket.PoolMembership, 0, len(rows))
	for _, row := range rows {
		p := participantFromColumns(row.PlayerID, row.TeamID)
		if p == nil {
			continue
		}
		memberships = append(memberships, bracket.PoolMembership{PoolID: row.PoolID, Participant: *p, Position: row.Position})
	}
	return memberships, nil
}

func (s *FixtureStore) UpdatePoolStatus(ctx context.Context, q Querier, id uuid.UUID, status bracket.PoolStatus) error {
	result, err := q.ExecContext(ctx, q.Rebind("UPDATE pools SET status = ? WHERE id = ?"), status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPoolNotFound)
}

// CreateFixtureSet claims a stage of a category. A second claim fails with
// ErrFixtureSetExists, which is what serializes concurrent generations.
func (s *FixtureStore) CreateFixtureSet(ctx context.Context, q Querier, tournamentID uuid.UUID, category, stage string) error {
	_, err := q.ExecContext(ctx, q.Rebind("INSERT INTO fixture_sets (tournament_id, category, stage) VALUES (?, ?, ?)"), tournamentID, category, stage)
	if IsUniqueViolation(err) {
		return ErrFixtureSetExists
	}
	return err
}

// DeleteStats counts the rows removed by a fixture deletion.
type DeleteStats struct {
	Matches int64
	Pools   int64
}

func rowsAffected(result sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteKnockout removes a category's knockout matches and releases its
// knockout stage.
func (s *FixtureStore) DeleteKnockout(ctx context.Context, q Querier, tournamentID uuid.UUID, category string) (DeleteStats, error) {
	var stats DeleteStats
	n, err := rowsAffected(q.ExecContext(ctx, q.Rebind("DELETE FROM matches WHERE tournament_id = ? AND category = ? AND match_type = ?"),
		tournamentID, category, bracket.KnockoutMatch))
	if err != nil {
		return stats, err
	}
	stats.Matches = n
	_, err = q.ExecContext(ctx, q.Rebind("DELETE FROM fixture_sets WHERE tournament_id = ? AND category = ? AND stage = ?"),
		tournamentID, category, StageKnockout)
	return stats, err
}

// DeleteCategory removes every fixture of one category, knockout included.
func (s *FixtureStore) DeleteCategory(ctx context.Context, q Querier, tournamentID uuid.UUID, category string) (DeleteStats, error) {
	stats, err := s.DeleteKnockout(ctx, q, tournamentID, category)
	if err != nil {
		return stats, err
	}

	pools := "SELECT id FROM pools WHERE tournament_id = ? AND category = ?"
	if _, err := q.ExecContext(ctx, q.Rebind("DELETE FROM pool_memberships WHERE pool_id IN ("+pools+")"), tournamentID, category); err != nil {
		return stats, err
	}
	n, err := rowsAffected(q.ExecContext(ctx, q.Rebind("DELETE FROM matches WHERE tournament_id = ? AND category = ?"), tournamentID, category))
	if err != nil {
		return stats, err
	}
	stats.Matches += n
	if stats.Pools, err = rowsAffected(q.ExecContext(ctx, q.Rebind("DELETE FROM pools WHERE tournament_id = ? AND category = ?"), tournamentID, category)); err != nil {
		return stats, err
	}
	_, err = q.ExecContext(ctx, q.Rebind("DELETE FROM fixture_sets WHERE tournament_id = ? AND category = ?"), tournamentID, category)
	return stats, err
}

// DeleteTournament removes all fixtures of a tournament in dependency order:
// memberships, matches, pools, then the stage claims. Match history is kept.
func (s *FixtureStore) DeleteTournament(ctx context.Context, q Querier, tournamentID uuid.UUID) (DeleteStats, error) {
	var stats DeleteStats
	if _, err := q.ExecContext(ctx, q.Rebind("DELETE FROM pool_memberships WHERE pool_id IN (SELECT id FROM pools WHERE tournament_id = ?)"), tournamentID); err != nil {
		return stats, err
	}
	var err error
	if stats.Matches, err = rowsAffected(q.ExecContext(ctx, q.Rebind("DELETE FROM matches WHERE tournament_id = ?"), tournamentID)); err != nil {
		return stats, err
	}
	if stats.Pools, err = rowsAffected(q.ExecContext(ctx, q.Rebind("DELETE FROM pools WHERE tournament_id = ?"), tournamentID)); err != nil {
		return stats, err
	}
	_, err = q.ExecContext(ctx, q.Rebind("DELETE FROM fixture_sets WHERE tournament_id = ?"), tournamentID)
	return stats, err
}
