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

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx so every store call can
// join the caller's transaction.
type Querier interface {
	sqlx.ExtContext
}

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

type registrationRow struct {
	ID           uuid.UUID                  `db:"id"`
	TournamentID uuid.UUID                  `db:"tournament_id"`
	PlayerID     uuid.UUID                  `db:"player_id"`
	TeamID       *uuid.UUID                 `db:"team_id"`
	Status       bracket.RegistrationStatus `db:"status"`
	Metadata     string                     `db:"metadata"`
	Seed         int                        `db:"seed"`
	CreatedAt    time.Time                  `db:"created_at"`
}

func (s *TournamentStore) CreateTournament(ctx context.Context, q Querier, tournament *bracket.Tournament) error {
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO tournaments (id, name, status)
        VALUES (:id, :name, :status)`, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, q Querier, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := sqlx.GetContext(ctx, q, &tournament, q.Rebind("SELECT * FROM tournaments WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) UpdateTournamentStatus(ctx context.Context, q Querier, id uuid.UUID, status bracket.TournamentStatus) error {
	result, err := q.ExecContext(ctx, q.Rebind("UPDATE tournaments SET status = ? WHERE id = ?"), status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (s *TournamentStore) CreateTeams(ctx context.Context, q Querier, teams []bracket.Team) error {
	if len(teams) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO teams (id, tournament_id, player_1_id, player_2_id, name)
        VALUES (:id, :tournament_id, :player_1_id, :player_2_id, :name)`, teams)
	return err
}

func (s *TournamentStore) GetTeams(ctx context.Context, q Querier, tournamentID uuid.UUID) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := sqlx.SelectContext(ctx, q, &teams, q.Rebind("SELECT * FROM teams WHERE tournament_id = ? ORDER BY created_at ASC, id ASC"), tournamentID)
	return teams, err
}

func (s *TournamentStore) GetTeam(ctx context.Context, q Querier, id uuid.UUID) (*bracket.Team, error) {
	var team bracket.Team
	err := sqlx.GetContext(ctx, q, &team, q.Rebind("SELECT * FROM teams WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// SetTeamPartner fills the empty second seat of a placeholder team. A team
// that is missing or already full reports ErrTeamNotFound.
func (s *TournamentStore) SetTeamPartner(ctx context.Context, q Querier, teamID, partnerID uuid.UUID, name string) error {
	result, err := q.ExecContext(ctx, q.Rebind("UPDATE teams SET player_2_id = ?, name = ? WHERE id = ? AND player_2_id IS NULL"), partnerID, name, teamID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (s *TournamentStore) CreateRegistrations(ctx context.Context, q Querier, registrations []bracket.Registration) error {
	if len(registrations) == 0 {
		return nil
	}

	rows := make([]registrationRow, len(registrations))
	for i, r := range registrations {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for registration %s: %w", r.ID, err)
		}
		if r.Metadata == nil {
			metadata = []byte("{}")
		}
		rows[i] = registrationRow{
			ID:           r.ID,
			TournamentID: r.TournamentID,
			PlayerID:     r.PlayerID,
			TeamID:       r.TeamID,
			Status:       r.Status,
			Metadata:     string(metadata),
			Seed:         r.Seed,
		}
	}

	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO registrations (id, tournament_id, player_id, team_id, status, metadata, seed)
        VALUES (:id, :tournament_id, :player_id, :team_id, :status, :metadata, :seed)`, rows)
	return err
}

func (s *TournamentStore) GetRegistrations(ctx context.Context, q Querier, tournamentID uuid.UUID) ([]bracket.Registration, error) {
	var rows []registrationRow
	err := sqlx.SelectContext(ctx, q, &rows, q.Rebind("SELECT * FROM registrations WHERE tournament_id = ? ORDER BY seed ASC, created_at ASC, id ASC"), tournamentID)
	if err != nil {
		return nil, err
	}

	registrations := make([]bracket.Registration, 0, len(rows))
	for _, row := range rows {
		metadata := map[string]string{}
		if err := json.Unmarshal([]byte(row.Metadata), &metadata); err != nil {
			return nil, fmt.Errorf("registration %s has malformed metadata: %w", row.ID, err)
		}
		registrations = append(registrations, bracket.Registration{
			ID:           row.ID,
			TournamentID: row.TournamentID,
			PlayerID:     row.PlayerID,
			TeamID:       row.TeamID,
			Status:       row.Status,
			Metadata:     metadata,
			Seed:         row.Seed,
			CreatedAt:    row.CreatedAt,
		})
	}
	return registrations, nil
}

// MaxRegistrationSeed returns 0 for a tournament without registrations.
func (s *TournamentStore) MaxRegistrationSeed(ctx context.Context, q Querier, tournamentID uuid.UUID) (int, error) {
	var seed int
	err := sqlx.GetContext(ctx, q, &seed, q.Rebind("SELECT COALESCE(MAX(seed), 0) FROM registrations WHERE tournament_id = ?"), tournamentID)
	return seed, err
}

func (s *TournamentStore) AssignTeam(ctx context.Context, q Querier, registrationID, teamID uuid.UUID) error {
	result, err := q.ExecContext(ctx, q.Rebind("UPDATE registrations SET team_id = ? WHERE id = ?"), teamID, registrationID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}
