package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrPlayerNotFound = errors.New("player not found")

type PlayerStore struct {
	db *sqlx.DB
}

const (
	getPlayerQuery     = "SELECT * FROM players WHERE id = ?"
	getPlayersQuery    = "SELECT * FROM players WHERE id IN (?) ORDER BY name ASC"
	createPlayersQuery = `
		INSERT INTO players (id, name) VALUES
		(:id, :name)
	`
)

func NewPlayerStore(db *sqlx.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) GetPlayer(ctx context.Context, q Querier, id uuid.UUID) (*bracket.Player, error) {
	var player bracket.Player
	err := sqlx.GetContext(ctx, q, &player, q.Rebind(getPlayerQuery), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// GetPlayers loads the given players; unknown ids are skipped.
func (s *PlayerStore) GetPlayers(ctx context.Context, q Querier, ids []uuid.UUID) ([]bracket.Player, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(getPlayersQuery, ids)
	if err != nil {
		return nil, err
	}
	var players []bracket.Player
	err = sqlx.SelectContext(ctx, q, &players, q.Rebind(query), args...)
	return players, err
}

func (s *PlayerStore) CreatePlayers(ctx context.Context, q Querier, players []bracket.Player) error {
	if len(players) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, q, createPlayersQuery, players)
	return err
}
