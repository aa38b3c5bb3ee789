package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type StandingService struct {
	db     *sqlx.DB
	stores *store.Stores
}

func NewStandingService(db *sqlx.DB, stores *store.Stores) *StandingService {
	return &StandingService{db: db, stores: stores}
}

func (s *StandingService) ComputeStandings(ctx context.Context, poolID uuid.UUID) (*PoolStandings, error) {
	pool, err := s.stores.Fixtures.GetPool(ctx, s.db, poolID)
	if err != nil {
		return nil, notFound(err, "pool %s not found", poolID)
	}
	standings, err := poolStandings(ctx, s.db, s.stores, *pool)
	if err != nil {
		return nil, err
	}
	return &standings, nil
}

func poolStandings(ctx context.Context, q store.Querier, stores *store.Stores, pool bracket.Pool) (PoolStandings, error) {
	memberships, err := stores.Fixtures.GetMemberships(ctx, q, pool.ID)
	if err != nil {
		return PoolStandings{}, fmt.Errorf("failed to get members of %s: %w", pool.Name, err)
	}
	matches, err := stores.Matches.GetPoolMatches(ctx, q, pool.ID)
	if err != nil {
		return PoolStandings{}, fmt.Errorf("failed to get matches of %s: %w", pool.Name, err)
	}
	return PoolStandings{
		Pool:      pool,
		Standings: CalculateStandings(pool, memberships, matches),
		Complete:  IsPoolComplete(matches),
	}, nil
}
