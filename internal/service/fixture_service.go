package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/live"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/lock"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/middleware"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Broadcaster receives notifications after a change is committed. Delivery
// is best-effort.
type Broadcaster interface {
	Broadcast(room string, event live.Event)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, live.Event) {}

type FixtureService struct {
	db      *sqlx.DB
	stores  *store.Stores
	entries *EntryService
	locker  lock.Locker
	hub     Broadcaster
}

func NewFixtureService(db *sqlx.DB, stores *store.Stores, locker lock.Locker, hub Broadcaster) *FixtureService {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	return &FixtureService{db: db, stores: stores, entries: NewEntryService(db, stores), locker: locker, hub: hub}
}

type PoolFixtureInput struct {
	TournamentID uuid.UUID `json:"-"`
	Category     string    `json:"-"`
	// Pools lists explicit pool members in seed order. When empty the
	// category's entrants are snake-distributed over PoolCount pools.
	Pools        [][]bracket.Participant `json:"pools,omitempty"`
	PoolCount    int                     `json:"pool_count,omitempty"`
	AdvanceCount int                     `json:"advance_count,omitempty"`
	// Replace deletes the category's existing fixtures first.
	Replace bool `json:"replace,omitempty"`
}

type PoolFixtures struct {
	Pools       []bracket.Pool           `json:"pools"`
	Memberships []bracket.PoolMembership `json:"memberships"`
	Matches     []bracket.Match          `json:"matches"`
}

type KnockoutFixtures struct {
	Qualifiers []bracket.Qualifier `json:"qualifiers,omitempty"`
	Matches    []bracket.Match     `json:"matches"`
}

type DeleteResult struct {
	DeletedMatches int64 `json:"deleted_matches"`
	DeletedPools   int64 `json:"deleted_pools"`
}

// withFixtureLock runs fn while holding the tournament's fixture lock.
func (s *FixtureService) withFixtureLock(ctx context.Context, tournamentID uuid.UUID, fn func() error) error {
	release, err := s.locker.TryLock(ctx, lock.FixturesKey(tournamentID.String()))
	if errors.Is(err, lock.ErrLocked) {
		return apperr.Conflictf("fixtures of tournament %s are being changed by another request, retry shortly", tournamentID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock fixtures: %w", err)
	}
	defer release()
	return fn()
}

func claimStage(ctx context.Context, tx *sqlx.Tx, fixtures *store.FixtureStore, tournamentID uuid.UUID, category, stage string) error {
	err := fixtures.CreateFixtureSet(ctx, tx, tournamentID, category, stage)
	if errors.Is(err, store.ErrFixtureSetExists) {
		return apperr.Wrap(err, apperr.KindConflict, fmt.Sprintf("%s fixtures for %q were generated concurrently", stage, category))
	}
	return err
}

func (s *FixtureService) markStarted(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament) error {
	if t.Status != bracket.TournamentDraft {
		return nil
	}
	if err := s.stores.Tournaments.UpdateTournamentStatus(ctx, tx, t.ID, bracket.TournamentStarted); err != nil {
		return fmt.Errorf("failed to start tournament: %w", err)
	}
	return nil
}

func (s *FixtureService) GeneratePoolFixtures(ctx context.Context, input PoolFixtureInput) (*PoolFixtures, error) {
	category := bracket.NormalizeCategory(input.Category)
	advanceCount := input.AdvanceCount
	if advanceCount == 0 {
		advanceCount = bracket.DefaultAdvanceCount
	}
	if advanceCount < 1 {
		return nil, apperr.Validationf("advance count must be at least 1, got %d", advanceCount)
	}

	var result *PoolFixtures
	err := s.withFixtureLock(ctx, input.TournamentID, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		tournament, err := s.stores.Tournaments.GetTournament(ctx, tx, input.TournamentID)
		if err != nil {
			return notFound(err, "tournament %s not found", input.TournamentID)
		}

		existingPools, err := s.stores.Fixtures.GetPools(ctx, tx, tournament.ID, category)
		if err != nil {
			return fmt.Errorf("failed to check existing pools: %w", err)
		}
		existingKnockout, err := s.stores.Matches.GetCategoryMatches(ctx, tx, tournament.ID, category, bracket.KnockoutMatch)
		if err != nil {
			return fmt.Errorf("failed to check existing knockout: %w", err)
		}
		if len(existingPools) > 0 || len(existingKnockout) > 0 {
			if !input.Replace {
				return apperr.Preconditionf("category %q already has %d pools and %d knockout matches; confirm replace to regenerate",
					category, len(existingPools), len(existingKnockout))
			}
			if _, err := s.stores.Fixtures.DeleteCategory(ctx, tx, tournament.ID, category); err != nil {
				return fmt.Errorf("failed to delete existing fixtures: %w", err)
			}
		}

		if err := claimStage(ctx, tx, s.stores.Fixtures, tournament.ID, category, store.StagePool); err != nil {
			return err
		}

		entrants, err := s.entries.ResolveCategory(ctx, tx, tournament.ID, category)
		if err != nil {
			return err
		}
		if !entrants.Eligible {
			return apperr.Validationf("category %q has %d confirmed participants, at least 2 are needed", category, len(entrants.Entrants))
		}

		groups, err := poolGroups(entrants, input)
		if err != nil {
			return err
		}

		maxPos, err := s.stores.Matches.MaxPoolPosition(ctx, tx, tournament.ID)
		if err != nil {
			return fmt.Errorf("failed to read bracket positions: %w", err)
		}
		positions := NewPositionCounter(maxPos + 1)

		result = &PoolFixtures{}
		for i, members := range groups {
			pool := bracket.Pool{
				ID:           uuid.New(),
				TournamentID: tournament.ID,
				Category:     category,
				Name:         PoolName(i),
				Ordinal:      i,
				Size:         len(members),
				AdvanceCount: advanceCount,
				Status:       bracket.PoolPending,
			}
			result.Pools = append(result.Pools, pool)
			for pos, p := range members {
				result.Memberships = append(result.Memberships, bracket.PoolMembership{PoolID: pool.ID, Participant: p, Position: pos})
			}
			result.Matches = append(result.Matches, GenerateRoundRobin(pool, members, positions)...)
		}

		if err := s.stores.Fixtures.CreatePools(ctx, tx, result.Pools); err != nil {
			return fmt.Errorf("failed to create pools: %w", err)
		}
		if err := s.stores.Fixtures.CreateMemberships(ctx, tx, result.Memberships); err != nil {
			return fmt.Errorf("failed to create pool memberships: %w", err)
		}
		if err := s.stores.Matches.CreateMatches(ctx, tx, result.Matches); err != nil {
			return fmt.Errorf("failed to create pool matches: %w", err)
		}
		if err := s.markStarted(ctx, tx, tournament); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	slog.Info("pool fixtures generated", "tournament", input.TournamentID, "category", category,
		"pools", len(result.Pools), "matches", len(result.Matches))
	s.hub.Broadcast(input.TournamentID.String(), live.Event{
		Type:    live.EventFixturesGenerated,
		Payload: map[string]any{"category": category, "stage": store.StagePool, "matches": len(result.Matches)},
	})
	return result, nil
}

// poolGroups checks explicit pools against the category's entrants, or
// snake-distributes the entrants when no pools were given.
func poolGroups(entrants *CategoryEntrants, input PoolFixtureInput) ([][]bracket.Participant, error) {
	if len(input.Pools) == 0 {
		k := input.PoolCount
		if k == 0 {
			k = 1
		}
		return DistributeSnake(entrants.Participants(), k)
	}

	known := make(map[bracket.Participant]bool, len(entrants.Entrants))
	for _, e := range entrants.Entrants {
		known[e.Participant] = true
	}
	used := make(map[bracket.Participant]bool)
	for i, members := range input.Pools {
		if len(members) < 2 {
			return nil, apperr.Validationf("%s has %d participants, at least 2 are needed", PoolName(i), len(members))
		}
		for _, p := range members {
			if !known[p] {
				return nil, apperr.Validationf("%s is not a confirmed participant of %q", p, entrants.Category)
			}
			if used[p] {
				return nil, apperr.Validationf("%s is placed in more than one pool", p)
			}
			used[p] = true
			if p.Kind != members[0].Kind {
				return nil, apperr.Validationf("%s mixes players and teams", PoolName(i))
			}
		}
	}
	return input.Pools, nil
}

// GenerateKnockoutFixtures seeds the category's knockout from its completed pools.
func (s *FixtureService) GenerateKnockoutFixtures(ctx context.Context, tournamentID uuid.UUID, category string) (*KnockoutFixtures, error) {
	category = bracket.NormalizeCategory(category)

	var result *KnockoutFixtures
	err := s.withFixtureLock(ctx, tournamentID, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		tournament, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID)
		if err != nil {
			return notFound(err, "tournament %s not found", tournamentID)
		}
		if err := s.ensureNoKnockout(ctx, tx, tournamentID, category); err != nil {
			return err
		}

		pools, err := s.stores.Fixtures.GetPools(ctx, tx, tournamentID, category)
		if err != nil {
			return fmt.Errorf("failed to get pools: %w", err)
		}
		if len(pools) == 0 {
			return apperr.NotFoundf("category %q of tournament %s has no pools", category, tournamentID)
		}

		results := make([]PoolStandings, 0, len(pools))
		for _, pool := range pools {
			standings, err := poolStandings(ctx, tx, s.stores, pool)
			if err != nil {
				return err
			}
			results = append(results, standings)
		}

		qualifiers, err := SelectQualifiers(results)
		if err != nil {
			return err
		}

		matches, err := s.createKnockout(ctx, tx, tournament, category, qualifierParticipants(qualifiers))
		if err != nil {
			return err
		}
		result = &KnockoutFixtures{Qualifiers: qualifiers, Matches: matches}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	s.announceKnockout(tournamentID, category, result.Matches)
	return result, nil
}

// GenerateDirectKnockout builds a knockout straight from the category's
// entrants, for tournaments without a pool stage.
func (s *FixtureService) GenerateDirectKnockout(ctx context.Context, tournamentID uuid.UUID, category string) (*KnockoutFixtures, error) {
	category = bracket.NormalizeCategory(category)

	var result *KnockoutFixtures
	err := s.withFixtureLock(ctx, tournamentID, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		tournament, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID)
		if err != nil {
			return notFound(err, "tournament %s not found", tournamentID)
		}
		if err := s.ensureNoKnockout(ctx, tx, tournamentID, category); err != nil {
			return err
		}
		pools, err := s.stores.Fixtures.GetPools(ctx, tx, tournamentID, category)
		if err != nil {
			return fmt.Errorf("failed to get pools: %w", err)
		}
		if len(pools) > 0 {
			return apperr.Preconditionf("category %q has %d pools; its knockout must be seeded from pool results", category, len(pools))
		}

		entrants, err := s.entries.ResolveCategory(ctx, tx, tournamentID, category)
		if err != nil {
			return err
		}
		if !entrants.Eligible {
			return apperr.Validationf("category %q has %d confirmed participants, at least 2 are needed", category, len(entrants.Entrants))
		}

		matches, err := s.createKnockout(ctx, tx, tournament, category, entrants.Participants())
		if err != nil {
			return err
		}
		result = &KnockoutFixtures{Matches: matches}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	s.announceKnockout(tournamentID, category, result.Matches)
	return result, nil
}

func (s *FixtureService) ensureNoKnockout(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, category string) error {
	existing, err := s.stores.Matches.GetCategoryMatches(ctx, tx, tournamentID, category, bracket.KnockoutMatch)
	if err != nil {
		return fmt.Errorf("failed to check existing knockout: %w", err)
	}
	if len(existing) > 0 {
		return apperr.Preconditionf("category %q already has %d knockout matches; delete fixtures before regenerating", category, len(existing))
	}
	return nil
}

func (s *FixtureService) createKnockout(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, category string, participants []bracket.Participant) ([]bracket.Match, error) {
	if err := claimStage(ctx, tx, s.stores.Fixtures, tournament.ID, category, store.StageKnockout); err != nil {
		return nil, err
	}

	matches, err := GenerateSingleElimBracket(tournament.ID, category, participants)
	if err != nil {
		return nil, err
	}
	if err := s.stores.Matches.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create knockout matches: %w", err)
	}

	actor := middleware.Actor(ctx)
	for _, m := range matches {
		if !m.IsBye {
			continue
		}
		entry := &bracket.HistoryEntry{
			ID:             uuid.New(),
			MatchID:        m.ID,
			TournamentID:   m.TournamentID,
			Action:         bracket.ActionBye,
			PreviousStatus: bracket.MatchPending,
			NewStatus:      bracket.MatchCompleted,
			NewWinner:      m.Winner,
			ChangedBy:      actor,
		}
		if err := s.stores.Matches.AppendHistory(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("failed to record bye: %w", err)
		}
	}

	if err := s.markStarted(ctx, tx, tournament); err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *FixtureService) announceKnockout(tournamentID uuid.UUID, category string, matches []bracket.Match) {
	slog.Info("knockout fixtures generated", "tournament", tournamentID, "category", category, "matches", len(matches))
	s.hub.Broadcast(tournamentID.String(), live.Event{
		Type:    live.EventFixturesGenerated,
		Payload: map[string]any{"category": category, "stage": store.StageKnockout, "matches": len(matches)},
	})
}

// DeleteFixtures removes every pool, membership and match of the tournament.
// Match history is kept.
func (s *FixtureService) DeleteFixtures(ctx context.Context, tournamentID uuid.UUID) (*DeleteResult, error) {
	return s.deleteFixtures(ctx, tournamentID, "")
}

// DeleteCategoryFixtures is DeleteFixtures limited to one category.
func (s *FixtureService) DeleteCategoryFixtures(ctx context.Context, tournamentID uuid.UUID, category string) (*DeleteResult, error) {
	return s.deleteFixtures(ctx, tournamentID, bracket.NormalizeCategory(category))
}

func (s *FixtureService) deleteFixtures(ctx context.Context, tournamentID uuid.UUID, category string) (*DeleteResult, error) {
	var result *DeleteResult
	err := s.withFixtureLock(ctx, tournamentID, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID); err != nil {
			return notFound(err, "tournament %s not found", tournamentID)
		}

		var stats store.DeleteStats
		if category == "" {
			stats, err = s.stores.Fixtures.DeleteTournament(ctx, tx, tournamentID)
		} else {
			stats, err = s.stores.Fixtures.DeleteCategory(ctx, tx, tournamentID, category)
		}
		if err != nil {
			return fmt.Errorf("failed to delete fixtures: %w", err)
		}

		remaining, err := s.stores.Matches.GetMatches(ctx, tx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to count remaining matches: %w", err)
		}
		if len(remaining) == 0 {
			if err := s.stores.Tournaments.UpdateTournamentStatus(ctx, tx, tournamentID, bracket.TournamentDraft); err != nil {
				return fmt.Errorf("failed to reset tournament status: %w", err)
			}
		}

		result = &DeleteResult{DeletedMatches: stats.Matches, DeletedPools: stats.Pools}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	slog.Info("fixtures deleted", "tournament", tournamentID, "category", category,
		"matches", result.DeletedMatches, "pools", result.DeletedPools)
	s.hub.Broadcast(tournamentID.String(), live.Event{
		Type:    live.EventFixturesDeleted,
		Payload: map[string]any{"category": category, "deleted_matches": result.DeletedMatches, "deleted_pools": result.DeletedPools},
	})
	return result, nil
}
