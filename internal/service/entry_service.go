package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// EntryService turns a tournament's registrations into per-category entrants.
type EntryService struct {
	db     *sqlx.DB
	stores *store.Stores
}

func NewEntryService(db *sqlx.DB, stores *store.Stores) *EntryService {
	return &EntryService{db: db, stores: stores}
}

// ListEntrants partitions the registrations without writing anything.
func (s *EntryService) ListEntrants(ctx context.Context, q store.Querier, tournamentID uuid.UUID) ([]CategoryEntrants, error) {
	registrations, err := s.stores.Tournaments.GetRegistrations(ctx, q, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	return PartitionRegistrations(registrations)
}

// ResolveCategory returns the entrants of one category, creating placeholder
// teams for unpaired players first so every slot holds a team.
func (s *EntryService) ResolveCategory(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, category string) (*CategoryEntrants, error) {
	categories, err := s.ListEntrants(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}

	var entrants *CategoryEntrants
	for i := range categories {
		if categories[i].Category == category {
			entrants = &categories[i]
			break
		}
	}
	if entrants == nil {
		return &CategoryEntrants{Category: category, TeamBased: bracket.IsTeamCategory(category)}, nil
	}

	if entrants.Placeholders() > 0 {
		if err := s.createPlaceholderTeams(ctx, tx, tournamentID, entrants); err != nil {
			return nil, err
		}
	}
	return entrants, nil
}

func (s *EntryService) createPlaceholderTeams(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, entrants *CategoryEntrants) error {
	var playerIDs []uuid.UUID
	for _, e := range entrants.Entrants {
		if e.Placeholder {
			playerIDs = append(playerIDs, e.PlayerID)
		}
	}
	players, err := s.stores.Players.GetPlayers(ctx, tx, playerIDs)
	if err != nil {
		return fmt.Errorf("failed to get players: %w", err)
	}
	names := make(map[uuid.UUID]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}

	var teams []bracket.Team
	var assignments []Entrant
	for i := range entrants.Entrants {
		e := &entrants.Entrants[i]
		if !e.Placeholder {
			continue
		}
		team := bracket.Team{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Player1ID:    e.PlayerID,
			Name:         names[e.PlayerID] + " / TBD",
		}
		teams = append(teams, team)
		e.Participant = bracket.TeamEntry(team.ID)
		assignments = append(assignments, *e)
	}

	if err := s.stores.Tournaments.CreateTeams(ctx, tx, teams); err != nil {
		return fmt.Errorf("failed to create placeholder teams: %w", err)
	}
	for i, e := range assignments {
		for _, registrationID := range append([]uuid.UUID{e.RegistrationID}, e.Merged...) {
			if err := s.stores.Tournaments.AssignTeam(ctx, tx, registrationID, teams[i].ID); err != nil {
				return fmt.Errorf("failed to assign placeholder team: %w", err)
			}
		}
	}
	return nil
}
