package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/store"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

const maxNameLength = 50

type TournamentService struct {
	db      *sqlx.DB
	stores  *store.Stores
	entries *EntryService
}

func NewTournamentService(db *sqlx.DB, stores *store.Stores) *TournamentService {
	return &TournamentService{db: db, stores: stores, entries: NewEntryService(db, stores)}
}

type TournamentData struct {
	Tournament    *bracket.Tournament    `json:"tournament"`
	Registrations []bracket.Registration `json:"registrations"`
	Pools         []bracket.Pool         `json:"pools"`
	Matches       []bracket.Match        `json:"matches"`
	Brackets      []CategoryBracket      `json:"brackets"`
	NextMatchID   *uuid.UUID             `json:"next_match_id,omitempty"`
}

type RegistrationInput struct {
	PlayerID    *uuid.UUID        `json:"player_id,omitempty"`
	PlayerName  string            `json:"player_name"`
	PartnerID   *uuid.UUID        `json:"partner_id,omitempty"`
	PartnerName string            `json:"partner_name,omitempty"`
	Category    string            `json:"category"`
	Status      string            `json:"status,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type PartnerInput struct {
	PlayerID    uuid.UUID  `json:"player_id"`
	Category    string     `json:"category"`
	PartnerID   *uuid.UUID `json:"partner_id,omitempty"`
	PartnerName string     `json:"partner_name,omitempty"`
}

type RegistrationResult struct {
	Registrations []bracket.Registration `json:"registrations"`
	Team          *bracket.Team          `json:"team,omitempty"`
}

func notFound(err error, format string, args ...any) error {
	switch {
	case errors.Is(err, store.ErrTournamentNotFound),
		errors.Is(err, store.ErrMatchNotFound),
		errors.Is(err, store.ErrPoolNotFound),
		errors.Is(err, store.ErrTeamNotFound),
		errors.Is(err, store.ErrPlayerNotFound):
		return apperr.Wrap(err, apperr.KindNotFound, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func validName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validationf("%s name is required", kind)
	}
	if len(name) > maxNameLength {
		return "", apperr.Validationf("%s name '%s' exceeds %d characters", kind, name, maxNameLength)
	}
	return name, nil
}

func (s *TournamentService) CreateTournament(ctx context.Context, name string) (*bracket.Tournament, error) {
	name, err := validName("tournament", name)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament := &bracket.Tournament{
		ID:     uuid.New(),
		Name:   name,
		Status: bracket.TournamentDraft,
	}
	if err := s.stores.Tournaments.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.stores.Tournaments.GetTournament(ctx, s.db, tournament.ID)
}

// resolvePlayer loads an existing player or creates one from the name.
func (s *TournamentService) resolvePlayer(ctx context.Context, tx *sqlx.Tx, id *uuid.UUID, name, role string) (*bracket.Player, error) {
	if id != nil {
		p, err := s.stores.Players.GetPlayer(ctx, tx, *id)
		if err != nil {
			return nil, notFound(err, "%s %s not found", role, *id)
		}
		return p, nil
	}

	name, err := validName(role, name)
	if err != nil {
		return nil, err
	}
	p := bracket.Player{ID: uuid.New(), Name: name}
	if err := s.stores.Players.CreatePlayers(ctx, tx, []bracket.Player{p}); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", role, err)
	}
	return &p, nil
}

// checkNotRegistered rejects a player who already holds a live registration
// in category, alone or as part of a team.
func checkNotRegistered(registrations []bracket.Registration, category string, player *bracket.Player) error {
	for _, r := range registrations {
		if r.Status == bracket.RegistrationWithdrawn || r.PlayerID != player.ID {
			continue
		}
		if r.Category() == category {
			return apperr.Validationf("%s is already registered in %q", player.Name, category)
		}
	}
	return nil
}

// Register enters a player, or a pair in team categories, into a category.
// A team category entry without a partner waits as a placeholder.
func (s *TournamentService) Register(ctx context.Context, tournamentID uuid.UUID, input RegistrationInput) (*RegistrationResult, error) {
	category := bracket.NormalizeCategory(input.Category)
	teamBased := bracket.IsTeamCategory(category)
	hasPartner := input.PartnerID != nil || utils.StringOrNil(input.PartnerName) != nil
	if hasPartner && !teamBased {
		return nil, apperr.Validationf("category %q is played alone, a partner cannot be registered", category)
	}

	status := bracket.RegistrationConfirmed
	if input.Status != "" {
		status = bracket.RegistrationStatus(strings.ToLower(input.Status))
		switch status {
		case bracket.RegistrationPending, bracket.RegistrationConfirmed, bracket.RegistrationWithdrawn:
		default:
			return nil, apperr.Validationf("unknown registration status %q", input.Status)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID); err != nil {
		return nil, notFound(err, "tournament %s not found", tournamentID)
	}

	existing, err := s.stores.Tournaments.GetRegistrations(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}

	player, err := s.resolvePlayer(ctx, tx, input.PlayerID, input.PlayerName, "player")
	if err != nil {
		return nil, err
	}
	if err := checkNotRegistered(existing, category, player); err != nil {
		return nil, err
	}
	entrants := []*bracket.Player{player}

	var team *bracket.Team
	if hasPartner {
		partner, err := s.resolvePlayer(ctx, tx, input.PartnerID, input.PartnerName, "partner")
		if err != nil {
			return nil, err
		}
		if partner.ID == player.ID {
			return nil, apperr.Validation("a player cannot partner themselves")
		}
		if err := checkNotRegistered(existing, category, partner); err != nil {
			return nil, err
		}
		team = &bracket.Team{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Player1ID:    player.ID,
			Player2ID:    &partner.ID,
			Name:         player.Name + " / " + partner.Name,
		}
		if err := s.stores.Tournaments.CreateTeams(ctx, tx, []bracket.Team{*team}); err != nil {
			return nil, fmt.Errorf("failed to create team: %w", err)
		}
		entrants = append(entrants, partner)
	}

	seed, err := s.stores.Tournaments.MaxRegistrationSeed(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get next seed: %w", err)
	}

	metadata := make(map[string]string, len(input.Metadata)+1)
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	metadata["category"] = category

	result := &RegistrationResult{Team: team}
	for _, p := range entrants {
		seed++
		r := bracket.Registration{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			PlayerID:     p.ID,
			Status:       status,
			Metadata:     metadata,
			Seed:         seed,
		}
		if team != nil {
			r.TeamID = &team.ID
		}
		result.Registrations = append(result.Registrations, r)
	}

	if err := s.stores.Tournaments.CreateRegistrations(ctx, tx, result.Registrations); err != nil {
		return nil, fmt.Errorf("failed to create registrations: %w", err)
	}
	return result, tx.Commit()
}

// AssignPartner pairs a player who entered a team category alone. A
// placeholder team keeps its id, so fixtures already holding it follow along.
func (s *TournamentService) AssignPartner(ctx context.Context, tournamentID uuid.UUID, input PartnerInput) (*RegistrationResult, error) {
	category := bracket.NormalizeCategory(input.Category)
	if !bracket.IsTeamCategory(category) {
		return nil, apperr.Validationf("category %q is played alone, a partner cannot be assigned", category)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.stores.Tournaments.GetTournament(ctx, tx, tournamentID); err != nil {
		return nil, notFound(err, "tournament %s not found", tournamentID)
	}
	existing, err := s.stores.Tournaments.GetRegistrations(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}

	var own []bracket.Registration
	for _, r := range existing {
		if r.Status != bracket.RegistrationWithdrawn && r.PlayerID == input.PlayerID && r.Category() == category {
			own = append(own, r)
		}
	}
	if len(own) == 0 {
		return nil, apperr.NotFoundf("player %s has no registration in %q", input.PlayerID, category)
	}

	player, err := s.stores.Players.GetPlayer(ctx, tx, input.PlayerID)
	if err != nil {
		return nil, notFound(err, "player %s not found", input.PlayerID)
	}

	var team *bracket.Team
	for _, r := range own {
		if r.TeamID == nil {
			continue
		}
		t, err := s.stores.Tournaments.GetTeam(ctx, tx, *r.TeamID)
		if err != nil {
			return nil, notFound(err, "team %s not found", *r.TeamID)
		}
		if !t.IsPlaceholder() {
			return nil, apperr.Preconditionf("%s already has a partner in %q", player.Name, category)
		}
		team = t
	}

	partner, err := s.resolvePlayer(ctx, tx, input.PartnerID, input.PartnerName, "partner")
	if err != nil {
		return nil, err
	}
	if partner.ID == player.ID {
		return nil, apperr.Validation("a player cannot partner themselves")
	}
	if err := checkNotRegistered(existing, category, partner); err != nil {
		return nil, err
	}

	name := player.Name + " / " + partner.Name
	if team == nil {
		team = &bracket.Team{ID: uuid.New(), TournamentID: tournamentID, Player1ID: player.ID, Player2ID: &partner.ID, Name: name}
		if err := s.stores.Tournaments.CreateTeams(ctx, tx, []bracket.Team{*team}); err != nil {
			return nil, fmt.Errorf("failed to create team: %w", err)
		}
	} else {
		if err := s.stores.Tournaments.SetTeamPartner(ctx, tx, team.ID, partner.ID, name); err != nil {
			return nil, fmt.Errorf("failed to assign partner: %w", err)
		}
		team.Player2ID = &partner.ID
		team.Name = name
	}

	for _, r := range own {
		if r.TeamID != nil && *r.TeamID == team.ID {
			continue
		}
		if err := s.stores.Tournaments.AssignTeam(ctx, tx, r.ID, team.ID); err != nil {
			return nil, fmt.Errorf("failed to assign team: %w", err)
		}
	}

	seed, err := s.stores.Tournaments.MaxRegistrationSeed(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get next seed: %w", err)
	}
	registration := bracket.Registration{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		PlayerID:     partner.ID,
		TeamID:       &team.ID,
		Status:       own[0].Status,
		Metadata:     map[string]string{"category": category},
		Seed:         seed + 1,
	}
	if err := s.stores.Tournaments.CreateRegistrations(ctx, tx, []bracket.Registration{registration}); err != nil {
		return nil, fmt.Errorf("failed to register partner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &RegistrationResult{Registrations: []bracket.Registration{registration}, Team: team}, nil
}

// GetTournamentData loads the tournament overview; the reads run in parallel.
func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	data := &TournamentData{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.stores.Tournaments.GetTournament(gctx, s.db, id)
		if err != nil {
			return notFound(err, "tournament %s not found", id)
		}
		data.Tournament = t
		return nil
	})
	g.Go(func() error {
		registrations, err := s.stores.Tournaments.GetRegistrations(gctx, s.db, id)
		if err != nil {
			return fmt.Errorf("failed to get registrations: %w", err)
		}
		data.Registrations = registrations
		return nil
	})
	g.Go(func() error {
		pools, err := s.stores.Fixtures.GetTournamentPools(gctx, s.db, id)
		if err != nil {
			return fmt.Errorf("failed to get pools: %w", err)
		}
		data.Pools = pools
		return nil
	})
	g.Go(func() error {
		matches, err := s.stores.Matches.GetMatches(gctx, s.db, id)
		if err != nil {
			return fmt.Errorf("failed to get matches: %w", err)
		}
		data.Matches = matches
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.Brackets = PrepareBrackets(data.Matches)
	for _, m := range data.Matches {
		if m.Ready() && (m.Status == bracket.MatchPending || m.Status == bracket.MatchInProgress) {
			id := m.ID
			data.NextMatchID = &id
			break
		}
	}
	return data, nil
}

// Categories reports how registrations split into categories right now.
func (s *TournamentService) Categories(ctx context.Context, tournamentID uuid.UUID) ([]CategoryEntrants, error) {
	if _, err := s.stores.Tournaments.GetTournament(ctx, s.db, tournamentID); err != nil {
		return nil, notFound(err, "tournament %s not found", tournamentID)
	}
	return s.entries.ListEntrants(ctx, s.db, tournamentID)
}
