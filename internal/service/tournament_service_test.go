package service

import (
	"testing"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsSecondEntryInCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	tournament := env.newTournament(t)

	pair, err := env.tournaments.Register(ctx, tournament.ID, RegistrationInput{PlayerName: "Pat", PartnerName: "Quinn", Category: "doubles"})
	require.NoError(t, err)
	require.Len(t, pair.Registrations, 2)
	pat, quinn := pair.Registrations[0].PlayerID, pair.Registrations[1].PlayerID

	testCases := []struct {
		name  string
		input RegistrationInput
	}{
		{name: "alone after a pair", input: RegistrationInput{PlayerID: &pat, Category: "doubles"}},
		{name: "partner alone", input: RegistrationInput{PlayerID: &quinn, Category: "Doubles"}},
		{name: "as someone's partner", input: RegistrationInput{PlayerName: "Robin", PartnerID: &pat, Category: "doubles"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.tournaments.Register(ctx, tournament.ID, tc.input)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Contains(t, err.Error(), "already registered")
		})
	}

	_, err = env.tournaments.Register(ctx, tournament.ID, RegistrationInput{PlayerID: &pat, Category: "singles"})
	require.NoError(t, err, "another category is fine")

	categories, err := env.tournaments.Categories(ctx, tournament.ID)
	require.NoError(t, err)
	for _, c := range categories {
		assert.Len(t, c.Entrants, 1, c.Category)
		assert.Zero(t, c.Placeholders(), c.Category)
	}
}

func TestRegisterAfterWithdrawal(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	tournament := env.newTournament(t)

	first, err := env.tournaments.Register(ctx, tournament.ID, RegistrationInput{PlayerName: "Pat", Category: "singles", Status: "withdrawn"})
	require.NoError(t, err)
	pat := first.Registrations[0].PlayerID

	_, err = env.tournaments.Register(ctx, tournament.ID, RegistrationInput{PlayerID: &pat, Category: "singles"})
	assert.NoError(t, err)
}

func TestAssignPartnerFillsPlaceholderTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	tournament := env.newTournament(t)

	for _, names := range [][2]string{{"Ash", "Blake"}, {"Casey", "Drew"}} {
		_, err := env.tournaments.Register(ctx, tournament.ID, RegistrationInput{PlayerName: names[0], PartnerName: names[1], Category: "doubles"})
		require.NoError(t, err)
	}
	solo, err := env.tournaments.Register(ctx, tournament.ID, RegistrationInput{PlayerName: "Pat", Category: "doubles"})
	require.NoError(t, err)
	pat := solo.Registrations[0].PlayerID

	fixtures, err := env.fixtures.GeneratePoolFixtures(ctx, PoolFixtureInput{TournamentID: tournament.ID, Category: "doubles"})
	require.NoError(t, err)
	require.Len(t, fixtures.Memberships, 3)

	registrations, err := env.stores.Tournaments.GetRegistrations(ctx, env.db, tournament.ID)
	require.NoError(t, err)
	var placeholder uuid.UUID
	for _, r := range registrations {
		if r.PlayerID == pat {
			require.NotNil(t, r.TeamID)
			placeholder = *r.TeamID
		}
	}

	result, err := env.tournaments.AssignPartner(ctx, tournament.ID, PartnerInput{PlayerID: pat, Category: "doubles", PartnerName: "Quinn"})
	require.NoError(t, err)
	require.NotNil(t, result.Team)
	assert.Equal(t, placeholder, result.Team.ID, "the drawn team keeps its id")
	assert.Equal(t, "Pat / Quinn", result.Team.Name)
	require.Len(t, result.Registrations, 1)
	assert.Equal(t, placeholder, *result.Registrations[0].TeamID)

	team, err := env.stores.Tournaments.GetTeam(ctx, env.db, placeholder)
	require.NoError(t, err)
	assert.False(t, team.IsPlaceholder())

	categories, err := env.tournaments.Categories(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Len(t, categories[0].Entrants, 3, "the partner joins the existing team")
	assert.Contains(t, categories[0].Participants(), bracket.TeamEntry(placeholder))

	_, err = env.tournaments.AssignPartner(ctx, tournament.ID, PartnerInput{PlayerID: pat, Category: "doubles", PartnerName: "Robin"})
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))
}

func TestAssignPartnerWithoutPlaceholderTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	tournament := env.newTournament(t)

	solo, err := env.tournaments.Register(ctx, tournament.ID, RegistrationInput{PlayerName: "Pat", Category: "mixed"})
	require.NoError(t, err)
	pat := solo.Registrations[0].PlayerID

	result, err := env.tournaments.AssignPartner(ctx, tournament.ID, PartnerInput{PlayerID: pat, Category: "mixed", PartnerName: "Quinn"})
	require.NoError(t, err)
	require.NotNil(t, result.Team.Player2ID)

	categories, err := env.tournaments.Categories(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, []bracket.Participant{bracket.TeamEntry(result.Team.ID)}, categories[0].Participants())
}

func TestAssignPartnerErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	tournament := env.newTournament(t)

	solo, err := env.tournaments.Register(ctx, tournament.ID, RegistrationInput{PlayerName: "Pat", Category: "doubles"})
	require.NoError(t, err)
	pat := solo.Registrations[0].PlayerID
	other, err := env.tournaments.Register(ctx, tournament.ID, RegistrationInput{PlayerName: "Sam", Category: "doubles"})
	require.NoError(t, err)
	sam := other.Registrations[0].PlayerID

	testCases := []struct {
		name  string
		input PartnerInput
		kind  apperr.Kind
	}{
		{name: "singles", input: PartnerInput{PlayerID: pat, Category: "singles", PartnerName: "Quinn"}, kind: apperr.KindValidation},
		{name: "not registered", input: PartnerInput{PlayerID: uuid.New(), Category: "doubles", PartnerName: "Quinn"}, kind: apperr.KindNotFound},
		{name: "self", input: PartnerInput{PlayerID: pat, Category: "doubles", PartnerID: &pat}, kind: apperr.KindValidation},
		{name: "partner already entered", input: PartnerInput{PlayerID: pat, Category: "doubles", PartnerID: &sam}, kind: apperr.KindValidation},
		{name: "no partner", input: PartnerInput{PlayerID: pat, Category: "doubles"}, kind: apperr.KindValidation},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.tournaments.AssignPartner(ctx, tournament.ID, tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}
