package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/testutil"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTournament(t *testing.T, db *sqlx.DB, players int) (*bracket.Tournament, []bracket.Player) {
	t.Helper()
	ctx := context.Background()

	tournament := &bracket.Tournament{
		ID:     uuid.New(),
		Name:   "Spring Open",
		Status: bracket.TournamentDraft,
	}
	require.NoError(t, NewTournamentStore(db).CreateTournament(ctx, db, tournament))

	roster := make([]bracket.Player, players)
	for i := range roster {
		roster[i] = bracket.Player{ID: uuid.New(), Name: string(rune('A'+i)) + " Player"}
	}
	require.NoError(t, NewPlayerStore(db).CreatePlayers(ctx, db, roster))
	return tournament, roster
}

func TestCreateTournament(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := &bracket.Tournament{
		ID:     uuid.New(),
		Name:   "Test Tournament",
		Status: bracket.TournamentDraft,
	}

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateTournament(ctx, tx, tournament))
	require.NoError(t, tx.Commit())

	fetched, err := store.GetTournament(ctx, db, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, tournament.Name, fetched.Name)
	assert.Equal(t, bracket.TournamentDraft, fetched.Status)
	assert.WithinDuration(t, time.Now().UTC(), fetched.CreatedAt, time.Minute)

	require.NoError(t, store.UpdateTournamentStatus(ctx, db, tournament.ID, bracket.TournamentStarted))
	fetched, err = store.GetTournament(ctx, db, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentStarted, fetched.Status)
}

func TestGetTournamentNotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := NewTournamentStore(db)

	_, err := store.GetTournament(context.Background(), db, uuid.New())
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	err = store.UpdateTournamentStatus(context.Background(), db, uuid.New(), bracket.TournamentCompleted)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestRegistrations(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament, players := seedTournament(t, db, 3)

	registrations := []bracket.Registration{
		{ID: uuid.New(), TournamentID: tournament.ID, PlayerID: players[0].ID, Status: bracket.RegistrationConfirmed, Seed: 2,
			Metadata: map[string]string{"category": "Doubles", "partner": "Sam"}},
		{ID: uuid.New(), TournamentID: tournament.ID, PlayerID: players[1].ID, Status: bracket.RegistrationPending, Seed: 1},
	}
	require.NoError(t, store.CreateRegistrations(ctx, db, registrations))

	fetched, err := store.GetRegistrations(ctx, db, tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 2)

	assert.Equal(t, registrations[1].ID, fetched[0].ID, "ordered by seed")
	assert.Empty(t, fetched[0].Metadata)
	assert.Equal(t, "doubles", fetched[1].Category())
	assert.Equal(t, "Sam", fetched[1].Metadata["partner"])

	seed, err := store.MaxRegistrationSeed(ctx, db, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, seed)

	team := bracket.Team{ID: uuid.New(), TournamentID: tournament.ID, Player1ID: players[0].ID, Name: "A Player"}
	require.NoError(t, store.CreateTeams(ctx, db, []bracket.Team{team}))
	require.NoError(t, store.AssignTeam(ctx, db, registrations[0].ID, team.ID))

	teams, err := store.GetTeams(ctx, db, tournament.ID)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.True(t, teams[0].IsPlaceholder())

	fetched, err = store.GetRegistrations(ctx, db, tournament.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched[1].TeamID)
	assert.Equal(t, team.ID, *fetched[1].TeamID)

	assert.ErrorIs(t, store.AssignTeam(ctx, db, uuid.New(), team.ID), ErrRegistrationNotFound)
}

func TestPlayers(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := NewPlayerStore(db)
	ctx := context.Background()

	_, players := seedTournament(t, db, 3)

	p, err := store.GetPlayer(ctx, db, players[1].ID)
	require.NoError(t, err)
	assert.Equal(t, players[1].Name, p.Name)

	fetched, err := store.GetPlayers(ctx, db, []uuid.UUID{players[2].ID, players[0].ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, players[0].ID, fetched[0].ID)

	_, err = store.GetPlayer(ctx, db, uuid.New())
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestSetTeamPartner(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament, players := seedTournament(t, db, 2)
	team := bracket.Team{ID: uuid.New(), TournamentID: tournament.ID, Player1ID: players[0].ID, Name: "A Player / TBD"}
	require.NoError(t, store.CreateTeams(ctx, db, []bracket.Team{team}))

	require.NoError(t, store.SetTeamPartner(ctx, db, team.ID, players[1].ID, "A Player / B Player"))
	fetched, err := store.GetTeam(ctx, db, team.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Player2ID)
	assert.Equal(t, players[1].ID, *fetched.Player2ID)
	assert.Equal(t, "A Player / B Player", fetched.Name)
	assert.False(t, fetched.IsPlaceholder())

	err = store.SetTeamPartner(ctx, db, team.ID, players[1].ID, "again")
	assert.ErrorIs(t, err, ErrTeamNotFound, "a full team cannot take another partner")

	_, err = store.GetTeam(ctx, db, uuid.New())
	assert.ErrorIs(t, err, ErrTeamNotFound)
}
