package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/live"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	slot1Wins = ScoreInput{SetScores: []bracket.SetScore{{Slot1: 11, Slot2: 4}, {Slot1: 11, Slot2: 9}}}
	slot2Wins = ScoreInput{SetScores: []bracket.SetScore{{Slot1: 8, Slot2: 11}, {Slot1: 11, Slot2: 13}}}
)

// knockout registers n singles players and generates a direct knockout.
// The returned finder looks matches up fresh from the store.
func (env *testEnv) knockout(t *testing.T, n int) (*bracket.Tournament, []bracket.Participant, func(round, position int) *bracket.Match) {
	t.Helper()
	tournament := env.newTournament(t)
	participants := env.register(t, tournament.ID, "singles", n)
	_, err := env.fixtures.GenerateDirectKnockout(organizerCtx(), tournament.ID, "singles")
	require.NoError(t, err)

	find := func(round, position int) *bracket.Match {
		matches, err := env.stores.Matches.GetCategoryMatches(context.Background(), env.db, tournament.ID, "singles", bracket.KnockoutMatch)
		require.NoError(t, err)
		for _, m := range matches {
			if m.Round == round && m.BracketPosition == position {
				return &m
			}
		}
		t.Fatalf("no match at round %d position %d", round, position)
		return nil
	}
	return tournament, participants, find
}

func TestRecordScoreAdvancesWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	_, p, find := env.knockout(t, 4)

	semi1 := find(1, 0)
	result, err := env.matches.RecordScore(ctx, semi1.ID, slot1Wins)
	require.NoError(t, err)
	assert.Equal(t, p[0], result.Winner)
	assert.Equal(t, "11-4, 11-9", result.Summary)
	assert.False(t, result.Corrected)
	require.NotNil(t, result.AdvancedMatchID)

	final := find(2, 0)
	assert.Equal(t, final.ID, *result.AdvancedMatchID)
	require.NotNil(t, final.Slot1, "even position feeds slot 1")
	assert.Equal(t, p[0], *final.Slot1)
	assert.Nil(t, final.Slot2)

	stored := find(1, 0)
	assert.Equal(t, bracket.MatchCompleted, stored.Status)
	assert.Equal(t, 2, *stored.Score1)
	assert.Equal(t, 0, *stored.Score2)
	assert.Equal(t, "best_of_3", *stored.Format)
	assert.Equal(t, "standard", *stored.Rule)

	_, err = env.matches.RecordScore(ctx, find(1, 1).ID, slot2Wins)
	require.NoError(t, err)
	final = find(2, 0)
	require.NotNil(t, final.Slot2, "odd position feeds slot 2")
	assert.Equal(t, p[3], *final.Slot2)
	assert.True(t, final.Ready())

	history, err := env.matches.History(ctx, semi1.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, bracket.ActionCompleted, history[0].Action)
	assert.Equal(t, bracket.MatchPending, history[0].PreviousStatus)
	assert.Equal(t, bracket.MatchCompleted, history[0].NewStatus)
	assert.Equal(t, p[0], *history[0].NewWinner)
	assert.Equal(t, "Referee", history[0].ChangedBy)

	assert.Contains(t, env.hub.types(), live.EventMatchUpdated)
}

func TestRecordScoreRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	_, _, find := env.knockout(t, 4)
	semi := find(1, 0)

	testCases := []struct {
		name  string
		input ScoreInput
		kind  apperr.Kind
	}{
		{"no games", ScoreInput{}, apperr.KindValidation},
		{"tied game", ScoreInput{SetScores: []bracket.SetScore{{Slot1: 10, Slot2: 10}}}, apperr.KindValidation},
		{"undecided", ScoreInput{SetScores: []bracket.SetScore{{Slot1: 11, Slot2: 3}}}, apperr.KindValidation},
		{"game after decision", ScoreInput{SetScores: []bracket.SetScore{{Slot1: 11, Slot2: 3}, {Slot1: 11, Slot2: 3}, {Slot1: 11, Slot2: 3}}}, apperr.KindValidation},
		{"margin too small", ScoreInput{SetScores: []bracket.SetScore{{Slot1: 11, Slot2: 10}}, Format: "single_game"}, apperr.KindValidation},
		{"unknown format", ScoreInput{SetScores: slot1Wins.SetScores, Format: "best_of_7"}, apperr.KindValidation},
		{"unknown rule", ScoreInput{SetScores: slot1Wins.SetScores, Rule: "first_to_7"}, apperr.KindValidation},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.matches.RecordScore(ctx, semi.ID, tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err), err.Error())
		})
	}

	stored := find(1, 0)
	assert.Equal(t, bracket.MatchPending, stored.Status, "rejected scores leave the match untouched")
	assert.Nil(t, stored.Winner)

	// The final has no participants yet.
	_, err := env.matches.RecordScore(ctx, find(2, 0).ID, slot1Wins)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))

	_, err = env.matches.RecordScore(ctx, uuid.New(), slot1Wins)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRecordScoreGoldenPoint(t *testing.T) {
	env := newTestEnv(t)
	_, p, find := env.knockout(t, 2)

	result, err := env.matches.RecordScore(organizerCtx(), find(1, 0).ID, ScoreInput{
		SetScores: []bracket.SetScore{{Slot1: 10, Slot2: 11}},
		Format:    "single_game",
		Rule:      "golden_point",
	})
	require.NoError(t, err)
	assert.Equal(t, p[1], result.Winner)
	assert.Nil(t, result.AdvancedMatchID, "the final feeds nothing")
}

func TestRecordScoreCorrection(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	_, p, find := env.knockout(t, 4)
	semi := find(1, 0)

	_, err := env.matches.RecordScore(ctx, semi.ID, slot1Wins)
	require.NoError(t, err)

	corrected := ScoreInput{SetScores: []bracket.SetScore{{Slot1: 9, Slot2: 11}, {Slot1: 11, Slot2: 6}, {Slot1: 11, Slot2: 8}}}
	result, err := env.matches.RecordScore(ctx, semi.ID, corrected)
	require.NoError(t, err)
	assert.True(t, result.Corrected)
	assert.Equal(t, p[0], result.Winner)
	assert.Nil(t, result.AdvancedMatchID, "corrections do not advance again")

	stored := find(1, 0)
	assert.Equal(t, corrected.SetScores, stored.SetScores)
	assert.Equal(t, 2, *stored.Score1)
	assert.Equal(t, 1, *stored.Score2)

	_, err = env.matches.RecordScore(ctx, semi.ID, slot2Wins)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPrecondition), "a correction may not change the winner")

	final := find(2, 0)
	assert.Equal(t, p[0], *final.Slot1)
	assert.Nil(t, final.Slot2)

	history, err := env.matches.History(ctx, semi.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, bracket.ActionCorrected, history[1].Action)
	assert.Equal(t, slot1Wins.SetScores, history[1].PreviousSetScores)
	assert.Equal(t, corrected.SetScores, history[1].NewSetScores)
}

func TestByeCascadeAndTournamentCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	tournament, p, find := env.knockout(t, 6)

	// Round 2 position 1 waits on a single feeder.
	waiting := find(2, 1)
	assert.Equal(t, bracket.MatchPending, waiting.Status)
	assert.False(t, waiting.IsBye)

	result, err := env.matches.RecordScore(ctx, find(1, 2).ID, slot2Wins)
	require.NoError(t, err)
	require.NotNil(t, result.AdvancedMatchID)
	assert.Equal(t, waiting.ID, *result.AdvancedMatchID)

	waiting = find(2, 1)
	assert.True(t, waiting.IsBye)
	assert.Equal(t, bracket.MatchCompleted, waiting.Status)
	assert.Equal(t, p[5], *waiting.Winner)
	final := find(3, 0)
	require.NotNil(t, final.Slot2)
	assert.Equal(t, p[5], *final.Slot2)

	history, err := env.matches.History(ctx, waiting.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, bracket.ActionBye, history[0].Action)

	_, err = env.matches.RecordScore(ctx, find(1, 0).ID, slot1Wins)
	require.NoError(t, err)
	_, err = env.matches.RecordScore(ctx, find(1, 1).ID, slot1Wins)
	require.NoError(t, err)
	_, err = env.matches.RecordScore(ctx, find(2, 0).ID, slot2Wins)
	require.NoError(t, err)

	final = find(3, 0)
	assert.Equal(t, p[2], *final.Slot1)
	data, err := env.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentStarted, data.Tournament.Status)
	require.NotNil(t, data.NextMatchID)
	assert.Equal(t, final.ID, *data.NextMatchID)

	result, err = env.matches.RecordScore(ctx, final.ID, slot1Wins)
	require.NoError(t, err)
	assert.Equal(t, p[2], result.Winner)

	data, err = env.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, data.Tournament.Status)
	assert.Nil(t, data.NextMatchID)

	played := 0
	for _, m := range data.Matches {
		assert.Equal(t, bracket.MatchCompleted, m.Status)
		if !m.IsBye {
			played++
		}
	}
	assert.Equal(t, len(p)-1, played, "n participants need n-1 played matches")
}

func TestCancelMatchSettlesNextMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	tournament, p, find := env.knockout(t, 4)

	cancelled, err := env.matches.CancelMatch(ctx, find(1, 1).ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCancelled, cancelled.Status)
	assert.Equal(t, bracket.MatchPending, find(2, 0).Status, "the other semi is still to be played")

	_, err = env.matches.CancelMatch(ctx, cancelled.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))

	_, err = env.matches.RecordScore(ctx, cancelled.ID, slot1Wins)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))

	result, err := env.matches.RecordScore(ctx, find(1, 0).ID, slot1Wins)
	require.NoError(t, err)
	require.NotNil(t, result.AdvancedMatchID)

	final := find(2, 0)
	assert.True(t, final.IsBye)
	assert.Equal(t, p[0], *final.Winner)

	data, err := env.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, data.Tournament.Status)
}

func TestCancelBothFeedersCancelsNextMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	_, _, find := env.knockout(t, 4)

	_, err := env.matches.CancelMatch(ctx, find(1, 0).ID)
	require.NoError(t, err)
	_, err = env.matches.CancelMatch(ctx, find(1, 1).ID)
	require.NoError(t, err)

	final := find(2, 0)
	assert.Equal(t, bracket.MatchCancelled, final.Status)
	assert.Nil(t, final.Winner)
}

func TestLiveScoring(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	tournament := env.newTournament(t)
	env.register(t, tournament.ID, "singles", 3)
	pools, err := env.fixtures.GeneratePoolFixtures(ctx, PoolFixtureInput{TournamentID: tournament.ID})
	require.NoError(t, err)
	match := pools.Matches[0]

	_, err = env.matches.UpdateLiveScore(ctx, match.ID, LiveScoreInput{SetScores: []bracket.SetScore{{Slot1: 3, Slot2: 1}}})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPrecondition), "live scores need a started match")

	started, err := env.matches.StartMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, started.Status)

	pool, err := env.stores.Fixtures.GetPool(ctx, env.db, pools.Pools[0].ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PoolInProgress, pool.Status)

	_, err = env.matches.StartMatch(ctx, match.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))

	updated, err := env.matches.UpdateLiveScore(ctx, match.ID, LiveScoreInput{SetScores: []bracket.SetScore{{Slot1: 11, Slot2: 6}, {Slot1: 4, Slot2: 7}}})
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, updated.Status)
	assert.Nil(t, updated.Winner)
	assert.Equal(t, 1, *updated.Score1)
	assert.Equal(t, 0, *updated.Score2)

	_, err = env.matches.UpdateLiveScore(ctx, match.ID, LiveScoreInput{SetScores: []bracket.SetScore{{Slot1: 1}, {Slot1: 1}, {Slot1: 1}, {Slot1: 1}}})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = env.matches.CancelMatch(ctx, match.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPrecondition), "pool matches cannot be cancelled")

	_, err = env.matches.RecordScore(ctx, match.ID, slot1Wins)
	require.NoError(t, err)

	history, err := env.matches.History(ctx, match.ID)
	require.NoError(t, err)
	actions := make([]bracket.HistoryAction, len(history))
	for i, h := range history {
		actions[i] = h.Action
	}
	assert.Equal(t, []bracket.HistoryAction{bracket.ActionStarted, bracket.ActionLiveScore, bracket.ActionCompleted}, actions)
	assert.Equal(t, bracket.MatchInProgress, history[2].PreviousStatus)
}

func TestPoolCompletionAndStandings(t *testing.T) {
	env := newTestEnv(t)
	ctx := organizerCtx()
	tournament := env.newTournament(t)
	p := env.register(t, tournament.ID, "singles", 4)
	pools, err := env.fixtures.GeneratePoolFixtures(ctx, PoolFixtureInput{TournamentID: tournament.ID})
	require.NoError(t, err)
	poolID := pools.Pools[0].ID

	before, err := env.standings.ComputeStandings(ctx, poolID)
	require.NoError(t, err)
	assert.False(t, before.Complete)
	for _, s := range before.Standings {
		assert.Zero(t, s.Played)
	}

	env.completeAll(t, pools.Matches)

	after, err := env.standings.ComputeStandings(ctx, poolID)
	require.NoError(t, err)
	assert.True(t, after.Complete)
	assert.Equal(t, bracket.PoolCompleted, after.Pool.Status)
	require.Len(t, after.Standings, 4)
	for i, s := range after.Standings {
		assert.Equal(t, p[i], s.Participant)
		assert.Equal(t, 3-i, s.Wins)
		assert.Equal(t, i < 2, s.Advances)
	}

	data, err := env.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentStarted, data.Tournament.Status, "pools alone do not finish a tournament")

	_, err = env.standings.ComputeStandings(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestHistoryOfUnknownMatch(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.matches.History(organizerCtx(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
