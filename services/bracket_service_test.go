package services

import (
	"context"
	"testing"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBracket(t *testing.T) {
	e := newEngine(t)
	view := e.create(t, "t-1", 4)

	assert.Equal(t, models.TournamentStatusInProgress, view.Tournament.Status)
	assert.Equal(t, ProgressView{Completed: 0, Total: 13}, view.Progress)
	assert.Len(t, view.Edges, 18)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}, view.Tournament.Roster)

	require.Len(t, view.Segments, 8)
	assert.Equal(t, "A/winners_r1", view.Segments[0].Key)
	assert.Equal(t, "cross_final", view.Segments[7].Key)

	opening := view.Segments[0].Matches
	require.Len(t, opening, 2)
	assert.Equal(t, "p1", *opening[0].Slot1)
	assert.Equal(t, "p2", *opening[0].Slot2)
	assert.Equal(t, models.MatchStatusReady, opening[0].Status)
	assert.Equal(t, 2, opening[0].FilledSlots)

	ready := e.events.ofType(models.EventMatchBecameReady)
	assert.Len(t, ready, 4)
	e.requireConsistent(t, "t-1")
}

func TestCreateBracketAlternateSplit(t *testing.T) {
	e := newEngine(t)
	_, err := e.brackets.CreateBracket(context.Background(), CreateBracketInput{
		TournamentID: "t-alt",
		Participants: players(8),
		SplitPolicy:  models.SplitAlternate,
	})
	require.NoError(t, err)

	b1 := e.match(t, "t-alt", key(models.GroupB, models.WinnersRound(1), 1))
	assert.Equal(t, "p2", *b1.Slot1)
	assert.Equal(t, "p4", *b1.Slot2)
}

func TestCreateBracketValidation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateBracketInput
		err   error
	}{
		{"missing id", CreateBracketInput{Participants: players(8)}, ErrBuild},
		{"bad group size", CreateBracketInput{TournamentID: "x", Participants: players(12), GroupSize: 6}, ErrTopology},
		{"wrong roster size", CreateBracketInput{TournamentID: "x", Participants: players(7)}, ErrBuild},
		{"unknown split", CreateBracketInput{TournamentID: "x", Participants: players(8), SplitPolicy: "random"}, ErrBuild},
		{"duplicate player", CreateBracketInput{TournamentID: "x", Participants: append(players(7), ParticipantInput{ID: "p1"})}, ErrBuild},
		{"reserved prefix", CreateBracketInput{TournamentID: "x", Participants: append(players(7), ParticipantInput{ID: "bye:9"})}, ErrBuild},
		{"bye with id", CreateBracketInput{TournamentID: "x", Participants: append(players(7), ParticipantInput{ID: "p8", Bye: true})}, ErrBuild},
		{"two byes paired", CreateBracketInput{TournamentID: "x", Participants: append(players(6), ParticipantInput{Bye: true}, ParticipantInput{Bye: true})}, ErrBuild},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.brackets.CreateBracket(ctx, tc.input)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := e.brackets.GetBracketView(ctx, "x")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestCreateBracketTwice(t *testing.T) {
	e := newEngine(t)
	e.create(t, "t-1", 4)

	_, err := e.brackets.CreateBracket(context.Background(), CreateBracketInput{TournamentID: "t-1", Participants: players(8)})
	assert.ErrorIs(t, err, ErrBracketExists)

	matches, err := e.brackets.ListMatches(context.Background(), "t-1", nil)
	require.NoError(t, err)
	assert.Len(t, matches, 13)
}

func TestByeAutoAdvances(t *testing.T) {
	e := newEngine(t)
	roster := players(8)
	roster[1] = ParticipantInput{Bye: true}
	roster[6] = ParticipantInput{Bye: true}

	_, err := e.brackets.CreateBracket(context.Background(), CreateBracketInput{TournamentID: "t-bye", Participants: roster})
	require.NoError(t, err)

	a1 := e.match(t, "t-bye", key(models.GroupA, models.WinnersRound(1), 1))
	assert.Equal(t, models.MatchStatusCompleted, a1.Status)
	assert.Equal(t, "p1", *a1.WinnerID)
	assert.Equal(t, "bye:1", *a1.LoserID)

	b2 := e.match(t, "t-bye", key(models.GroupB, models.WinnersRound(1), 2))
	assert.Equal(t, "p8", *b2.WinnerID)
	assert.Equal(t, "bye:2", *b2.LoserID)

	w2 := e.match(t, "t-bye", key(models.GroupA, models.WinnersRound(2), 1))
	assert.Equal(t, "p1", *w2.Slot1)
	assert.Nil(t, w2.Slot2)

	_, err = e.matches.ReportMatchResult(context.Background(), ReportResultInput{MatchID: a1.ID, Score1: 0, Score2: 2, Correction: true})
	assert.ErrorIs(t, err, ErrResultConflict)

	e.requireConsistent(t, "t-bye")
	e.playSlotOneWins(t, "t-bye")

	tour, err := e.repo.GetTournament(context.Background(), "t-bye")
	require.NoError(t, err)
	assert.Equal(t, models.TournamentStatusCompleted, tour.Status)
	require.NotNil(t, tour.ChampionID)
	assert.False(t, models.IsBye(*tour.ChampionID))
	e.requireConsistent(t, "t-bye")
}

func TestGetMatchAndListMatches(t *testing.T) {
	e := newEngine(t)
	e.create(t, "t-1", 4)
	ctx := context.Background()

	ready := models.MatchStatusReady
	list, err := e.brackets.ListMatches(ctx, "t-1", &ready)
	require.NoError(t, err)
	assert.Len(t, list, 4)

	view, err := e.brackets.GetMatch(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "A/winners_r1#1", view.Label)
	assert.Equal(t, models.KindWinners, view.Segment)

	_, err = e.brackets.GetMatch(ctx, 9999)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = e.brackets.ListMatches(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestTopologyDefaults(t *testing.T) {
	e := newEngine(t)

	topo, err := e.brackets.Topology(0)
	require.NoError(t, err)
	assert.Equal(t, 4, topo.GroupSize)

	_, err = e.brackets.Topology(10)
	assert.ErrorIs(t, err, ErrTopology)
}

func TestGetBracketViewReadsOneTransaction(t *testing.T) {
	repo := &trackingRepo{BracketRepository: repositories.NewMemoryBracketRepository()}
	e := newEngineOn(t, repo)
	e.create(t, "t-1", 4)

	repo.reset()
	view, err := e.brackets.GetBracketView(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 13, view.Progress.Total)
	assert.Len(t, view.Edges, 18)

	_, directReads := repo.counts()
	assert.Zero(t, directReads)

	_, err = e.brackets.GetBracketView(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
