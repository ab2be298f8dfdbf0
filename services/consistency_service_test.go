package services

import (
	"context"
	"testing"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *engine) tamper(t *testing.T, matchID int64, change func(m *models.Match)) {
	t.Helper()
	err := e.repo.WithinTx(context.Background(), func(ctx context.Context, tx repositories.BracketTx) error {
		m, err := tx.LockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		change(m)
		return tx.UpdateMatch(ctx, m)
	})
	require.NoError(t, err)
}

func findingKinds(report *ConsistencyReport) map[FindingKind][]int64 {
	kinds := make(map[FindingKind][]int64)
	for _, f := range report.Findings {
		kinds[f.Kind] = append(kinds[f.Kind], f.MatchID)
	}
	return kinds
}

func TestValidateConsistencyCleanBracket(t *testing.T) {
	e := newEngine(t)
	e.create(t, "t-1", 8)

	report, err := e.consistency.ValidateConsistency(context.Background(), "t-1")
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 29, report.MatchesChecked)
	assert.Empty(t, report.Findings)
	assert.Equal(t, 0, e.metrics.findings["t-1"])

	_, err = e.consistency.ValidateConsistency(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestValidateConsistencyFindsCorruption(t *testing.T) {
	e := newEngine(t)
	e.create(t, "t-1", 4)
	w1 := e.match(t, "t-1", key(models.GroupA, models.WinnersRound(1), 1))
	e.report(t, w1.ID, 2, 0)

	w2 := e.match(t, "t-1", key(models.GroupA, models.WinnersRound(2), 1))
	gf1 := e.match(t, "t-1", key(models.GroupA, models.GroupFinal{}, 1))
	final := e.match(t, "t-1", key(models.NoGroup, models.CrossFinal{}, 1))
	b1 := e.match(t, "t-1", key(models.GroupB, models.WinnersRound(1), 1))

	e.tamper(t, w2.ID, func(m *models.Match) {
		wrong := "p4"
		m.Slot1 = &wrong
	})
	e.tamper(t, gf1.ID, func(m *models.Match) {
		m.Slot2 = nil
	})
	e.tamper(t, final.ID, func(m *models.Match) {
		m.Status = models.MatchStatusReady
	})
	e.tamper(t, b1.ID, func(m *models.Match) {
		m.Status = models.MatchStatusCompleted
	})

	report, err := e.consistency.ValidateConsistency(context.Background(), "t-1")
	require.NoError(t, err)
	assert.False(t, report.Consistent)

	kinds := findingKinds(report)
	assert.Equal(t, []int64{w2.ID}, kinds[FindingSlotSourceMismatch])
	assert.Equal(t, []int64{gf1.ID}, kinds[FindingMissedAdvancement])
	assert.Equal(t, []int64{gf1.ID}, kinds[FindingFilledCountMismatch])
	assert.Equal(t, []int64{final.ID}, kinds[FindingPrematureReady])
	assert.Equal(t, []int64{b1.ID}, kinds[FindingCompletedWithoutWinner])
	assert.Equal(t, len(report.Findings), e.metrics.findings["t-1"])
}

func TestAuditFindsDuplicatePlayerAndStuckGate(t *testing.T) {
	e := newEngine(t)
	e.create(t, "t-1", 4)
	e.playSlotOneWins(t, "t-1", key(models.GroupA, models.GroupFinal{}, 2))

	gf2 := e.match(t, "t-1", key(models.GroupA, models.GroupFinal{}, 2))
	sf1 := e.match(t, "t-1", key(models.NoGroup, models.CrossSemifinal{}, 1))
	b2 := e.match(t, "t-1", key(models.GroupB, models.WinnersRound(1), 2))

	// GF2 завершён вручную, но SF1 так и остался ждать
	e.tamper(t, gf2.ID, func(m *models.Match) {
		winner, loser := *m.Slot1, *m.Slot2
		m.Status = models.MatchStatusCompleted
		m.WinnerID, m.LoserID = &winner, &loser
	})
	e.tamper(t, b2.ID, func(m *models.Match) {
		dup := "p5"
		m.Slot1 = &dup
		m.WinnerID = &dup
	})

	report, err := e.consistency.ValidateConsistency(context.Background(), "t-1")
	require.NoError(t, err)
	kinds := findingKinds(report)
	assert.Contains(t, kinds[FindingStuckGate], sf1.ID)
	assert.Equal(t, []int64{b2.ID}, kinds[FindingDuplicatePlayer])
}

func TestSweepChecksTournamentsInProgress(t *testing.T) {
	e := newEngine(t)
	e.create(t, "t-2", 4)
	e.create(t, "t-1", 4)
	e.create(t, "t-done", 4)
	e.playSlotOneWins(t, "t-done")

	w1 := e.match(t, "t-2", key(models.GroupA, models.WinnersRound(1), 1))
	e.tamper(t, w1.ID, func(m *models.Match) { m.FilledSlots = 1 })

	reports, err := e.consistency.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "t-1", reports[0].TournamentID)
	assert.True(t, reports[0].Consistent)
	assert.Equal(t, "t-2", reports[1].TournamentID)
	assert.False(t, reports[1].Consistent)
}
