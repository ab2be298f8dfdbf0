package brackets

import (
	"testing"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(g models.GroupID, s models.Segment, n int) models.MatchKey {
	return models.MatchKey{Group: g, Segment: s, Number: n}
}

func TestBuildMatchCounts(t *testing.T) {
	cases := map[int]int{4: 13, 8: 29, 16: 61, 32: 125}
	for n, want := range cases {
		topo, err := Build(n)
		require.NoError(t, err, "group size %d", n)
		assert.Equal(t, want, topo.MatchCount(), "group size %d", n)
		assert.Len(t, topo.Edges, 6*n-6, "group size %d", n)
		assert.Equal(t, n, topo.GroupSize)
		assert.Equal(t, []models.GroupID{models.GroupA, models.GroupB}, topo.Groups)
	}
}

func TestBuildRejectsInvalidGroupSize(t *testing.T) {
	for _, n := range []int{-4, 0, 1, 2, 3, 6, 12, 24} {
		_, err := Build(n)
		assert.ErrorIs(t, err, ErrTopology, "group size %d", n)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	first, err := Build(16)
	require.NoError(t, err)
	second, err := NewTwoGroupDoubleElimination().Build(16)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEverySlotHasExactlyOneInput(t *testing.T) {
	for _, n := range []int{4, 8, 16, 32} {
		topo, err := Build(n)
		require.NoError(t, err)

		for _, m := range topo.Matches {
			inputs := map[int]int{}
			for i, seed := range m.Seeds {
				if seed > 0 {
					inputs[i+1]++
				}
			}
			for _, e := range topo.Inbound(m.Key) {
				inputs[e.Slot]++
			}
			assert.Equal(t, map[int]int{1: 1, 2: 1}, inputs, "match %s, group size %d", m.Key, n)
		}
	}
}

func TestOutboundEdges(t *testing.T) {
	topo, err := Build(8)
	require.NoError(t, err)

	for _, m := range topo.Matches {
		out := topo.Outbound(m.Key)
		outcomes := map[models.Outcome]int{}
		for _, e := range out {
			outcomes[e.Outcome]++
		}
		switch m.Key.Segment.(type) {
		case models.WinnersRound:
			assert.Equal(t, map[models.Outcome]int{models.OutcomeWinner: 1, models.OutcomeLoser: 1}, outcomes, m.Key.String())
		case models.CrossFinal:
			assert.Empty(t, out, m.Key.String())
		default:
			assert.Equal(t, map[models.Outcome]int{models.OutcomeWinner: 1}, outcomes, m.Key.String())
		}
	}
}

func TestWinnersLadderRouting(t *testing.T) {
	topo, err := Build(8)
	require.NoError(t, err)

	for _, m := range topo.Matches {
		if m.Key.Segment == models.WinnersRound(1) {
			assert.Equal(t, [2]int{2*m.Key.Number - 1, 2 * m.Key.Number}, m.Seeds)
		} else {
			assert.Equal(t, [2]int{}, m.Seeds, m.Key.String())
		}
	}

	in := topo.Inbound(key(models.GroupA, models.WinnersRound(2), 2))
	require.Len(t, in, 2)
	assert.Equal(t, EdgeSpec{From: key(models.GroupA, models.WinnersRound(1), 3), Outcome: models.OutcomeWinner, To: key(models.GroupA, models.WinnersRound(2), 2), Slot: 1}, in[0])
	assert.Equal(t, EdgeSpec{From: key(models.GroupA, models.WinnersRound(1), 4), Outcome: models.OutcomeWinner, To: key(models.GroupA, models.WinnersRound(2), 2), Slot: 2}, in[1])
}

func TestLosersLadders(t *testing.T) {
	topo, err := Build(16)
	require.NoError(t, err)
	sizes := topo.SegmentSizes()

	// LA: восемь проигравших первого раунда
	assert.Equal(t, 4, sizes[models.SegmentKey{Group: models.GroupA, Segment: models.LosersA(1)}])
	assert.Equal(t, 2, sizes[models.SegmentKey{Group: models.GroupA, Segment: models.LosersA(2)}])
	assert.Equal(t, 1, sizes[models.SegmentKey{Group: models.GroupA, Segment: models.LosersA(3)}])

	// LB: проигравшие второго и третьего раундов
	assert.Equal(t, 2, sizes[models.SegmentKey{Group: models.GroupB, Segment: models.LosersB(1)}])
	assert.Equal(t, 2, sizes[models.SegmentKey{Group: models.GroupB, Segment: models.LosersB(2)}])
	assert.Equal(t, 1, sizes[models.SegmentKey{Group: models.GroupB, Segment: models.LosersB(3)}])

	in := topo.Inbound(key(models.GroupB, models.LosersB(2), 1))
	require.Len(t, in, 2)
	assert.Equal(t, key(models.GroupB, models.LosersB(1), 1), in[0].From)
	assert.Equal(t, models.OutcomeWinner, in[0].Outcome)
	assert.Equal(t, key(models.GroupB, models.WinnersRound(3), 2), in[1].From)
	assert.Equal(t, models.OutcomeLoser, in[1].Outcome)
}

func TestSmallestGroupSplitsFirstRoundLosers(t *testing.T) {
	topo, err := Build(4)
	require.NoError(t, err)

	for _, k := range topo.Segments() {
		switch k.Segment.(type) {
		case models.LosersA, models.LosersB:
			t.Fatalf("unexpected ladder segment %s", k)
		}
	}

	gf1 := topo.Inbound(key(models.GroupA, models.GroupFinal{}, 1))
	require.Len(t, gf1, 2)
	assert.Equal(t, Source{Match: key(models.GroupA, models.WinnersRound(2), 1), Outcome: models.OutcomeWinner}, Source{Match: gf1[0].From, Outcome: gf1[0].Outcome})
	assert.Equal(t, Source{Match: key(models.GroupA, models.WinnersRound(1), 1), Outcome: models.OutcomeLoser}, Source{Match: gf1[1].From, Outcome: gf1[1].Outcome})

	gf2 := topo.Inbound(key(models.GroupA, models.GroupFinal{}, 2))
	require.Len(t, gf2, 2)
	assert.Equal(t, Source{Match: key(models.GroupA, models.WinnersRound(2), 1), Outcome: models.OutcomeLoser}, Source{Match: gf2[0].From, Outcome: gf2[0].Outcome})
	assert.Equal(t, Source{Match: key(models.GroupA, models.WinnersRound(1), 2), Outcome: models.OutcomeLoser}, Source{Match: gf2[1].From, Outcome: gf2[1].Outcome})
}

func TestCrossStageRouting(t *testing.T) {
	topo, err := Build(8)
	require.NoError(t, err)

	sf1 := topo.Inbound(key(models.NoGroup, models.CrossSemifinal{}, 1))
	require.Len(t, sf1, 2)
	assert.Equal(t, key(models.GroupA, models.GroupFinal{}, 1), sf1[0].From)
	assert.Equal(t, key(models.GroupB, models.GroupFinal{}, 2), sf1[1].From)

	sf2 := topo.Inbound(key(models.NoGroup, models.CrossSemifinal{}, 2))
	require.Len(t, sf2, 2)
	assert.Equal(t, key(models.GroupB, models.GroupFinal{}, 1), sf2[0].From)
	assert.Equal(t, key(models.GroupA, models.GroupFinal{}, 2), sf2[1].From)

	final := topo.Inbound(key(models.NoGroup, models.CrossFinal{}, 1))
	require.Len(t, final, 2)
	assert.Equal(t, key(models.NoGroup, models.CrossSemifinal{}, 1), final[0].From)
	assert.Equal(t, key(models.NoGroup, models.CrossSemifinal{}, 2), final[1].From)
}

func TestGateSegments(t *testing.T) {
	topo, err := Build(8)
	require.NoError(t, err)

	assert.Nil(t, topo.GateSegments(key(models.GroupA, models.WinnersRound(2), 1)))
	assert.Nil(t, topo.GateSegments(key(models.GroupA, models.LosersA(2), 1)))

	assert.Equal(t, []models.SegmentKey{
		{Group: models.GroupA, Segment: models.WinnersRound(3)},
		{Group: models.GroupA, Segment: models.LosersA(2)},
	}, topo.GateSegments(key(models.GroupA, models.GroupFinal{}, 1)))

	assert.Equal(t, []models.SegmentKey{
		{Group: models.GroupA, Segment: models.GroupFinal{}},
		{Group: models.GroupB, Segment: models.GroupFinal{}},
	}, topo.GateSegments(key(models.NoGroup, models.CrossSemifinal{}, 1)))

	assert.Equal(t, []models.SegmentKey{
		{Group: models.NoGroup, Segment: models.CrossSemifinal{}},
	}, topo.GateSegments(key(models.NoGroup, models.CrossFinal{}, 1)))
}

func TestSegmentsInPlayOrder(t *testing.T) {
	topo, err := Build(4)
	require.NoError(t, err)

	var names []string
	for _, k := range topo.Segments() {
		names = append(names, k.String())
	}
	assert.Equal(t, []string{
		"A/winners_r1", "A/winners_r2", "A/group_final",
		"B/winners_r1", "B/winners_r2", "B/group_final",
		"cross_semifinal", "cross_final",
	}, names)
}

func TestSelfCheckCatchesBrokenLayout(t *testing.T) {
	topo, err := Build(4)
	require.NoError(t, err)

	broken := *topo
	broken.Edges = append([]EdgeSpec(nil), topo.Edges...)
	broken.Edges[0].Slot = 3
	assert.ErrorIs(t, broken.selfCheck(), ErrTopology)

	broken.Edges = append([]EdgeSpec(nil), topo.Edges[1:]...)
	assert.ErrorIs(t, broken.selfCheck(), ErrTopology)

	broken.Edges = append(append([]EdgeSpec(nil), topo.Edges...), EdgeSpec{
		From:    key(models.NoGroup, models.CrossFinal{}, 1),
		Outcome: models.OutcomeWinner,
		To:      key(models.GroupA, models.WinnersRound(2), 1),
		Slot:    1,
	})
	assert.ErrorIs(t, broken.selfCheck(), ErrTopology)
}
