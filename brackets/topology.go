package brackets

import (
	"fmt"
	"sort"

	"github.com/Dosada05/tournament-bracket/models"
)

// Topology is the full match and edge layout for two groups plus the cross stage.
// It is computed without touching storage and is identical for equal group sizes.
type Topology struct {
	GroupSize int
	Groups    []models.GroupID
	Matches   []MatchSpec
	Edges     []EdgeSpec
}

type builder struct {
	t *Topology
}

func (b *builder) addMatch(spec MatchSpec) {
	b.t.Matches = append(b.t.Matches, spec)
}

func (b *builder) route(from Source, to models.MatchKey, slot int) {
	b.t.Edges = append(b.t.Edges, EdgeSpec{From: from.Match, Outcome: from.Outcome, To: to, Slot: slot})
}

// Build lays out a two-group double elimination bracket for groupSize players
// per group.
func Build(groupSize int) (*Topology, error) {
	if groupSize < MinGroupSize || !isPowerOfTwo(groupSize) {
		return nil, fmt.Errorf("%w: group size %d must be a power of two >= %d", ErrTopology, groupSize, MinGroupSize)
	}

	b := &builder{t: &Topology{
		GroupSize: groupSize,
		Groups:    []models.GroupID{models.GroupA, models.GroupB},
	}}

	qualifiers := make(map[models.GroupID][2]Source, len(b.t.Groups))
	for _, g := range b.t.Groups {
		q, err := b.group(g, groupSize)
		if err != nil {
			return nil, err
		}
		qualifiers[g] = q
	}
	b.crossStage(qualifiers)

	if err := b.t.selfCheck(); err != nil {
		return nil, err
	}
	return b.t, nil
}

func (b *builder) group(g models.GroupID, n int) ([2]Source, error) {
	rounds := log2(n)
	losers := b.winnersLadder(g, n)

	wavesA := [][]Source{losers[1]}
	var wavesB [][]Source
	for r := 2; r < rounds; r++ {
		wavesB = append(wavesB, losers[r])
	}
	if len(wavesB) == 0 {
		// smallest group: round one losers are shared between the ladders
		half := len(losers[1]) / 2
		wavesA = [][]Source{losers[1][:half]}
		wavesB = [][]Source{losers[1][half:]}
	}

	champA, err := b.losersLadder(g, func(r int) models.Segment { return models.LosersA(r) }, wavesA)
	if err != nil {
		return [2]Source{}, err
	}
	champB, err := b.losersLadder(g, func(r int) models.Segment { return models.LosersB(r) }, wavesB)
	if err != nil {
		return [2]Source{}, err
	}

	winnersFinal := models.MatchKey{Group: g, Segment: models.WinnersRound(rounds), Number: 1}
	gf1 := models.MatchKey{Group: g, Segment: models.GroupFinal{}, Number: 1}
	gf2 := models.MatchKey{Group: g, Segment: models.GroupFinal{}, Number: 2}
	b.addMatch(MatchSpec{Key: gf1})
	b.addMatch(MatchSpec{Key: gf2})

	b.route(Source{Match: winnersFinal, Outcome: models.OutcomeWinner}, gf1, 1)
	b.route(champA, gf1, 2)
	b.route(Source{Match: winnersFinal, Outcome: models.OutcomeLoser}, gf2, 1)
	b.route(champB, gf2, 2)

	return [2]Source{
		{Match: gf1, Outcome: models.OutcomeWinner},
		{Match: gf2, Outcome: models.OutcomeWinner},
	}, nil
}

func (t *Topology) MatchCount() int {
	return len(t.Matches)
}

// Inbound returns the edges feeding a match, ordered by slot.
func (t *Topology) Inbound(key models.MatchKey) []EdgeSpec {
	var in []EdgeSpec
	for _, e := range t.Edges {
		if e.To == key {
			in = append(in, e)
		}
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Slot < in[j].Slot })
	return in
}

// Outbound returns the edges leaving a match.
func (t *Topology) Outbound(key models.MatchKey) []EdgeSpec {
	var out []EdgeSpec
	for _, e := range t.Edges {
		if e.From == key {
			out = append(out, e)
		}
	}
	return out
}

// GateSegments lists the segments that must be fully completed before a gated
// match may turn ready. Ungated matches return nil.
func (t *Topology) GateSegments(key models.MatchKey) []models.SegmentKey {
	if !models.IsGated(key.Segment) {
		return nil
	}
	seen := make(map[models.SegmentKey]bool)
	var segs []models.SegmentKey
	for _, e := range t.Inbound(key) {
		sk := e.From.SegmentKey()
		if !seen[sk] {
			seen[sk] = true
			segs = append(segs, sk)
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Less(segs[j]) })
	return segs
}

// SegmentSizes counts matches per segment.
func (t *Topology) SegmentSizes() map[models.SegmentKey]int {
	sizes := make(map[models.SegmentKey]int)
	for _, m := range t.Matches {
		sizes[m.Key.SegmentKey()]++
	}
	return sizes
}

// Segments returns the segment keys in play order.
func (t *Topology) Segments() []models.SegmentKey {
	sizes := t.SegmentSizes()
	keys := make([]models.SegmentKey, 0, len(sizes))
	for k := range sizes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

type slotRef struct {
	key  models.MatchKey
	slot int
}

type sourceRef struct {
	key     models.MatchKey
	outcome models.Outcome
}

func (t *Topology) selfCheck() error {
	index := make(map[models.MatchKey]MatchSpec, len(t.Matches))
	for _, m := range t.Matches {
		if _, dup := index[m.Key]; dup {
			return fmt.Errorf("%w: duplicate match %s", ErrTopology, m.Key)
		}
		index[m.Key] = m
	}

	filled := make(map[slotRef]bool)
	used := make(map[sourceRef]bool)
	outWinner := make(map[models.MatchKey]int)
	outLoser := make(map[models.MatchKey]int)

	for _, e := range t.Edges {
		if _, ok := index[e.From]; !ok {
			return fmt.Errorf("%w: edge from unknown match %s", ErrTopology, e.From)
		}
		if _, ok := index[e.To]; !ok {
			return fmt.Errorf("%w: edge to unknown match %s", ErrTopology, e.To)
		}
		if e.Slot != 1 && e.Slot != 2 {
			return fmt.Errorf("%w: edge into %s uses slot %d", ErrTopology, e.To, e.Slot)
		}
		src := sourceRef{key: e.From, outcome: e.Outcome}
		if used[src] {
			return fmt.Errorf("%w: %s %s routed twice", ErrTopology, e.From, e.Outcome)
		}
		used[src] = true
		dst := slotRef{key: e.To, slot: e.Slot}
		if filled[dst] {
			return fmt.Errorf("%w: slot %d of %s fed twice", ErrTopology, e.Slot, e.To)
		}
		filled[dst] = true

		switch e.Outcome {
		case models.OutcomeWinner:
			outWinner[e.From]++
		case models.OutcomeLoser:
			outLoser[e.From]++
		default:
			return fmt.Errorf("%w: unknown outcome %q", ErrTopology, e.Outcome)
		}
	}

	for _, m := range t.Matches {
		for i, seed := range m.Seeds {
			slot := i + 1
			fed := filled[slotRef{key: m.Key, slot: slot}]
			switch {
			case seed > 0 && fed:
				return fmt.Errorf("%w: slot %d of %s is both seeded and fed", ErrTopology, slot, m.Key)
			case seed == 0 && !fed:
				return fmt.Errorf("%w: slot %d of %s has no input", ErrTopology, slot, m.Key)
			case seed > 0 && m.Key.Segment != models.WinnersRound(1):
				return fmt.Errorf("%w: %s is seeded outside winners round 1", ErrTopology, m.Key)
			}
		}

		var wantWinner, wantLoser int
		switch m.Key.Segment.(type) {
		case models.WinnersRound:
			wantWinner, wantLoser = 1, 1
		case models.LosersA, models.LosersB, models.GroupFinal, models.CrossSemifinal:
			wantWinner, wantLoser = 1, 0
		case models.CrossFinal:
			wantWinner, wantLoser = 0, 0
		default:
			return fmt.Errorf("%w: unhandled segment %T", ErrTopology, m.Key.Segment)
		}
		if outWinner[m.Key] != wantWinner || outLoser[m.Key] != wantLoser {
			return fmt.Errorf("%w: %s has %d winner and %d loser edges, want %d and %d",
				ErrTopology, m.Key, outWinner[m.Key], outLoser[m.Key], wantWinner, wantLoser)
		}
	}

	for _, g := range t.Groups {
		exits := 0
		for _, e := range t.Edges {
			if e.From.Group == g && e.To.Group != g {
				exits++
			}
		}
		if exits != 2 {
			return fmt.Errorf("%w: group %s has %d qualifiers, want 2", ErrTopology, g, exits)
		}
	}

	return t.checkAcyclic()
}

func (t *Topology) checkAcyclic() error {
	indegree := make(map[models.MatchKey]int, len(t.Matches))
	next := make(map[models.MatchKey][]models.MatchKey)
	for _, m := range t.Matches {
		indegree[m.Key] = 0
	}
	for _, e := range t.Edges {
		indegree[e.To]++
		next[e.From] = append(next[e.From], e.To)
	}

	queue := make([]models.MatchKey, 0, len(t.Matches))
	for _, m := range t.Matches {
		if indegree[m.Key] == 0 {
			queue = append(queue, m.Key)
		}
	}
	visited := 0
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		visited++
		for _, n := range next[k] {
			indegree[n]--
			if indegree[n] == 0 {
				queue = append(queue, n)
			}
		}
	}
	if visited != len(t.Matches) {
		return fmt.Errorf("%w: advancement graph has a cycle", ErrTopology)
	}
	return nil
}
