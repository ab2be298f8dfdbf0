package brackets

import (
	"fmt"

	"github.com/Dosada05/tournament-bracket/models"
)

// winnersLadder adds rounds 1..log2(n) of the group's winners ladder and
// returns the losers of every round, indexed by round.
func (b *builder) winnersLadder(group models.GroupID, n int) [][]Source {
	rounds := log2(n)
	losers := make([][]Source, rounds+1)

	for r := 1; r <= rounds; r++ {
		count := n >> uint(r)
		for m := 1; m <= count; m++ {
			key := models.MatchKey{Group: group, Segment: models.WinnersRound(r), Number: m}
			spec := MatchSpec{Key: key}
			if r == 1 {
				spec.Seeds = [2]int{2*m - 1, 2 * m}
			}
			b.addMatch(spec)

			if r < rounds {
				next := models.MatchKey{Group: group, Segment: models.WinnersRound(r + 1), Number: (m + 1) / 2}
				b.route(Source{Match: key, Outcome: models.OutcomeWinner}, next, slotFor(m))
			}
			losers[r] = append(losers[r], Source{Match: key, Outcome: models.OutcomeLoser})
		}
	}
	return losers
}

// losersLadder builds a ladder fed by waves of losers and returns its champion.
// The first wave seeds the pool. Before each later wave the pool is halved down
// to the wave size, then survivors meet the newcomers in reverse order so
// players from the same winners branch do not meet again immediately.
func (b *builder) losersLadder(group models.GroupID, segment func(round int) models.Segment, waves [][]Source) (Source, error) {
	if len(waves) == 0 || len(waves[0]) == 0 {
		return Source{}, fmt.Errorf("%w: group %s ladder has no entrants", ErrTopology, group)
	}

	round := 0
	pair := func(left, right []Source) []Source {
		round++
		next := make([]Source, len(left))
		for i := range left {
			key := models.MatchKey{Group: group, Segment: segment(round), Number: i + 1}
			b.addMatch(MatchSpec{Key: key})
			b.route(left[i], key, 1)
			b.route(right[i], key, 2)
			next[i] = Source{Match: key, Outcome: models.OutcomeWinner}
		}
		return next
	}
	halve := func(pool []Source) []Source {
		left := make([]Source, 0, len(pool)/2)
		right := make([]Source, 0, len(pool)/2)
		for i := 0; i+1 < len(pool); i += 2 {
			left = append(left, pool[i])
			right = append(right, pool[i+1])
		}
		return pair(left, right)
	}

	pool := append([]Source(nil), waves[0]...)
	if !isPowerOfTwo(len(pool)) {
		return Source{}, fmt.Errorf("%w: ladder wave of %d players", ErrTopology, len(pool))
	}
	for _, wave := range waves[1:] {
		for len(pool) > len(wave) {
			pool = halve(pool)
		}
		if len(pool) != len(wave) {
			return Source{}, fmt.Errorf("%w: ladder pool %d cannot meet wave of %d", ErrTopology, len(pool), len(wave))
		}
		reversed := make([]Source, len(wave))
		for i := range wave {
			reversed[i] = wave[len(wave)-1-i]
		}
		pool = pair(pool, reversed)
	}
	for len(pool) > 1 {
		pool = halve(pool)
	}
	return pool[0], nil
}

// crossStage joins the group qualifiers into two semifinals and a final.
// qualifiers[g][0] is the winners-side qualifier, [1] the losers-side one.
func (b *builder) crossStage(qualifiers map[models.GroupID][2]Source) {
	a, bq := qualifiers[models.GroupA], qualifiers[models.GroupB]

	sf1 := models.MatchKey{Group: models.NoGroup, Segment: models.CrossSemifinal{}, Number: 1}
	sf2 := models.MatchKey{Group: models.NoGroup, Segment: models.CrossSemifinal{}, Number: 2}
	final := models.MatchKey{Group: models.NoGroup, Segment: models.CrossFinal{}, Number: 1}

	b.addMatch(MatchSpec{Key: sf1})
	b.addMatch(MatchSpec{Key: sf2})
	b.addMatch(MatchSpec{Key: final})

	b.route(a[0], sf1, 1)
	b.route(bq[1], sf1, 2)
	b.route(bq[0], sf2, 1)
	b.route(a[1], sf2, 2)

	b.route(Source{Match: sf1, Outcome: models.OutcomeWinner}, final, 1)
	b.route(Source{Match: sf2, Outcome: models.OutcomeWinner}, final, 2)
}

// slotFor maps an odd match number to slot 1 and an even one to slot 2.
func slotFor(matchNumber int) int {
	if matchNumber%2 == 1 {
		return 1
	}
	return 2
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n int) int {
	r := 0
	for n > 1 {
		n >>= 1
		r++
	}
	return r
}
