package brackets

import (
	"errors"

	"github.com/Dosada05/tournament-bracket/models"
)

var ErrTopology = errors.New("invalid bracket topology")

// MinGroupSize is the smallest group that can fill both losers ladders.
const MinGroupSize = 4

// Source is one outcome of a match that feeds a later slot.
type Source struct {
	Match   models.MatchKey
	Outcome models.Outcome
}

// MatchSpec describes one match of the topology. Seeds holds the 1-based
// position in the group roster for slots filled directly at build time, 0 otherwise.
type MatchSpec struct {
	Key   models.MatchKey
	Seeds [2]int
}

type EdgeSpec struct {
	From    models.MatchKey
	Outcome models.Outcome
	To      models.MatchKey
	Slot    int
}

// TopologyBuilder computes a bracket layout for a group size.
type TopologyBuilder interface {
	Build(groupSize int) (*Topology, error)
	Name() string
}

type twoGroupDoubleElimination struct{}

func NewTwoGroupDoubleElimination() TopologyBuilder {
	return twoGroupDoubleElimination{}
}

func (twoGroupDoubleElimination) Name() string {
	return "TwoGroupDoubleElimination"
}

func (twoGroupDoubleElimination) Build(groupSize int) (*Topology, error) {
	return Build(groupSize)
}
