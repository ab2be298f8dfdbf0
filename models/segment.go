package models

import (
	"fmt"
)

// SegmentKind is the persisted name of a bracket segment variant.
type SegmentKind string

const (
	KindWinners        SegmentKind = "winners"
	KindLosersA        SegmentKind = "losers_a"
	KindLosersB        SegmentKind = "losers_b"
	KindGroupFinal     SegmentKind = "group_final"
	KindCrossSemifinal SegmentKind = "cross_semifinal"
	KindCrossFinal     SegmentKind = "cross_final"
)

// Segment is a stage of the bracket. The set of implementations is closed:
// WinnersRound, LosersA, LosersB, GroupFinal, CrossSemifinal and CrossFinal.
type Segment interface {
	Kind() SegmentKind
	Round() int
	String() string
	isSegment()
}

type (
	WinnersRound   int
	LosersA        int
	LosersB        int
	GroupFinal     struct{}
	CrossSemifinal struct{}
	CrossFinal     struct{}
)

func (WinnersRound) Kind() SegmentKind   { return KindWinners }
func (LosersA) Kind() SegmentKind        { return KindLosersA }
func (LosersB) Kind() SegmentKind        { return KindLosersB }
func (GroupFinal) Kind() SegmentKind     { return KindGroupFinal }
func (CrossSemifinal) Kind() SegmentKind { return KindCrossSemifinal }
func (CrossFinal) Kind() SegmentKind     { return KindCrossFinal }

func (s WinnersRound) Round() int { return int(s) }
func (s LosersA) Round() int      { return int(s) }
func (s LosersB) Round() int      { return int(s) }
func (GroupFinal) Round() int     { return 1 }
func (CrossSemifinal) Round() int { return 1 }
func (CrossFinal) Round() int     { return 1 }

func (s WinnersRound) String() string { return fmt.Sprintf("winners_r%d", int(s)) }
func (s LosersA) String() string      { return fmt.Sprintf("losers_a_r%d", int(s)) }
func (s LosersB) String() string      { return fmt.Sprintf("losers_b_r%d", int(s)) }
func (GroupFinal) String() string     { return string(KindGroupFinal) }
func (CrossSemifinal) String() string { return string(KindCrossSemifinal) }
func (CrossFinal) String() string     { return string(KindCrossFinal) }

func (WinnersRound) isSegment()   {}
func (LosersA) isSegment()        {}
func (LosersB) isSegment()        {}
func (GroupFinal) isSegment()     {}
func (CrossSemifinal) isSegment() {}
func (CrossFinal) isSegment()     {}

// ParseSegment restores a segment from its persisted kind and round.
func ParseSegment(kind SegmentKind, round int) (Segment, error) {
	switch kind {
	case KindWinners:
		if round < 1 {
			return nil, fmt.Errorf("invalid winners round %d", round)
		}
		return WinnersRound(round), nil
	case KindLosersA:
		if round < 1 {
			return nil, fmt.Errorf("invalid losers_a round %d", round)
		}
		return LosersA(round), nil
	case KindLosersB:
		if round < 1 {
			return nil, fmt.Errorf("invalid losers_b round %d", round)
		}
		return LosersB(round), nil
	case KindGroupFinal:
		return GroupFinal{}, nil
	case KindCrossSemifinal:
		return CrossSemifinal{}, nil
	case KindCrossFinal:
		return CrossFinal{}, nil
	default:
		return nil, fmt.Errorf("unknown segment kind %q", kind)
	}
}

// IsGated reports whether matches of the segment wait for every feeding
// segment to complete before turning ready.
func IsGated(s Segment) bool {
	switch s.(type) {
	case GroupFinal, CrossSemifinal, CrossFinal:
		return true
	case WinnersRound, LosersA, LosersB:
		return false
	default:
		panic(fmt.Sprintf("unhandled segment %T", s))
	}
}

// HasLoserEdge reports whether losers of the segment continue in the bracket.
func HasLoserEdge(s Segment) bool {
	switch s.(type) {
	case WinnersRound:
		return true
	case LosersA, LosersB, GroupFinal, CrossSemifinal, CrossFinal:
		return false
	default:
		panic(fmt.Sprintf("unhandled segment %T", s))
	}
}

// stageOrder ranks segment kinds in play order for views.
func stageOrder(s Segment) int {
	switch s.(type) {
	case WinnersRound:
		return 0
	case LosersA:
		return 1
	case LosersB:
		return 2
	case GroupFinal:
		return 3
	case CrossSemifinal:
		return 4
	case CrossFinal:
		return 5
	default:
		panic(fmt.Sprintf("unhandled segment %T", s))
	}
}

// GroupID identifies a group; cross-stage matches use NoGroup.
type GroupID string

const (
	GroupA  GroupID = "A"
	GroupB  GroupID = "B"
	NoGroup GroupID = ""
)

// SegmentKey identifies one segment of one tournament group.
type SegmentKey struct {
	Group   GroupID
	Segment Segment
}

func (k SegmentKey) String() string {
	if k.Group == NoGroup {
		return k.Segment.String()
	}
	return string(k.Group) + "/" + k.Segment.String()
}

// Less orders segment keys by group, stage and round.
func (k SegmentKey) Less(o SegmentKey) bool {
	if k.Group != o.Group {
		// cross-stage segments sort after both groups
		if k.Group == NoGroup {
			return false
		}
		if o.Group == NoGroup {
			return true
		}
		return k.Group < o.Group
	}
	if a, b := stageOrder(k.Segment), stageOrder(o.Segment); a != b {
		return a < b
	}
	return k.Segment.Round() < o.Segment.Round()
}

// MatchKey is the immutable identity of a match inside a tournament.
type MatchKey struct {
	Group   GroupID
	Segment Segment
	Number  int
}

func (k MatchKey) SegmentKey() SegmentKey {
	return SegmentKey{Group: k.Group, Segment: k.Segment}
}

func (k MatchKey) String() string {
	return fmt.Sprintf("%s#%d", k.SegmentKey(), k.Number)
}
