package models

import (
	"strings"
	"time"
)

type MatchStatus string

const (
	MatchStatusEmpty           MatchStatus = "empty"
	MatchStatusPartiallyFilled MatchStatus = "partially_filled"
	MatchStatusReady           MatchStatus = "ready"
	MatchStatusInProgress      MatchStatus = "in_progress"
	MatchStatusCompleted       MatchStatus = "completed"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusEmpty, MatchStatusPartiallyFilled, MatchStatusReady, MatchStatusInProgress, MatchStatusCompleted:
		return true
	}
	return false
}

// RequiredSlots is the number of slots every match needs filled.
const RequiredSlots = 2

// ByePrefix marks pseudo-players that concede automatically.
const ByePrefix = "bye:"

func IsBye(playerID string) bool {
	return strings.HasPrefix(playerID, ByePrefix)
}

type Match struct {
	ID           int64       `json:"id"`
	TournamentID string      `json:"tournament_id"`
	Group        GroupID     `json:"group,omitempty"`
	Segment      Segment     `json:"-"`
	Number       int         `json:"match_number"`
	Slot1        *string     `json:"slot1,omitempty"`
	Slot2        *string     `json:"slot2,omitempty"`
	FilledSlots  int         `json:"filled_slots"`
	Status       MatchStatus `json:"status"`
	Score1       *int        `json:"score1,omitempty"`
	Score2       *int        `json:"score2,omitempty"`
	WinnerID     *string     `json:"winner_id,omitempty"`
	LoserID      *string     `json:"loser_id,omitempty"`
	ReportedBy   *string     `json:"reported_by,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (m *Match) Key() MatchKey {
	return MatchKey{Group: m.Group, Segment: m.Segment, Number: m.Number}
}

func (m *Match) SegmentKey() SegmentKey {
	return SegmentKey{Group: m.Group, Segment: m.Segment}
}

// Slot returns the player in position 1 or 2, or nil when empty.
func (m *Match) Slot(pos int) *string {
	if pos == 1 {
		return m.Slot1
	}
	return m.Slot2
}

func (m *Match) SetSlot(pos int, playerID *string) {
	if pos == 1 {
		m.Slot1 = playerID
	} else {
		m.Slot2 = playerID
	}
}

// CountFilled counts the slots that hold a player.
func (m *Match) CountFilled() int {
	n := 0
	if m.Slot1 != nil {
		n++
	}
	if m.Slot2 != nil {
		n++
	}
	return n
}

func (m *Match) HasBye() bool {
	return (m.Slot1 != nil && IsBye(*m.Slot1)) || (m.Slot2 != nil && IsBye(*m.Slot2))
}

func (m *Match) HasPlayer(playerID string) bool {
	return (m.Slot1 != nil && *m.Slot1 == playerID) || (m.Slot2 != nil && *m.Slot2 == playerID)
}

// Clone returns a deep copy so callers can stage changes.
func (m *Match) Clone() *Match {
	c := *m
	c.Slot1 = cloneString(m.Slot1)
	c.Slot2 = cloneString(m.Slot2)
	c.Score1 = cloneInt(m.Score1)
	c.Score2 = cloneInt(m.Score2)
	c.WinnerID = cloneString(m.WinnerID)
	c.LoserID = cloneString(m.LoserID)
	c.ReportedBy = cloneString(m.ReportedBy)
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

type Outcome string

const (
	OutcomeWinner Outcome = "winner"
	OutcomeLoser  Outcome = "loser"
)

// AdvancementEdge routes the winner or loser of a match into a slot of another match.
type AdvancementEdge struct {
	TournamentID  string  `json:"tournament_id"`
	SourceMatchID int64   `json:"source_match_id"`
	Outcome       Outcome `json:"outcome"`
	DestMatchID   int64   `json:"dest_match_id"`
	DestSlot      int     `json:"dest_slot"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
