package services

import (
	"sort"
	"time"

	"github.com/Dosada05/tournament-bracket/models"
)

// --- Общие хелперы ---

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isValidMatchTransition(current, next models.MatchStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.MatchStatus][]models.MatchStatus{
		models.MatchStatusEmpty:           {models.MatchStatusPartiallyFilled},
		models.MatchStatusPartiallyFilled: {models.MatchStatusEmpty, models.MatchStatusReady},
		models.MatchStatusReady:           {models.MatchStatusPartiallyFilled, models.MatchStatusInProgress, models.MatchStatusCompleted},
		models.MatchStatusInProgress:      {models.MatchStatusPartiallyFilled, models.MatchStatusCompleted},
		models.MatchStatusCompleted:       {},
	}
	for _, allowed := range allowedTransitions[current] {
		if next == allowed {
			return true
		}
	}
	return false
}

// --- Представления для API ---

type MatchView struct {
	ID            int64              `json:"id"`
	TournamentID  string             `json:"tournament_id"`
	Group         models.GroupID     `json:"group,omitempty"`
	Segment       models.SegmentKind `json:"segment"`
	Round         int                `json:"round"`
	MatchNumber   int                `json:"match_number"`
	Label         string             `json:"label"`
	Slot1         *string            `json:"slot1"`
	Slot2         *string            `json:"slot2"`
	FilledSlots   int                `json:"filled_slots"`
	RequiredSlots int                `json:"required_slots"`
	Status        models.MatchStatus `json:"status"`
	AwaitingGate  bool               `json:"awaiting_gate"`
	Score1        *int               `json:"score1,omitempty"`
	Score2        *int               `json:"score2,omitempty"`
	WinnerID      *string            `json:"winner_id,omitempty"`
	LoserID       *string            `json:"loser_id,omitempty"`
	ReportedBy    *string            `json:"reported_by,omitempty"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func toMatchView(m *models.Match) MatchView {
	return MatchView{
		ID:            m.ID,
		TournamentID:  m.TournamentID,
		Group:         m.Group,
		Segment:       m.Segment.Kind(),
		Round:         m.Segment.Round(),
		MatchNumber:   m.Number,
		Label:         m.Key().String(),
		Slot1:         m.Slot1,
		Slot2:         m.Slot2,
		FilledSlots:   m.FilledSlots,
		RequiredSlots: models.RequiredSlots,
		Status:        m.Status,
		AwaitingGate:  m.Status == models.MatchStatusPartiallyFilled && m.FilledSlots == models.RequiredSlots,
		Score1:        m.Score1,
		Score2:        m.Score2,
		WinnerID:      m.WinnerID,
		LoserID:       m.LoserID,
		ReportedBy:    m.ReportedBy,
		CompletedAt:   m.CompletedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type SegmentView struct {
	Key       string             `json:"key"`
	Group     models.GroupID     `json:"group,omitempty"`
	Segment   models.SegmentKind `json:"segment"`
	Round     int                `json:"round"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Done      bool               `json:"done"`
	Matches   []MatchView        `json:"matches"`
}

type ProgressView struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

type BracketView struct {
	Tournament *models.Tournament          `json:"tournament"`
	Progress   ProgressView                `json:"progress"`
	Segments   []SegmentView               `json:"segments"`
	Qualifiers map[models.GroupID][]string `json:"qualifiers"`
	Edges      []models.AdvancementEdge    `json:"edges"`
}

// buildBracketView groups matches by segment in play order.
func buildBracketView(t *models.Tournament, matches []*models.Match, edges []models.AdvancementEdge) *BracketView {
	bySegment := make(map[models.SegmentKey][]*models.Match)
	for _, m := range matches {
		bySegment[m.SegmentKey()] = append(bySegment[m.SegmentKey()], m)
	}
	keys := make([]models.SegmentKey, 0, len(bySegment))
	for k := range bySegment {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	view := &BracketView{
		Tournament: t,
		Segments:   make([]SegmentView, 0, len(keys)),
		Qualifiers: make(map[models.GroupID][]string),
		Edges:      edges,
	}
	for _, k := range keys {
		group := bySegment[k]
		sort.Slice(group, func(i, j int) bool { return group[i].Number < group[j].Number })

		sv := SegmentView{
			Key:     k.String(),
			Group:   k.Group,
			Segment: k.Segment.Kind(),
			Round:   k.Segment.Round(),
			Total:   len(group),
			Matches: make([]MatchView, 0, len(group)),
		}
		for _, m := range group {
			if m.Status == models.MatchStatusCompleted {
				sv.Completed++
			}
			sv.Matches = append(sv.Matches, toMatchView(m))
		}
		sv.Done = sv.Completed == sv.Total
		view.Progress.Completed += sv.Completed
		view.Progress.Total += sv.Total

		if _, ok := k.Segment.(models.GroupFinal); ok {
			for _, m := range group {
				if m.WinnerID != nil {
					view.Qualifiers[k.Group] = append(view.Qualifiers[k.Group], *m.WinnerID)
				}
			}
		}
		view.Segments = append(view.Segments, sv)
	}
	return view
}
