package models

import "time"

type EventType string

const (
	EventMatchBecameReady    EventType = "match_became_ready"
	EventMatchCompleted      EventType = "match_completed"
	EventSegmentCompleted    EventType = "segment_completed"
	EventTournamentCompleted EventType = "tournament_completed"
)

// Event is emitted after a bracket change commits. Delivery is at most once,
// consumers deduplicate on ID.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	TournamentID string    `json:"tournament_id"`
	MatchID      *int64    `json:"match_id,omitempty"`
	WinnerID     *string   `json:"winner_id,omitempty"`
	Segment      *string   `json:"segment,omitempty"`
	ChampionID   *string   `json:"champion_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
