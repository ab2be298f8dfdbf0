package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/google/uuid"
)

// EventPublisher delivers committed bracket events. Implementations must not
// block the caller for long and must not fail the operation that emitted them.
type EventPublisher interface {
	Publish(ctx context.Context, events ...models.Event)
}

// EngineMetrics receives counters from the advancement engine.
type EngineMetrics interface {
	ResultReported(outcome string)
	SlotWritten()
	IntegrityFailure()
	ConsistencyFindings(tournamentID string, findings int)
}

// IntegrityAlerter is told about integrity failures that halt a tournament.
type IntegrityAlerter interface {
	IntegrityFailure(ctx context.Context, tournamentID string, err error)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, ...models.Event) {}

type noopMetrics struct{}

func (noopMetrics) ResultReported(string)           {}
func (noopMetrics) SlotWritten()                    {}
func (noopMetrics) IntegrityFailure()               {}
func (noopMetrics) ConsistencyFindings(string, int) {}

type logAlerter struct {
	logger *slog.Logger
}

func (a logAlerter) IntegrityFailure(_ context.Context, tournamentID string, err error) {
	a.logger.Error("integrity failure", slog.String("tournament_id", tournamentID), slog.Any("error", err))
}

func newEvent(eventType models.EventType, tournamentID string) models.Event {
	return models.Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		TournamentID: tournamentID,
		OccurredAt:   time.Now().UTC(),
	}
}

func matchBecameReadyEvent(m *models.Match) models.Event {
	e := newEvent(models.EventMatchBecameReady, m.TournamentID)
	id := m.ID
	e.MatchID = &id
	return e
}

func matchCompletedEvent(m *models.Match) models.Event {
	e := newEvent(models.EventMatchCompleted, m.TournamentID)
	id := m.ID
	e.MatchID = &id
	if m.WinnerID != nil {
		w := *m.WinnerID
		e.WinnerID = &w
	}
	return e
}

func segmentCompletedEvent(tournamentID string, key models.SegmentKey) models.Event {
	e := newEvent(models.EventSegmentCompleted, tournamentID)
	s := key.String()
	e.Segment = &s
	return e
}

func tournamentCompletedEvent(tournamentID, championID string) models.Event {
	e := newEvent(models.EventTournamentCompleted, tournamentID)
	e.ChampionID = &championID
	return e
}
