// Package events delivers committed bracket events to live subscribers.
package events

import (
	"context"
	"log/slog"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/services"
)

// Multi fans events out to every publisher in order.
type Multi []services.EventPublisher

func (m Multi) Publish(ctx context.Context, events ...models.Event) {
	if len(events) == 0 {
		return
	}
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, events...)
		}
	}
}

// LogPublisher пишет каждое событие в лог.
type LogPublisher struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (p LogPublisher) Publish(ctx context.Context, events ...models.Event) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range events {
		attrs := []slog.Attr{
			slog.String("event_id", e.ID),
			slog.String("type", string(e.Type)),
			slog.String("tournament_id", e.TournamentID),
		}
		if e.MatchID != nil {
			attrs = append(attrs, slog.Int64("match_id", *e.MatchID))
		}
		if e.Segment != nil {
			attrs = append(attrs, slog.String("segment", *e.Segment))
		}
		if e.ChampionID != nil {
			attrs = append(attrs, slog.String("champion_id", *e.ChampionID))
		}
		logger.LogAttrs(ctx, p.Level, "bracket event", attrs...)
	}
}
