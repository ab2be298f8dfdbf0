// Package alerts reports integrity failures to Sentry.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-bracket/services"
	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// SentryAlerter sends every integrity failure to Sentry and mirrors it to the log.
type SentryAlerter struct {
	hub    *sentry.Hub
	logger *slog.Logger
}

func NewSentryAlerter(cfg SentryConfig, logger *slog.Logger) (*SentryAlerter, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sentry DSN is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}
	return &SentryAlerter{hub: sentry.NewHub(client, sentry.NewScope()), logger: logger}, nil
}

func (a *SentryAlerter) IntegrityFailure(_ context.Context, tournamentID string, err error) {
	a.logger.Error("integrity failure", slog.String("tournament_id", tournamentID), slog.Any("error", err))

	a.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		scope.SetTag("tournament_id", tournamentID)

		var conflict *services.SlotConflictError
		if errors.As(err, &conflict) {
			scope.SetContext("slot_conflict", sentry.Context{
				"source_match_id": conflict.SourceMatchID,
				"match_id":        conflict.MatchID,
				"slot":            conflict.Slot,
				"existing":        conflict.Existing,
				"incoming":        conflict.Incoming,
			})
		}
		a.hub.CaptureException(err)
	})
}

// Flush waits for queued events before shutdown.
func (a *SentryAlerter) Flush() bool {
	return a.hub.Flush(flushTimeout)
}
