package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
)

type ReportResultInput struct {
	MatchID    int64
	Score1     int
	Score2     int
	ReportedBy string
	Correction bool
}

type MatchOptions struct {
	MaxTxRetries uint64
}

type MatchService interface {
	ReportMatchResult(ctx context.Context, input ReportResultInput) (*AdvancementSummary, error)
	StartMatch(ctx context.Context, matchID int64) (*MatchView, error)
	ResumeAdvancement(ctx context.Context, tournamentID string) (*models.Tournament, error)
}

type matchService struct {
	repo      repositories.BracketRepository
	resolver  *AdvancementResolver
	publisher EventPublisher
	metrics   EngineMetrics
	alerter   IntegrityAlerter
	logger    *slog.Logger
	opts      MatchOptions
}

func NewMatchService(
	repo repositories.BracketRepository,
	resolver *AdvancementResolver,
	publisher EventPublisher,
	metrics EngineMetrics,
	alerter IntegrityAlerter,
	logger *slog.Logger,
	opts MatchOptions,
) MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if alerter == nil {
		alerter = logAlerter{logger: logger}
	}
	return &matchService{
		repo:      repo,
		resolver:  resolver,
		publisher: publisher,
		metrics:   metrics,
		alerter:   alerter,
		logger:    logger,
		opts:      opts,
	}
}

func (s *matchService) ReportMatchResult(ctx context.Context, input ReportResultInput) (*AdvancementSummary, error) {
	if input.Score1 < 0 || input.Score2 < 0 {
		s.metrics.ResultReported("invalid")
		return nil, fmt.Errorf("%w: scores must not be negative", ErrInvalidScore)
	}
	if input.Score1 == input.Score2 {
		s.metrics.ResultReported("invalid")
		return nil, fmt.Errorf("%w: ties are not allowed", ErrInvalidScore)
	}

	var sum *AdvancementSummary
	err := runTx(ctx, s.repo, s.opts.MaxTxRetries, func(ctx context.Context, tx repositories.BracketTx) error {
		m, err := tx.LockMatch(ctx, input.MatchID)
		if err != nil {
			return mapRepoError(err)
		}
		// Plain read: a concurrent halt write fails this tx at commit.
		t, err := tx.GetTournament(ctx, m.TournamentID)
		if err != nil {
			return mapRepoError(err)
		}
		if t.AdvancementHalted {
			return fmt.Errorf("%w: %s", ErrTournamentHalted, derefString(t.HaltReason))
		}

		sum = newSummary(m.TournamentID, m.ID)
		switch m.Status {
		case models.MatchStatusReady, models.MatchStatusInProgress:
			return s.record(ctx, tx, m, input, sum)
		case models.MatchStatusCompleted:
			return s.recompute(ctx, tx, m, input, sum)
		default:
			return fmt.Errorf("%w: match %d is %s", ErrMatchNotReady, m.ID, m.Status)
		}
	})
	if err != nil {
		s.metrics.ResultReported(reportOutcome(err))
		var conflict *SlotConflictError
		if errors.As(err, &conflict) {
			s.halt(ctx, conflict)
		}
		return nil, err
	}

	switch {
	case sum.Idempotent:
		s.metrics.ResultReported("idempotent")
	case sum.Corrected:
		s.metrics.ResultReported("corrected")
	default:
		s.metrics.ResultReported("completed")
	}

	s.logger.Info("match result recorded",
		slog.String("tournament_id", sum.TournamentID),
		slog.Int64("match_id", sum.MatchID),
		slog.String("winner_id", sum.WinnerID),
		slog.Bool("idempotent", sum.Idempotent),
		slog.Bool("corrected", sum.Corrected),
		slog.Int("slot_writes", len(sum.SlotWrites)),
		slog.Int("ready", len(sum.ReadyMatches)))

	s.publisher.Publish(ctx, sum.Events()...)
	return sum, nil
}

// record completes a ready or running match and advances its outcome.
func (s *matchService) record(ctx context.Context, tx repositories.BracketTx, m *models.Match, input ReportResultInput, sum *AdvancementSummary) error {
	if m.Slot1 == nil || m.Slot2 == nil {
		return fmt.Errorf("%w: match %d has an empty slot", ErrMatchNotReady, m.ID)
	}
	if !isValidMatchTransition(m.Status, models.MatchStatusCompleted) {
		return fmt.Errorf("%w: match %d cannot complete from %s", ErrMatchNotReady, m.ID, m.Status)
	}
	applyResult(m, input)
	if err := tx.UpdateMatch(ctx, m); err != nil {
		return fmt.Errorf("failed to save result of match %d: %w", m.ID, err)
	}
	sum.WinnerID, sum.LoserID = *m.WinnerID, *m.LoserID
	sum.emit(matchCompletedEvent(m))

	return s.resolver.Advance(ctx, tx, m, sum)
}

// recompute handles a report against an already completed match.
func (s *matchService) recompute(ctx context.Context, tx repositories.BracketTx, m *models.Match, input ReportResultInput, sum *AdvancementSummary) error {
	if m.HasBye() {
		return fmt.Errorf("%w: match %d was decided by a bye", ErrResultConflict, m.ID)
	}
	sum.WinnerID, sum.LoserID = derefString(m.WinnerID), derefString(m.LoserID)

	if sameScores(m, input) {
		sum.Idempotent = true
		return nil
	}
	if !input.Correction {
		return fmt.Errorf("%w: match %d already recorded %s", ErrResultConflict, m.ID, scoreLine(m.Score1, m.Score2))
	}

	newWinner := *m.Slot1
	if input.Score2 > input.Score1 {
		newWinner = *m.Slot2
	}
	sum.Corrected = true

	if m.WinnerID != nil && *m.WinnerID == newWinner {
		applyResult(m, input)
		if err := tx.UpdateMatch(ctx, m); err != nil {
			return fmt.Errorf("failed to save corrected scores of match %d: %w", m.ID, err)
		}
		return nil
	}

	if err := s.resolver.CheckCorrectable(ctx, tx, m); err != nil {
		return err
	}
	if err := s.resolver.Retract(ctx, tx, m, sum); err != nil {
		return err
	}

	s.logger.Warn("match winner corrected",
		slog.String("tournament_id", m.TournamentID),
		slog.Int64("match_id", m.ID),
		slog.String("old_winner_id", derefString(m.WinnerID)),
		slog.String("new_winner_id", newWinner),
		slog.String("reported_by", input.ReportedBy))

	applyResult(m, input)
	if err := tx.UpdateMatch(ctx, m); err != nil {
		return fmt.Errorf("failed to save corrected result of match %d: %w", m.ID, err)
	}
	sum.WinnerID, sum.LoserID = *m.WinnerID, *m.LoserID
	sum.emit(matchCompletedEvent(m))

	return s.resolver.Advance(ctx, tx, m, sum)
}

// halt stops automatic advancement of a tournament after an integrity failure.
// It runs in its own transaction because the failed report was rolled back.
func (s *matchService) halt(ctx context.Context, conflict *SlotConflictError) {
	s.metrics.IntegrityFailure()
	s.alerter.IntegrityFailure(ctx, conflict.TournamentID, conflict)

	reason := conflict.Error()
	err := runTx(ctx, s.repo, s.opts.MaxTxRetries, func(ctx context.Context, tx repositories.BracketTx) error {
		t, err := tx.LockTournament(ctx, conflict.TournamentID)
		if err != nil {
			return err
		}
		t.AdvancementHalted = true
		t.HaltReason = &reason
		return tx.UpdateTournament(ctx, t)
	})
	if err != nil {
		s.logger.Error("failed to halt tournament",
			slog.String("tournament_id", conflict.TournamentID),
			slog.Any("error", err))
		return
	}
	s.logger.Error("tournament advancement halted",
		slog.String("tournament_id", conflict.TournamentID),
		slog.Int64("match_id", conflict.MatchID),
		slog.Int("slot", conflict.Slot),
		slog.String("reason", reason))
}

func (s *matchService) StartMatch(ctx context.Context, matchID int64) (*MatchView, error) {
	var started *models.Match
	err := runTx(ctx, s.repo, s.opts.MaxTxRetries, func(ctx context.Context, tx repositories.BracketTx) error {
		m, err := tx.LockMatch(ctx, matchID)
		if err != nil {
			return mapRepoError(err)
		}
		t, err := tx.GetTournament(ctx, m.TournamentID)
		if err != nil {
			return mapRepoError(err)
		}
		if t.AdvancementHalted {
			return fmt.Errorf("%w: %s", ErrTournamentHalted, derefString(t.HaltReason))
		}

		switch m.Status {
		case models.MatchStatusInProgress:
		case models.MatchStatusReady:
			m.Status = models.MatchStatusInProgress
			if err := tx.UpdateMatch(ctx, m); err != nil {
				return fmt.Errorf("failed to start match %d: %w", m.ID, err)
			}
		default:
			return fmt.Errorf("%w: match %d is %s", ErrMatchNotReady, m.ID, m.Status)
		}
		started = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := toMatchView(started)
	return &view, nil
}

func (s *matchService) ResumeAdvancement(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	var resumed *models.Tournament
	err := runTx(ctx, s.repo, s.opts.MaxTxRetries, func(ctx context.Context, tx repositories.BracketTx) error {
		t, err := tx.LockTournament(ctx, tournamentID)
		if err != nil {
			return mapRepoError(err)
		}
		if t.AdvancementHalted {
			s.logger.Warn("resuming tournament advancement",
				slog.String("tournament_id", t.ID),
				slog.String("halt_reason", derefString(t.HaltReason)))
			t.AdvancementHalted = false
			t.HaltReason = nil
			if err := tx.UpdateTournament(ctx, t); err != nil {
				return fmt.Errorf("failed to resume tournament %s: %w", t.ID, err)
			}
		}
		resumed = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resumed, nil
}

func applyResult(m *models.Match, input ReportResultInput) {
	s1, s2 := input.Score1, input.Score2
	winner, loser := *m.Slot1, *m.Slot2
	if s2 > s1 {
		winner, loser = loser, winner
	}
	now := time.Now().UTC()
	reportedBy := input.ReportedBy

	m.Score1, m.Score2 = &s1, &s2
	m.WinnerID, m.LoserID = &winner, &loser
	m.Status = models.MatchStatusCompleted
	m.CompletedAt = &now
	if reportedBy != "" {
		m.ReportedBy = &reportedBy
	}
}

func sameScores(m *models.Match, input ReportResultInput) bool {
	return m.Score1 != nil && m.Score2 != nil && *m.Score1 == input.Score1 && *m.Score2 == input.Score2
}

func scoreLine(s1, s2 *int) string {
	if s1 == nil || s2 == nil {
		return "no score"
	}
	return fmt.Sprintf("%d:%d", *s1, *s2)
}

func reportOutcome(err error) string {
	switch {
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrTournamentHalted):
		return "halted"
	case errors.Is(err, ErrResultConflict):
		return "conflict"
	case errors.Is(err, ErrCorrectionBlocked):
		return "correction_blocked"
	case errors.Is(err, ErrMatchNotReady):
		return "not_ready"
	case errors.Is(err, ErrMatchNotFound):
		return "not_found"
	default:
		return "error"
	}
}
