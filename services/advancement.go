package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
)

type SlotWrite struct {
	MatchID  int64  `json:"match_id"`
	Slot     int    `json:"slot"`
	PlayerID string `json:"player_id"`
}

// AdvancementSummary describes everything one operation changed in the bracket.
type AdvancementSummary struct {
	TournamentID      string      `json:"tournament_id"`
	MatchID           int64       `json:"match_id"`
	WinnerID          string      `json:"winner_id,omitempty"`
	LoserID           string      `json:"loser_id,omitempty"`
	Idempotent        bool        `json:"idempotent"`
	Corrected         bool        `json:"corrected"`
	SlotWrites        []SlotWrite `json:"slot_writes"`
	Retractions       []SlotWrite `json:"retractions,omitempty"`
	ReadyMatches      []int64     `json:"ready_matches"`
	AutoCompleted     []int64     `json:"auto_completed,omitempty"`
	SegmentsCompleted []string    `json:"segments_completed,omitempty"`
	ChampionID        *string     `json:"champion_id,omitempty"`

	events []models.Event
}

func newSummary(tournamentID string, matchID int64) *AdvancementSummary {
	return &AdvancementSummary{
		TournamentID: tournamentID,
		MatchID:      matchID,
		SlotWrites:   make([]SlotWrite, 0),
		ReadyMatches: make([]int64, 0),
	}
}

// Events returns the events to publish once the operation has committed.
func (s *AdvancementSummary) Events() []models.Event {
	return s.events
}

func (s *AdvancementSummary) emit(e models.Event) {
	s.events = append(s.events, e)
}

// AdvancementResolver moves winners and losers of completed matches along the
// bracket's advancement edges.
type AdvancementResolver struct {
	gate    *StageGate
	metrics EngineMetrics
	logger  *slog.Logger
}

func NewAdvancementResolver(gate *StageGate, metrics EngineMetrics, logger *slog.Logger) *AdvancementResolver {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvancementResolver{gate: gate, metrics: metrics, logger: logger}
}

// Advance writes the outcome of a completed match into its destination slots,
// then closes its segment and the tournament when they are done. The completed
// match must already be saved in tx.
func (r *AdvancementResolver) Advance(ctx context.Context, tx repositories.BracketTx, m *models.Match, sum *AdvancementSummary) error {
	if m.Status != models.MatchStatusCompleted || m.WinnerID == nil || m.LoserID == nil {
		return fmt.Errorf("match %d is not completed with a winner", m.ID)
	}

	edges, err := tx.EdgesFrom(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to load edges of match %d: %w", m.ID, err)
	}
	for _, e := range edges {
		player := *m.WinnerID
		if e.Outcome == models.OutcomeLoser {
			player = *m.LoserID
		}
		if err := r.fill(ctx, tx, m, e, player, sum); err != nil {
			return err
		}
	}

	return r.afterCompletion(ctx, tx, m, sum)
}

func (r *AdvancementResolver) fill(ctx context.Context, tx repositories.BracketTx, src *models.Match, e models.AdvancementEdge, player string, sum *AdvancementSummary) error {
	dest, err := tx.LockMatch(ctx, e.DestMatchID)
	if err != nil {
		return fmt.Errorf("failed to lock match %d: %w", e.DestMatchID, err)
	}

	if current := dest.Slot(e.DestSlot); current != nil {
		if *current == player {
			return nil
		}
		return &SlotConflictError{
			TournamentID:  dest.TournamentID,
			SourceMatchID: src.ID,
			MatchID:       dest.ID,
			Slot:          e.DestSlot,
			Existing:      *current,
			Incoming:      player,
		}
	}
	if dest.Status == models.MatchStatusInProgress || dest.Status == models.MatchStatusCompleted {
		return &SlotConflictError{
			TournamentID:  dest.TournamentID,
			SourceMatchID: src.ID,
			MatchID:       dest.ID,
			Slot:          e.DestSlot,
			Incoming:      player,
		}
	}

	dest.SetSlot(e.DestSlot, &player)
	becameReady, err := r.gate.RecordFill(ctx, tx, dest)
	if err != nil {
		return err
	}
	if err := tx.UpdateMatch(ctx, dest); err != nil {
		return fmt.Errorf("failed to save match %d: %w", dest.ID, err)
	}
	r.metrics.SlotWritten()
	sum.SlotWrites = append(sum.SlotWrites, SlotWrite{MatchID: dest.ID, Slot: e.DestSlot, PlayerID: player})

	if becameReady {
		return r.onReady(ctx, tx, dest, sum)
	}
	return nil
}

func (r *AdvancementResolver) onReady(ctx context.Context, tx repositories.BracketTx, m *models.Match, sum *AdvancementSummary) error {
	sum.ReadyMatches = append(sum.ReadyMatches, m.ID)
	sum.emit(matchBecameReadyEvent(m))
	if m.HasBye() {
		return r.AutoComplete(ctx, tx, m, sum)
	}
	return nil
}

// AutoComplete decides a ready match that holds a bye. The real player wins;
// two byes resolve to slot 1.
func (r *AdvancementResolver) AutoComplete(ctx context.Context, tx repositories.BracketTx, m *models.Match, sum *AdvancementSummary) error {
	if m.Status != models.MatchStatusReady || !m.HasBye() {
		return nil
	}
	winner, loser := *m.Slot1, *m.Slot2
	if models.IsBye(winner) && !models.IsBye(loser) {
		winner, loser = loser, winner
	}

	now := time.Now().UTC()
	m.WinnerID = &winner
	m.LoserID = &loser
	m.Status = models.MatchStatusCompleted
	m.CompletedAt = &now
	if err := tx.UpdateMatch(ctx, m); err != nil {
		return fmt.Errorf("failed to save bye match %d: %w", m.ID, err)
	}

	r.logger.Debug("bye auto-advanced",
		slog.String("tournament_id", m.TournamentID),
		slog.Int64("match_id", m.ID),
		slog.String("winner_id", winner))
	sum.AutoCompleted = append(sum.AutoCompleted, m.ID)
	sum.emit(matchCompletedEvent(m))

	return r.Advance(ctx, tx, m, sum)
}

func (r *AdvancementResolver) afterCompletion(ctx context.Context, tx repositories.BracketTx, m *models.Match, sum *AdvancementSummary) error {
	key := m.SegmentKey()
	done, err := r.gate.SegmentCompleted(ctx, tx, m.TournamentID, key)
	if err != nil {
		return err
	}
	if done {
		sum.SegmentsCompleted = append(sum.SegmentsCompleted, key.String())
		sum.emit(segmentCompletedEvent(m.TournamentID, key))
		if err := r.openDependents(ctx, tx, m.TournamentID, key, sum); err != nil {
			return err
		}
	}

	if _, final := m.Segment.(models.CrossFinal); final {
		return r.completeTournament(ctx, tx, m, sum)
	}
	return nil
}

// openDependents re-checks gated matches fed by a segment that just completed.
func (r *AdvancementResolver) openDependents(ctx context.Context, tx repositories.BracketTx, tournamentID string, key models.SegmentKey, sum *AdvancementSummary) error {
	siblings, err := tx.ListMatches(ctx, tournamentID, repositories.MatchFilter{Segment: &key})
	if err != nil {
		return fmt.Errorf("failed to list segment %s: %w", key, err)
	}

	visited := make(map[int64]bool)
	for _, s := range siblings {
		edges, err := tx.EdgesFrom(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("failed to load edges of match %d: %w", s.ID, err)
		}
		for _, e := range edges {
			if visited[e.DestMatchID] {
				continue
			}
			visited[e.DestMatchID] = true

			dest, err := tx.LockMatch(ctx, e.DestMatchID)
			if err != nil {
				return fmt.Errorf("failed to lock match %d: %w", e.DestMatchID, err)
			}
			if !models.IsGated(dest.Segment) || dest.FilledSlots < models.RequiredSlots || dest.Status != models.MatchStatusPartiallyFilled {
				continue
			}
			becameReady, err := r.gate.Settle(ctx, tx, dest)
			if err != nil {
				return err
			}
			if !becameReady {
				continue
			}
			if err := tx.UpdateMatch(ctx, dest); err != nil {
				return fmt.Errorf("failed to save match %d: %w", dest.ID, err)
			}
			if err := r.onReady(ctx, tx, dest, sum); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *AdvancementResolver) completeTournament(ctx context.Context, tx repositories.BracketTx, final *models.Match, sum *AdvancementSummary) error {
	t, err := tx.LockTournament(ctx, final.TournamentID)
	if err != nil {
		return fmt.Errorf("failed to lock tournament %s: %w", final.TournamentID, err)
	}

	champion := *final.WinnerID
	now := time.Now().UTC()
	t.ChampionID = &champion
	t.Status = models.TournamentStatusCompleted
	t.CompletedAt = &now
	if err := tx.UpdateTournament(ctx, t); err != nil {
		return fmt.Errorf("failed to complete tournament %s: %w", t.ID, err)
	}

	sum.ChampionID = &champion
	sum.emit(tournamentCompletedEvent(t.ID, champion))
	return nil
}

// CheckCorrectable walks one hop forward from m and fails when a destination
// has already completed with the old outcome.
func (r *AdvancementResolver) CheckCorrectable(ctx context.Context, tx repositories.BracketTx, m *models.Match) error {
	edges, err := tx.EdgesFrom(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to load edges of match %d: %w", m.ID, err)
	}
	for _, e := range edges {
		dest, err := tx.LockMatch(ctx, e.DestMatchID)
		if err != nil {
			return fmt.Errorf("failed to lock match %d: %w", e.DestMatchID, err)
		}
		if dest.Status == models.MatchStatusCompleted {
			return fmt.Errorf("%w: match %d (%s #%d) is completed", ErrCorrectionBlocked, dest.ID, dest.SegmentKey(), dest.Number)
		}
	}
	return nil
}

// Retract clears the slots previously filled from m's outcome and demotes the
// destinations.
func (r *AdvancementResolver) Retract(ctx context.Context, tx repositories.BracketTx, m *models.Match, sum *AdvancementSummary) error {
	edges, err := tx.EdgesFrom(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to load edges of match %d: %w", m.ID, err)
	}
	for _, e := range edges {
		var player *string
		if e.Outcome == models.OutcomeWinner {
			player = m.WinnerID
		} else {
			player = m.LoserID
		}
		if player == nil {
			continue
		}

		dest, err := tx.LockMatch(ctx, e.DestMatchID)
		if err != nil {
			return fmt.Errorf("failed to lock match %d: %w", e.DestMatchID, err)
		}
		current := dest.Slot(e.DestSlot)
		if current == nil {
			continue
		}
		if *current != *player {
			return &SlotConflictError{
				TournamentID:  dest.TournamentID,
				SourceMatchID: m.ID,
				MatchID:       dest.ID,
				Slot:          e.DestSlot,
				Existing:      *current,
				Incoming:      *player,
			}
		}
		if dest.Status == models.MatchStatusCompleted {
			return fmt.Errorf("%w: match %d is completed", ErrCorrectionBlocked, dest.ID)
		}

		dest.SetSlot(e.DestSlot, nil)
		r.gate.RecordRetract(dest)
		if err := tx.UpdateMatch(ctx, dest); err != nil {
			return fmt.Errorf("failed to save match %d: %w", dest.ID, err)
		}
		sum.Retractions = append(sum.Retractions, SlotWrite{MatchID: dest.ID, Slot: e.DestSlot, PlayerID: *player})
	}
	return nil
}
