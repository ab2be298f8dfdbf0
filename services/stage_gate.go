package services

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
)

// StageGate keeps a match's filled-slot count and status in step. Matches of
// gated segments only turn ready once every segment feeding them is completed.
type StageGate struct{}

func NewStageGate() *StageGate {
	return &StageGate{}
}

// RecordFill counts one slot write and reports whether the match just became ready.
func (g *StageGate) RecordFill(ctx context.Context, tx repositories.BracketTx, m *models.Match) (bool, error) {
	m.FilledSlots++
	if m.FilledSlots > models.RequiredSlots {
		return false, fmt.Errorf("match %d has %d filled slots", m.ID, m.FilledSlots)
	}
	return g.Settle(ctx, tx, m)
}

// RecordRetract counts one cleared slot and demotes the match.
func (g *StageGate) RecordRetract(m *models.Match) {
	if m.FilledSlots > 0 {
		m.FilledSlots--
	}
	switch {
	case m.FilledSlots == 0:
		m.Status = models.MatchStatusEmpty
	default:
		m.Status = models.MatchStatusPartiallyFilled
	}
}

// Settle derives the status of a match that has not started from its filled
// slots and gate. It reports whether the match became ready.
func (g *StageGate) Settle(ctx context.Context, tx repositories.BracketTx, m *models.Match) (bool, error) {
	if m.Status == models.MatchStatusInProgress || m.Status == models.MatchStatusCompleted {
		return false, nil
	}
	prev := m.Status

	switch {
	case m.FilledSlots == 0:
		m.Status = models.MatchStatusEmpty
	case m.FilledSlots < models.RequiredSlots:
		m.Status = models.MatchStatusPartiallyFilled
	default:
		open := true
		if models.IsGated(m.Segment) {
			var err error
			open, err = g.GateOpen(ctx, tx, m)
			if err != nil {
				return false, err
			}
		}
		if open {
			m.Status = models.MatchStatusReady
		} else {
			m.Status = models.MatchStatusPartiallyFilled
		}
	}

	return prev != models.MatchStatusReady && m.Status == models.MatchStatusReady, nil
}

// GateOpen reports whether every segment feeding m is completed.
func (g *StageGate) GateOpen(ctx context.Context, tx repositories.BracketTx, m *models.Match) (bool, error) {
	segments, err := g.feedingSegments(ctx, tx, m)
	if err != nil {
		return false, err
	}
	for _, key := range segments {
		done, err := g.SegmentCompleted(ctx, tx, m.TournamentID, key)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
	}
	return true, nil
}

// SegmentCompleted reports whether all matches of a segment are completed.
func (g *StageGate) SegmentCompleted(ctx context.Context, tx repositories.BracketReader, tournamentID string, key models.SegmentKey) (bool, error) {
	matches, err := tx.ListMatches(ctx, tournamentID, repositories.MatchFilter{Segment: &key})
	if err != nil {
		return false, fmt.Errorf("failed to list segment %s: %w", key, err)
	}
	if len(matches) == 0 {
		return false, fmt.Errorf("segment %s has no matches", key)
	}
	for _, m := range matches {
		if m.Status != models.MatchStatusCompleted {
			return false, nil
		}
	}
	return true, nil
}

func (g *StageGate) feedingSegments(ctx context.Context, tx repositories.BracketTx, m *models.Match) ([]models.SegmentKey, error) {
	edges, err := tx.EdgesInto(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inbound edges of match %d: %w", m.ID, err)
	}

	seen := make(map[models.SegmentKey]bool, len(edges))
	keys := make([]models.SegmentKey, 0, len(edges))
	for _, e := range edges {
		src, err := tx.GetMatch(ctx, e.SourceMatchID)
		if err != nil {
			return nil, fmt.Errorf("failed to load source match %d: %w", e.SourceMatchID, err)
		}
		key := src.SegmentKey()
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys, nil
}
