package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
	"golang.org/x/sync/errgroup"
)

type FindingKind string

const (
	FindingMissedAdvancement      FindingKind = "missed_advancement"
	FindingCompletedWithoutWinner FindingKind = "completed_without_winner"
	FindingWinnerNotInSlots       FindingKind = "winner_not_in_slots"
	FindingSlotSourceMismatch     FindingKind = "slot_source_mismatch"
	FindingFilledCountMismatch    FindingKind = "filled_count_mismatch"
	FindingPrematureReady         FindingKind = "premature_ready"
	FindingStuckGate              FindingKind = "stuck_gate"
	FindingDuplicatePlayer        FindingKind = "duplicate_player_in_round"
)

type Finding struct {
	Kind    FindingKind `json:"kind"`
	MatchID int64       `json:"match_id"`
	Segment string      `json:"segment"`
	Detail  string      `json:"detail"`
}

type ConsistencyReport struct {
	TournamentID   string    `json:"tournament_id"`
	CheckedAt      time.Time `json:"checked_at"`
	MatchesChecked int       `json:"matches_checked"`
	Findings       []Finding `json:"findings"`
	Consistent     bool      `json:"consistent"`
}

type ConsistencyService interface {
	ValidateConsistency(ctx context.Context, tournamentID string) (*ConsistencyReport, error)
	Sweep(ctx context.Context) ([]*ConsistencyReport, error)
}

type consistencyService struct {
	repo        repositories.BracketReader
	metrics     EngineMetrics
	logger      *slog.Logger
	concurrency int
}

func NewConsistencyService(repo repositories.BracketReader, metrics EngineMetrics, logger *slog.Logger, concurrency int) ConsistencyService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &consistencyService{repo: repo, metrics: metrics, logger: logger, concurrency: concurrency}
}

// ValidateConsistency audits a tournament's matches against its edges. It never writes.
func (s *consistencyService) ValidateConsistency(ctx context.Context, tournamentID string) (*ConsistencyReport, error) {
	if _, err := s.repo.GetTournament(ctx, tournamentID); err != nil {
		return nil, mapRepoError(err)
	}

	var (
		matches []*models.Match
		edges   []models.AdvancementEdge
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.repo.ListMatches(gctx, tournamentID, repositories.MatchFilter{})
		if err != nil {
			return fmt.Errorf("failed to list matches: %w", err)
		}
		matches = list
		return nil
	})
	g.Go(func() error {
		list, err := s.repo.ListEdges(gctx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list edges: %w", err)
		}
		edges = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &ConsistencyReport{
		TournamentID:   tournamentID,
		CheckedAt:      time.Now().UTC(),
		MatchesChecked: len(matches),
		Findings:       auditBracket(matches, edges),
	}
	report.Consistent = len(report.Findings) == 0

	s.metrics.ConsistencyFindings(tournamentID, len(report.Findings))
	if !report.Consistent {
		s.logger.Warn("bracket inconsistencies found",
			slog.String("tournament_id", tournamentID),
			slog.Int("findings", len(report.Findings)))
	}
	return report, nil
}

// Sweep validates every tournament that is still in progress.
func (s *consistencyService) Sweep(ctx context.Context) ([]*ConsistencyReport, error) {
	status := models.TournamentStatusInProgress
	tournaments, err := s.repo.ListTournaments(ctx, &status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}

	var (
		mu      sync.Mutex
		reports = make([]*ConsistencyReport, 0, len(tournaments))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, t := range tournaments {
		id := t.ID
		g.Go(func() error {
			report, err := s.ValidateConsistency(gctx, id)
			if err != nil {
				return fmt.Errorf("tournament %s: %w", id, err)
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].TournamentID < reports[j].TournamentID })
	s.logger.Info("consistency sweep finished", slog.Int("tournaments", len(reports)))
	return reports, nil
}

func auditBracket(matches []*models.Match, edges []models.AdvancementEdge) []Finding {
	byID := make(map[int64]*models.Match, len(matches))
	bySegment := make(map[models.SegmentKey][]*models.Match)
	for _, m := range matches {
		byID[m.ID] = m
		bySegment[m.SegmentKey()] = append(bySegment[m.SegmentKey()], m)
	}
	inbound := make(map[int64][]models.AdvancementEdge)
	for _, e := range edges {
		inbound[e.DestMatchID] = append(inbound[e.DestMatchID], e)
	}
	segmentDone := make(map[models.SegmentKey]bool, len(bySegment))
	for key, list := range bySegment {
		done := true
		for _, m := range list {
			if m.Status != models.MatchStatusCompleted {
				done = false
				break
			}
		}
		segmentDone[key] = done
	}

	ordered := make([]*models.Match, len(matches))
	copy(ordered, matches)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	findings := make([]Finding, 0)
	add := func(kind FindingKind, m *models.Match, format string, args ...any) {
		findings = append(findings, Finding{
			Kind:    kind,
			MatchID: m.ID,
			Segment: m.SegmentKey().String(),
			Detail:  fmt.Sprintf(format, args...),
		})
	}

	for _, m := range ordered {
		if actual := m.CountFilled(); actual != m.FilledSlots {
			add(FindingFilledCountMismatch, m, "filled_slots is %d but %d slots hold players", m.FilledSlots, actual)
		}

		if m.Status == models.MatchStatusCompleted {
			switch {
			case m.WinnerID == nil:
				add(FindingCompletedWithoutWinner, m, "match is completed without a winner")
			case !m.HasPlayer(*m.WinnerID):
				add(FindingWinnerNotInSlots, m, "winner %q is in neither slot", *m.WinnerID)
			}
		}

		feeding := make(map[models.SegmentKey]bool)
		for _, e := range inbound[m.ID] {
			src, ok := byID[e.SourceMatchID]
			if !ok {
				continue
			}
			feeding[src.SegmentKey()] = true

			slot := m.Slot(e.DestSlot)
			expected := sourcePlayer(src, e.Outcome)
			switch {
			case expected == nil && slot != nil && src.Status != models.MatchStatusCompleted:
				add(FindingSlotSourceMismatch, m, "slot %d holds %q but match %d has not completed", e.DestSlot, *slot, src.ID)
			case expected == nil:
			case slot == nil:
				add(FindingMissedAdvancement, m, "slot %d is empty but match %d produced %s %q", e.DestSlot, src.ID, e.Outcome, *expected)
			case *slot != *expected:
				add(FindingSlotSourceMismatch, m, "slot %d holds %q but match %d produced %s %q", e.DestSlot, *slot, src.ID, e.Outcome, *expected)
			}
		}

		if !models.IsGated(m.Segment) || len(feeding) == 0 {
			continue
		}
		gateOpen := true
		for key := range feeding {
			if !segmentDone[key] {
				gateOpen = false
				break
			}
		}
		switch {
		case !gateOpen && (m.Status == models.MatchStatusReady || m.Status == models.MatchStatusInProgress || m.Status == models.MatchStatusCompleted):
			add(FindingPrematureReady, m, "match is %s while a feeding segment is incomplete", m.Status)
		case gateOpen && m.Status == models.MatchStatusPartiallyFilled && m.CountFilled() == models.RequiredSlots:
			add(FindingStuckGate, m, "both slots are filled and every feeding segment is complete")
		}
	}

	keys := make([]models.SegmentKey, 0, len(bySegment))
	for key := range bySegment {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	for _, key := range keys {
		seen := make(map[string]int64)
		list := bySegment[key]
		sort.Slice(list, func(i, j int) bool { return list[i].Number < list[j].Number })
		for _, m := range list {
			for _, slot := range []*string{m.Slot1, m.Slot2} {
				if slot == nil || models.IsBye(*slot) {
					continue
				}
				if first, dup := seen[*slot]; dup {
					add(FindingDuplicatePlayer, m, "player %q also plays in match %d of this round", *slot, first)
					continue
				}
				seen[*slot] = m.ID
			}
		}
	}

	return findings
}

func sourcePlayer(src *models.Match, outcome models.Outcome) *string {
	if src.Status != models.MatchStatusCompleted {
		return nil
	}
	if outcome == models.OutcomeLoser {
		return src.LoserID
	}
	return src.WinnerID
}
