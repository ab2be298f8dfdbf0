package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-bracket/brackets"
	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) ofType(eventType models.EventType) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	outcomes  map[string]int
	slots     int
	integrity int
	findings  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{outcomes: map[string]int{}, findings: map[string]int{}}
}

func (m *fakeMetrics) ResultReported(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *fakeMetrics) SlotWritten() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots++
}

func (m *fakeMetrics) IntegrityFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrity++
}

func (m *fakeMetrics) ConsistencyFindings(tournamentID string, findings int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findings[tournamentID] = findings
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *fakeAlerter) IntegrityFailure(_ context.Context, tournamentID string, _ error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, tournamentID)
}

// trackingRepo counts tournament row locks taken inside transactions and
// reads made directly on the repository.
type trackingRepo struct {
	repositories.BracketRepository

	mu          sync.Mutex
	locks       int
	directReads int
}

func (r *trackingRepo) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks, r.directReads = 0, 0
}

func (r *trackingRepo) counts() (locks, directReads int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locks, r.directReads
}

func (r *trackingRepo) read() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directReads++
}

func (r *trackingRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.BracketTx) error) error {
	return r.BracketRepository.WithinTx(ctx, func(ctx context.Context, tx repositories.BracketTx) error {
		return fn(ctx, &trackingTx{BracketTx: tx, repo: r})
	})
}

func (r *trackingRepo) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	r.read()
	return r.BracketRepository.GetTournament(ctx, id)
}

func (r *trackingRepo) ListMatches(ctx context.Context, tournamentID string, filter repositories.MatchFilter) ([]*models.Match, error) {
	r.read()
	return r.BracketRepository.ListMatches(ctx, tournamentID, filter)
}

func (r *trackingRepo) ListEdges(ctx context.Context, tournamentID string) ([]models.AdvancementEdge, error) {
	r.read()
	return r.BracketRepository.ListEdges(ctx, tournamentID)
}

type trackingTx struct {
	repositories.BracketTx
	repo *trackingRepo
}

func (t *trackingTx) LockTournament(ctx context.Context, id string) (*models.Tournament, error) {
	t.repo.mu.Lock()
	t.repo.locks++
	t.repo.mu.Unlock()
	return t.BracketTx.LockTournament(ctx, id)
}

type engine struct {
	repo        repositories.BracketRepository
	brackets    BracketService
	matches     MatchService
	consistency ConsistencyService
	events      *recordingPublisher
	metrics     *fakeMetrics
	alerter     *fakeAlerter
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	return newEngineOn(t, repositories.NewMemoryBracketRepository())
}

func newEngineOn(t *testing.T, repo repositories.BracketRepository) *engine {
	t.Helper()
	events := &recordingPublisher{}
	metrics := newFakeMetrics()
	alerter := &fakeAlerter{}

	gate := NewStageGate()
	resolver := NewAdvancementResolver(gate, metrics, discardLogger)
	return &engine{
		repo:        repo,
		brackets:    NewBracketService(repo, brackets.NewTwoGroupDoubleElimination(), gate, resolver, events, discardLogger, BracketOptions{DefaultGroupSize: 4}),
		matches:     NewMatchService(repo, resolver, events, metrics, alerter, discardLogger, MatchOptions{}),
		consistency: NewConsistencyService(repo, metrics, discardLogger, 2),
		events:      events,
		metrics:     metrics,
		alerter:     alerter,
	}
}

// players returns p1..pN in seed order.
func players(n int) []ParticipantInput {
	out := make([]ParticipantInput, n)
	for i := range out {
		out[i] = ParticipantInput{ID: fmt.Sprintf("p%d", i+1)}
	}
	return out
}

func (e *engine) create(t *testing.T, tournamentID string, groupSize int) *BracketView {
	t.Helper()
	view, err := e.brackets.CreateBracket(context.Background(), CreateBracketInput{
		TournamentID: tournamentID,
		Participants: players(2 * groupSize),
		GroupSize:    groupSize,
	})
	require.NoError(t, err)
	return view
}

func (e *engine) match(t *testing.T, tournamentID string, key models.MatchKey) *models.Match {
	t.Helper()
	list, err := e.repo.ListMatches(context.Background(), tournamentID, repositories.MatchFilter{})
	require.NoError(t, err)
	for _, m := range list {
		if m.Key() == key {
			return m
		}
	}
	t.Fatalf("match %s not found", key)
	return nil
}

func (e *engine) report(t *testing.T, matchID int64, s1, s2 int) *AdvancementSummary {
	t.Helper()
	sum, err := e.matches.ReportMatchResult(context.Background(), ReportResultInput{
		MatchID:    matchID,
		Score1:     s1,
		Score2:     s2,
		ReportedBy: "referee",
	})
	require.NoError(t, err)
	return sum
}

func (e *engine) ready(t *testing.T, tournamentID string) []*models.Match {
	t.Helper()
	status := models.MatchStatusReady
	list, err := e.repo.ListMatches(context.Background(), tournamentID, repositories.MatchFilter{Status: &status})
	require.NoError(t, err)
	return list
}

func (e *engine) requireConsistent(t *testing.T, tournamentID string) {
	t.Helper()
	report, err := e.consistency.ValidateConsistency(context.Background(), tournamentID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "findings: %+v", report.Findings)
}

// playSlotOneWins reports every ready match with slot 1 winning until
// nothing is ready.
func (e *engine) playSlotOneWins(t *testing.T, tournamentID string, skip ...models.MatchKey) {
	t.Helper()
	skipped := make(map[models.MatchKey]bool, len(skip))
	for _, k := range skip {
		skipped[k] = true
	}
	for {
		played := false
		for _, m := range e.ready(t, tournamentID) {
			if skipped[m.Key()] {
				continue
			}
			e.report(t, m.ID, 2, 0)
			played = true
		}
		if !played {
			return
		}
	}
}

// playRandom reports ready matches in random order with random winners and
// checks consistency after every result.
func (e *engine) playRandom(t *testing.T, tournamentID string, rng *rand.Rand) int {
	t.Helper()
	reports := 0
	for {
		ready := e.ready(t, tournamentID)
		if len(ready) == 0 {
			return reports
		}
		m := ready[rng.IntN(len(ready))]
		if rng.IntN(2) == 0 {
			e.report(t, m.ID, 3, 1)
		} else {
			e.report(t, m.ID, 0, 2)
		}
		reports++
		e.requireConsistent(t, tournamentID)
	}
}

func key(g models.GroupID, s models.Segment, n int) models.MatchKey {
	return models.MatchKey{Group: g, Segment: s, Number: n}
}
