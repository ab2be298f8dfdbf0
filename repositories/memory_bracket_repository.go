package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-bracket/models"
)

// memoryBracketRepository keeps brackets in process memory. Transactions are
// serialized by a single mutex and see their own staged writes; nothing is
// visible to other callers until commit.
type memoryBracketRepository struct {
	mu          sync.Mutex
	tournaments map[string]*models.Tournament
	matches     map[int64]*models.Match
	edges       []models.AdvancementEdge
	nextMatchID int64
}

func NewMemoryBracketRepository() BracketRepository {
	return &memoryBracketRepository{
		tournaments: make(map[string]*models.Tournament),
		matches:     make(map[int64]*models.Match),
	}
}

func (r *memoryBracketRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx BracketTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memoryBracketTx{
		repo:        r,
		tournaments: make(map[string]*models.Tournament),
		matches:     make(map[int64]*models.Match),
		nextMatchID: r.nextMatchID,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (r *memoryBracketRepository) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view().GetTournament(ctx, id)
}

func (r *memoryBracketRepository) ListTournaments(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view().ListTournaments(ctx, status)
}

func (r *memoryBracketRepository) GetMatch(ctx context.Context, id int64) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view().GetMatch(ctx, id)
}

func (r *memoryBracketRepository) ListMatches(ctx context.Context, tournamentID string, filter MatchFilter) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view().ListMatches(ctx, tournamentID, filter)
}

func (r *memoryBracketRepository) ListEdges(ctx context.Context, tournamentID string) ([]models.AdvancementEdge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view().ListEdges(ctx, tournamentID)
}

// view is an empty transaction used for reads under r.mu.
func (r *memoryBracketRepository) view() *memoryBracketTx {
	return &memoryBracketTx{repo: r}
}

type memoryBracketTx struct {
	repo        *memoryBracketRepository
	tournaments map[string]*models.Tournament
	matches     map[int64]*models.Match
	edges       []models.AdvancementEdge
	nextMatchID int64
}

func (t *memoryBracketTx) commit() {
	for id, tour := range t.tournaments {
		t.repo.tournaments[id] = tour
	}
	for id, m := range t.matches {
		t.repo.matches[id] = m
	}
	t.repo.edges = append(t.repo.edges, t.edges...)
	t.repo.nextMatchID = t.nextMatchID
}

func (t *memoryBracketTx) tournament(id string) (*models.Tournament, bool) {
	if tour, ok := t.tournaments[id]; ok {
		return tour, true
	}
	tour, ok := t.repo.tournaments[id]
	return tour, ok
}

func (t *memoryBracketTx) match(id int64) (*models.Match, bool) {
	if m, ok := t.matches[id]; ok {
		return m, true
	}
	m, ok := t.repo.matches[id]
	return m, ok
}

func (t *memoryBracketTx) allEdges() []models.AdvancementEdge {
	all := make([]models.AdvancementEdge, 0, len(t.repo.edges)+len(t.edges))
	all = append(all, t.repo.edges...)
	return append(all, t.edges...)
}

func (t *memoryBracketTx) GetTournament(_ context.Context, id string) (*models.Tournament, error) {
	tour, ok := t.tournament(id)
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return tour.Clone(), nil
}

func (t *memoryBracketTx) LockTournament(ctx context.Context, id string) (*models.Tournament, error) {
	return t.GetTournament(ctx, id)
}

func (t *memoryBracketTx) ListTournaments(_ context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	seen := make(map[string]bool)
	out := make([]*models.Tournament, 0)
	collect := func(tour *models.Tournament) {
		if seen[tour.ID] {
			return
		}
		seen[tour.ID] = true
		if status == nil || tour.Status == *status {
			out = append(out, tour.Clone())
		}
	}
	for _, tour := range t.tournaments {
		collect(tour)
	}
	for _, tour := range t.repo.tournaments {
		collect(tour)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memoryBracketTx) CreateTournament(_ context.Context, tour *models.Tournament) error {
	if _, exists := t.tournament(tour.ID); exists {
		return ErrTournamentExists
	}
	now := time.Now().UTC()
	tour.CreatedAt, tour.UpdatedAt = now, now
	t.tournaments[tour.ID] = tour.Clone()
	return nil
}

func (t *memoryBracketTx) UpdateTournament(_ context.Context, tour *models.Tournament) error {
	existing, ok := t.tournament(tour.ID)
	if !ok {
		return ErrTournamentNotFound
	}
	c := existing.Clone()
	c.Status = tour.Status
	c.ChampionID = tour.ChampionID
	c.AdvancementHalted = tour.AdvancementHalted
	c.HaltReason = tour.HaltReason
	c.CompletedAt = tour.CompletedAt
	c.UpdatedAt = time.Now().UTC()
	t.tournaments[tour.ID] = c.Clone()
	return nil
}

func (t *memoryBracketTx) GetMatch(_ context.Context, id int64) (*models.Match, error) {
	m, ok := t.match(id)
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (t *memoryBracketTx) LockMatch(ctx context.Context, id int64) (*models.Match, error) {
	return t.GetMatch(ctx, id)
}

func (t *memoryBracketTx) ListMatches(_ context.Context, tournamentID string, filter MatchFilter) ([]*models.Match, error) {
	seen := make(map[int64]bool)
	out := make([]*models.Match, 0)
	collect := func(m *models.Match) {
		if seen[m.ID] {
			return
		}
		seen[m.ID] = true
		if m.TournamentID != tournamentID {
			return
		}
		if filter.Status != nil && m.Status != *filter.Status {
			return
		}
		if filter.Segment != nil && m.SegmentKey() != *filter.Segment {
			return
		}
		out = append(out, m.Clone())
	}
	for _, m := range t.matches {
		collect(m)
	}
	for _, m := range t.repo.matches {
		collect(m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryBracketTx) CreateMatch(ctx context.Context, m *models.Match) error {
	if _, ok := t.tournament(m.TournamentID); !ok {
		return ErrTournamentNotFound
	}
	existing, _ := t.ListMatches(ctx, m.TournamentID, MatchFilter{})
	for _, other := range existing {
		if other.Key() == m.Key() {
			return ErrMatchKeyConflict
		}
	}
	t.nextMatchID++
	now := time.Now().UTC()
	m.ID = t.nextMatchID
	m.CreatedAt, m.UpdatedAt = now, now
	t.matches[m.ID] = m.Clone()
	return nil
}

func (t *memoryBracketTx) UpdateMatch(_ context.Context, m *models.Match) error {
	if _, ok := t.match(m.ID); !ok {
		return ErrMatchNotFound
	}
	c := m.Clone()
	c.UpdatedAt = time.Now().UTC()
	t.matches[m.ID] = c
	return nil
}

func (t *memoryBracketTx) CreateEdge(_ context.Context, e models.AdvancementEdge) error {
	if _, ok := t.match(e.SourceMatchID); !ok {
		return ErrMatchNotFound
	}
	if _, ok := t.match(e.DestMatchID); !ok {
		return ErrMatchNotFound
	}
	for _, other := range t.allEdges() {
		if other.SourceMatchID == e.SourceMatchID && other.Outcome == e.Outcome {
			return ErrEdgeConflict
		}
		if other.DestMatchID == e.DestMatchID && other.DestSlot == e.DestSlot {
			return ErrEdgeConflict
		}
	}
	t.edges = append(t.edges, e)
	return nil
}

func (t *memoryBracketTx) ListEdges(_ context.Context, tournamentID string) ([]models.AdvancementEdge, error) {
	return t.filterEdges(func(e models.AdvancementEdge) bool { return e.TournamentID == tournamentID }), nil
}

func (t *memoryBracketTx) EdgesFrom(_ context.Context, matchID int64) ([]models.AdvancementEdge, error) {
	return t.filterEdges(func(e models.AdvancementEdge) bool { return e.SourceMatchID == matchID }), nil
}

func (t *memoryBracketTx) EdgesInto(_ context.Context, matchID int64) ([]models.AdvancementEdge, error) {
	return t.filterEdges(func(e models.AdvancementEdge) bool { return e.DestMatchID == matchID }), nil
}

func (t *memoryBracketTx) filterEdges(keep func(models.AdvancementEdge) bool) []models.AdvancementEdge {
	out := make([]models.AdvancementEdge, 0)
	for _, e := range t.allEdges() {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceMatchID != out[j].SourceMatchID {
			return out[i].SourceMatchID < out[j].SourceMatchID
		}
		return out[i].Outcome < out[j].Outcome
	})
	return out
}
