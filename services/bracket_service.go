package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Dosada05/tournament-bracket/brackets"
	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
)

// ParticipantInput is one entry of the seeded roster. Bye entries carry no ID.
type ParticipantInput struct {
	ID  string `json:"id,omitempty"`
	Bye bool   `json:"bye,omitempty"`
}

type CreateBracketInput struct {
	TournamentID string
	Participants []ParticipantInput
	GroupSize    int
	SplitPolicy  models.SplitPolicy
	CreatedBy    *string
}

type BracketOptions struct {
	DefaultGroupSize int
	SplitPolicy      models.SplitPolicy
	MaxTxRetries     uint64
}

type BracketService interface {
	CreateBracket(ctx context.Context, input CreateBracketInput) (*BracketView, error)
	GetBracketView(ctx context.Context, tournamentID string) (*BracketView, error)
	GetMatch(ctx context.Context, matchID int64) (*MatchView, error)
	ListMatches(ctx context.Context, tournamentID string, status *models.MatchStatus) ([]MatchView, error)
	Topology(groupSize int) (*brackets.Topology, error)
}

type bracketService struct {
	repo      repositories.BracketRepository
	topology  brackets.TopologyBuilder
	gate      *StageGate
	resolver  *AdvancementResolver
	publisher EventPublisher
	logger    *slog.Logger
	opts      BracketOptions
}

func NewBracketService(
	repo repositories.BracketRepository,
	topology brackets.TopologyBuilder,
	gate *StageGate,
	resolver *AdvancementResolver,
	publisher EventPublisher,
	logger *slog.Logger,
	opts BracketOptions,
) BracketService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultGroupSize == 0 {
		opts.DefaultGroupSize = 16
	}
	if opts.SplitPolicy == "" {
		opts.SplitPolicy = models.SplitHalves
	}
	return &bracketService{
		repo:      repo,
		topology:  topology,
		gate:      gate,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

func (s *bracketService) Topology(groupSize int) (*brackets.Topology, error) {
	if groupSize == 0 {
		groupSize = s.opts.DefaultGroupSize
	}
	topo, err := s.topology.Build(groupSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopology, err)
	}
	return topo, nil
}

func (s *bracketService) CreateBracket(ctx context.Context, input CreateBracketInput) (*BracketView, error) {
	input.TournamentID = strings.TrimSpace(input.TournamentID)
	if input.TournamentID == "" {
		return nil, fmt.Errorf("%w: tournament id is required", ErrBuild)
	}
	policy := input.SplitPolicy
	if policy == "" {
		policy = s.opts.SplitPolicy
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: unknown split policy %q", ErrBuild, policy)
	}

	topo, err := s.Topology(input.GroupSize)
	if err != nil {
		return nil, err
	}
	groupSize := topo.GroupSize

	if len(input.Participants) != 2*groupSize {
		return nil, fmt.Errorf("%w: %d participants for two groups of %d, need exactly %d",
			ErrBuild, len(input.Participants), groupSize, 2*groupSize)
	}
	roster, err := assignRoster(input.Participants)
	if err != nil {
		return nil, err
	}
	groups := splitGroups(roster, groupSize, policy)
	if err := checkOpeningPairs(groups); err != nil {
		return nil, err
	}

	s.logger.Info("creating bracket",
		slog.String("tournament_id", input.TournamentID),
		slog.Int("group_size", groupSize),
		slog.String("split_policy", string(policy)),
		slog.Int("matches", topo.MatchCount()))

	var sum *AdvancementSummary
	err = runTx(ctx, s.repo, s.opts.MaxTxRetries, func(ctx context.Context, tx repositories.BracketTx) error {
		sum = newSummary(input.TournamentID, 0)

		tournament := &models.Tournament{
			ID:          input.TournamentID,
			Roster:      roster,
			GroupCount:  len(topo.Groups),
			GroupSize:   groupSize,
			SplitPolicy: policy,
			Status:      models.TournamentStatusBuilding,
			CreatedBy:   input.CreatedBy,
		}
		if err := tx.CreateTournament(ctx, tournament); err != nil {
			return mapRepoError(err)
		}

		// ПЕРВЫЙ ПРОХОД: создаём все матчи и заполняем слоты первого раунда
		ids := make(map[models.MatchKey]int64, topo.MatchCount())
		var opening []int64
		for _, spec := range topo.Matches {
			m := &models.Match{
				TournamentID: input.TournamentID,
				Group:        spec.Key.Group,
				Segment:      spec.Key.Segment,
				Number:       spec.Key.Number,
				Status:       models.MatchStatusEmpty,
			}
			for i, seed := range spec.Seeds {
				if seed > 0 {
					player := groups[spec.Key.Group][seed-1]
					m.SetSlot(i+1, &player)
				}
			}
			m.FilledSlots = m.CountFilled()
			if _, err := s.gate.Settle(ctx, tx, m); err != nil {
				return err
			}
			if err := tx.CreateMatch(ctx, m); err != nil {
				return fmt.Errorf("failed to create match %s: %w", spec.Key, mapRepoError(err))
			}
			ids[spec.Key] = m.ID
			if m.Status == models.MatchStatusReady {
				opening = append(opening, m.ID)
			}
		}

		// ВТОРОЙ ПРОХОД: рёбра продвижения
		for _, e := range topo.Edges {
			edge := models.AdvancementEdge{
				TournamentID:  input.TournamentID,
				SourceMatchID: ids[e.From],
				Outcome:       e.Outcome,
				DestMatchID:   ids[e.To],
				DestSlot:      e.Slot,
			}
			if err := tx.CreateEdge(ctx, edge); err != nil {
				return fmt.Errorf("failed to create edge %s -> %s: %w", e.From, e.To, err)
			}
		}

		for _, id := range opening {
			m, err := tx.LockMatch(ctx, id)
			if err != nil {
				return mapRepoError(err)
			}
			sum.ReadyMatches = append(sum.ReadyMatches, m.ID)
			sum.emit(matchBecameReadyEvent(m))
			if err := s.resolver.AutoComplete(ctx, tx, m, sum); err != nil {
				return err
			}
		}

		tournament.Status = models.TournamentStatusInProgress
		return tx.UpdateTournament(ctx, tournament)
	})
	if err != nil {
		if errors.Is(err, ErrBracketExists) {
			return nil, fmt.Errorf("%w: %s", ErrBracketExists, input.TournamentID)
		}
		s.logger.Error("bracket creation failed", slog.String("tournament_id", input.TournamentID), slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("bracket created",
		slog.String("tournament_id", input.TournamentID),
		slog.Int("ready", len(sum.ReadyMatches)),
		slog.Int("byes_resolved", len(sum.AutoCompleted)))
	s.publisher.Publish(ctx, sum.Events()...)

	return s.GetBracketView(ctx, input.TournamentID)
}

// GetBracketView reads the tournament, its matches and edges from one
// transaction snapshot so a bracket is never seen half created.
func (s *bracketService) GetBracketView(ctx context.Context, tournamentID string) (*BracketView, error) {
	var (
		tournament *models.Tournament
		matches    []*models.Match
		edges      []models.AdvancementEdge
	)

	err := runTx(ctx, s.repo, s.opts.MaxTxRetries, func(ctx context.Context, tx repositories.BracketTx) error {
		t, err := tx.GetTournament(ctx, tournamentID)
		if err != nil {
			return mapRepoError(err)
		}
		list, err := tx.ListMatches(ctx, tournamentID, repositories.MatchFilter{})
		if err != nil {
			return fmt.Errorf("failed to list matches: %w", err)
		}
		links, err := tx.ListEdges(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list edges: %w", err)
		}
		tournament, matches, edges = t, list, links
		return nil
	})
	if err != nil {
		return nil, err
	}

	return buildBracketView(tournament, matches, edges), nil
}

func (s *bracketService) GetMatch(ctx context.Context, matchID int64) (*MatchView, error) {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	view := toMatchView(m)
	return &view, nil
}

func (s *bracketService) ListMatches(ctx context.Context, tournamentID string, status *models.MatchStatus) ([]MatchView, error) {
	if _, err := s.repo.GetTournament(ctx, tournamentID); err != nil {
		return nil, mapRepoError(err)
	}
	matches, err := s.repo.ListMatches(ctx, tournamentID, repositories.MatchFilter{Status: status})
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %s: %w", tournamentID, err)
	}
	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, toMatchView(m))
	}
	return views, nil
}

// assignRoster turns the seeded input into player ids, numbering byes in order.
func assignRoster(participants []ParticipantInput) ([]string, error) {
	roster := make([]string, 0, len(participants))
	seen := make(map[string]int, len(participants))
	byes := 0
	for i, p := range participants {
		id := strings.TrimSpace(p.ID)
		switch {
		case p.Bye && id != "":
			return nil, fmt.Errorf("%w: participant %d is both a bye and player %q", ErrBuild, i+1, id)
		case p.Bye:
			byes++
			roster = append(roster, models.ByePrefix+strconv.Itoa(byes))
			continue
		case id == "":
			return nil, fmt.Errorf("%w: participant %d has no id", ErrBuild, i+1)
		case models.IsBye(id):
			return nil, fmt.Errorf("%w: participant id %q uses the reserved %q prefix", ErrBuild, id, models.ByePrefix)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: player %q appears at positions %d and %d", ErrBuild, id, prev, i+1)
		}
		seen[id] = i + 1
		roster = append(roster, id)
	}
	return roster, nil
}

func splitGroups(roster []string, groupSize int, policy models.SplitPolicy) map[models.GroupID][]string {
	groups := map[models.GroupID][]string{
		models.GroupA: make([]string, 0, groupSize),
		models.GroupB: make([]string, 0, groupSize),
	}
	switch policy {
	case models.SplitAlternate:
		for i, id := range roster {
			if i%2 == 0 {
				groups[models.GroupA] = append(groups[models.GroupA], id)
			} else {
				groups[models.GroupB] = append(groups[models.GroupB], id)
			}
		}
	default:
		groups[models.GroupA] = append(groups[models.GroupA], roster[:groupSize]...)
		groups[models.GroupB] = append(groups[models.GroupB], roster[groupSize:]...)
	}
	return groups
}

// checkOpeningPairs rejects first-round matches between two byes.
func checkOpeningPairs(groups map[models.GroupID][]string) error {
	for _, g := range []models.GroupID{models.GroupA, models.GroupB} {
		players := groups[g]
		for i := 0; i+1 < len(players); i += 2 {
			if models.IsBye(players[i]) && models.IsBye(players[i+1]) {
				return fmt.Errorf("%w: group %s match %d pairs two byes", ErrBuild, g, i/2+1)
			}
		}
	}
	return nil
}
