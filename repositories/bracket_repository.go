package repositories

import (
	"context"
	"errors"

	"github.com/Dosada05/tournament-bracket/models"
)

var (
	ErrTournamentNotFound = errors.New("bracket tournament not found")
	ErrTournamentExists   = errors.New("bracket tournament already exists")
	ErrMatchNotFound      = errors.New("bracket match not found")
	ErrMatchKeyConflict   = errors.New("bracket match identity already taken")
	ErrEdgeConflict       = errors.New("advancement edge already exists")
)

type MatchFilter struct {
	Status  *models.MatchStatus
	Segment *models.SegmentKey
}

// BracketReader is the read side shared by the repository and its transactions.
type BracketReader interface {
	GetTournament(ctx context.Context, id string) (*models.Tournament, error)
	ListTournaments(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error)
	GetMatch(ctx context.Context, id int64) (*models.Match, error)
	ListMatches(ctx context.Context, tournamentID string, filter MatchFilter) ([]*models.Match, error)
	ListEdges(ctx context.Context, tournamentID string) ([]models.AdvancementEdge, error)
}

// BracketTx is a serializable unit of work. Lock* methods take row locks that
// are held until the transaction ends.
type BracketTx interface {
	BracketReader

	CreateTournament(ctx context.Context, t *models.Tournament) error
	LockTournament(ctx context.Context, id string) (*models.Tournament, error)
	UpdateTournament(ctx context.Context, t *models.Tournament) error

	CreateMatch(ctx context.Context, m *models.Match) error
	LockMatch(ctx context.Context, id int64) (*models.Match, error)
	UpdateMatch(ctx context.Context, m *models.Match) error

	CreateEdge(ctx context.Context, e models.AdvancementEdge) error
	EdgesFrom(ctx context.Context, matchID int64) ([]models.AdvancementEdge, error)
	EdgesInto(ctx context.Context, matchID int64) ([]models.AdvancementEdge, error)
}

type BracketRepository interface {
	BracketReader
	// WithinTx runs fn in one transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx BracketTx) error) error
}
