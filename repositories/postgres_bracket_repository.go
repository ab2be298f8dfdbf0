package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-bracket/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const tournamentColumns = `id, roster, group_count, group_size, split_policy, status, champion_id,
	advancement_halted, halt_reason, created_by, created_at, updated_at, completed_at`

var matchColumns = []string{
	"id", "tournament_id", "group_id", "segment", "round", "match_number",
	"slot1_player_id", "slot2_player_id", "filled_slots", "status",
	"score1", "score2", "winner_id", "loser_id", "reported_by",
	"completed_at", "created_at", "updated_at",
}

const edgeColumns = `tournament_id, source_match_id, outcome, dest_match_id, dest_slot`

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx BracketTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(ctx, &postgresBracketTx{tx: tx})
}

func (r *postgresBracketRepository) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	return getTournament(ctx, r.db, id, false)
}

func (r *postgresBracketRepository) ListTournaments(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	return listTournaments(ctx, r.db, status)
}

func (r *postgresBracketRepository) GetMatch(ctx context.Context, id int64) (*models.Match, error) {
	return getMatch(ctx, r.db, id, false)
}

func (r *postgresBracketRepository) ListMatches(ctx context.Context, tournamentID string, filter MatchFilter) ([]*models.Match, error) {
	return listMatches(ctx, r.db, tournamentID, filter)
}

func (r *postgresBracketRepository) ListEdges(ctx context.Context, tournamentID string) ([]models.AdvancementEdge, error) {
	return listEdges(ctx, r.db, "tournament_id = $1", tournamentID)
}

type postgresBracketTx struct {
	tx *sql.Tx
}

func (t *postgresBracketTx) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	return getTournament(ctx, t.tx, id, false)
}

func (t *postgresBracketTx) LockTournament(ctx context.Context, id string) (*models.Tournament, error) {
	return getTournament(ctx, t.tx, id, true)
}

func (t *postgresBracketTx) ListTournaments(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	return listTournaments(ctx, t.tx, status)
}

func (t *postgresBracketTx) GetMatch(ctx context.Context, id int64) (*models.Match, error) {
	return getMatch(ctx, t.tx, id, false)
}

func (t *postgresBracketTx) LockMatch(ctx context.Context, id int64) (*models.Match, error) {
	return getMatch(ctx, t.tx, id, true)
}

func (t *postgresBracketTx) ListMatches(ctx context.Context, tournamentID string, filter MatchFilter) ([]*models.Match, error) {
	return listMatches(ctx, t.tx, tournamentID, filter)
}

func (t *postgresBracketTx) ListEdges(ctx context.Context, tournamentID string) ([]models.AdvancementEdge, error) {
	return listEdges(ctx, t.tx, "tournament_id = $1", tournamentID)
}

func (t *postgresBracketTx) EdgesFrom(ctx context.Context, matchID int64) ([]models.AdvancementEdge, error) {
	return listEdges(ctx, t.tx, "source_match_id = $1", matchID)
}

func (t *postgresBracketTx) EdgesInto(ctx context.Context, matchID int64) ([]models.AdvancementEdge, error) {
	return listEdges(ctx, t.tx, "dest_match_id = $1", matchID)
}

func (t *postgresBracketTx) CreateTournament(ctx context.Context, tour *models.Tournament) error {
	query := `
		INSERT INTO bracket_tournaments
			(id, roster, group_count, group_size, split_policy, status, champion_id,
			 advancement_halted, halt_reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := t.tx.QueryRowContext(ctx, query,
		tour.ID,
		pq.Array(tour.Roster),
		tour.GroupCount,
		tour.GroupSize,
		tour.SplitPolicy,
		tour.Status,
		tour.ChampionID,
		tour.AdvancementHalted,
		tour.HaltReason,
		tour.CreatedBy,
	).Scan(&tour.CreatedAt, &tour.UpdatedAt)

	return handleBracketError(err)
}

func (t *postgresBracketTx) UpdateTournament(ctx context.Context, tour *models.Tournament) error {
	query := `
		UPDATE bracket_tournaments
		SET status = $1, champion_id = $2, advancement_halted = $3, halt_reason = $4,
		    completed_at = $5, updated_at = now()
		WHERE id = $6`

	result, err := t.tx.ExecContext(ctx, query,
		tour.Status,
		tour.ChampionID,
		tour.AdvancementHalted,
		tour.HaltReason,
		tour.CompletedAt,
		tour.ID,
	)
	if err != nil {
		return handleBracketError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (t *postgresBracketTx) CreateMatch(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO bracket_matches
			(tournament_id, group_id, segment, round, match_number, slot1_player_id, slot2_player_id,
			 filled_slots, status, score1, score2, winner_id, loser_id, reported_by, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	err := t.tx.QueryRowContext(ctx, query,
		m.TournamentID,
		string(m.Group),
		string(m.Segment.Kind()),
		m.Segment.Round(),
		m.Number,
		m.Slot1,
		m.Slot2,
		m.FilledSlots,
		m.Status,
		m.Score1,
		m.Score2,
		m.WinnerID,
		m.LoserID,
		m.ReportedBy,
		m.CompletedAt,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)

	return handleBracketError(err)
}

func (t *postgresBracketTx) UpdateMatch(ctx context.Context, m *models.Match) error {
	query := `
		UPDATE bracket_matches
		SET slot1_player_id = $1, slot2_player_id = $2, filled_slots = $3, status = $4,
		    score1 = $5, score2 = $6, winner_id = $7, loser_id = $8, reported_by = $9,
		    completed_at = $10, updated_at = now()
		WHERE id = $11`

	result, err := t.tx.ExecContext(ctx, query,
		m.Slot1,
		m.Slot2,
		m.FilledSlots,
		m.Status,
		m.Score1,
		m.Score2,
		m.WinnerID,
		m.LoserID,
		m.ReportedBy,
		m.CompletedAt,
		m.ID,
	)
	if err != nil {
		return handleBracketError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (t *postgresBracketTx) CreateEdge(ctx context.Context, e models.AdvancementEdge) error {
	query := `INSERT INTO advancement_edges (` + edgeColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := t.tx.ExecContext(ctx, query, e.TournamentID, e.SourceMatchID, e.Outcome, e.DestMatchID, e.DestSlot)
	return handleBracketError(err)
}

func getTournament(ctx context.Context, exec SQLExecutor, id string, lock bool) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM bracket_tournaments WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	tour, err := scanTournament(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %s: %w", id, err)
	}
	return tour, nil
}

func listTournaments(ctx context.Context, exec SQLExecutor, status *models.TournamentStatus) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM bracket_tournaments`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		tour, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, tour)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func getMatch(ctx context.Context, exec SQLExecutor, id int64, lock bool) (*models.Match, error) {
	q := psql.Select(matchColumns...).From("bracket_matches").Where(sq.Eq{"id": id})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build match query: %w", err)
	}

	m, err := scanMatch(exec.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func listMatches(ctx context.Context, exec SQLExecutor, tournamentID string, filter MatchFilter) ([]*models.Match, error) {
	q := psql.Select(matchColumns...).From("bracket_matches").Where(sq.Eq{"tournament_id": tournamentID})
	if filter.Status != nil {
		q = q.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.Segment != nil {
		q = q.Where(sq.Eq{
			"group_id": string(filter.Segment.Group),
			"segment":  string(filter.Segment.Segment.Kind()),
			"round":    filter.Segment.Segment.Round(),
		})
	}
	query, args, err := q.OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build match list query: %w", err)
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func listEdges(ctx context.Context, exec SQLExecutor, where string, arg interface{}) ([]models.AdvancementEdge, error) {
	query := `SELECT ` + edgeColumns + ` FROM advancement_edges WHERE ` + where + ` ORDER BY source_match_id, outcome`

	rows, err := exec.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query advancement edges: %w", err)
	}
	defer rows.Close()

	edges := make([]models.AdvancementEdge, 0)
	for rows.Next() {
		var e models.AdvancementEdge
		if scanErr := rows.Scan(&e.TournamentID, &e.SourceMatchID, &e.Outcome, &e.DestMatchID, &e.DestSlot); scanErr != nil {
			return nil, fmt.Errorf("failed to scan advancement edge row: %w", scanErr)
		}
		edges = append(edges, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during advancement edge rows iteration: %w", err)
	}
	return edges, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTournament(row rowScanner) (*models.Tournament, error) {
	tour := &models.Tournament{}
	var completedAt sql.NullTime
	err := row.Scan(
		&tour.ID,
		pq.Array(&tour.Roster),
		&tour.GroupCount,
		&tour.GroupSize,
		&tour.SplitPolicy,
		&tour.Status,
		&tour.ChampionID,
		&tour.AdvancementHalted,
		&tour.HaltReason,
		&tour.CreatedBy,
		&tour.CreatedAt,
		&tour.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		tour.CompletedAt = &completedAt.Time
	}
	return tour, nil
}

func scanMatch(row rowScanner) (*models.Match, error) {
	m := &models.Match{}
	var (
		group       string
		kind        string
		round       int
		completedAt sql.NullTime
		score1      sql.NullInt64
		score2      sql.NullInt64
	)
	err := row.Scan(
		&m.ID,
		&m.TournamentID,
		&group,
		&kind,
		&round,
		&m.Number,
		&m.Slot1,
		&m.Slot2,
		&m.FilledSlots,
		&m.Status,
		&score1,
		&score2,
		&m.WinnerID,
		&m.LoserID,
		&m.ReportedBy,
		&completedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	seg, err := models.ParseSegment(models.SegmentKind(kind), round)
	if err != nil {
		return nil, err
	}
	m.Segment = seg
	m.Group = models.GroupID(group)
	m.Score1 = nullIntPtr(score1)
	m.Score2 = nullIntPtr(score2)
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		m.CompletedAt = &t
	}
	return m, nil
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func handleBracketError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgerrcode.UniqueViolation:
			switch pqErr.Constraint {
			case "bracket_tournaments_pkey":
				return ErrTournamentExists
			case "bracket_matches_identity_key":
				return ErrMatchKeyConflict
			case "advancement_edges_pkey", "advancement_edges_dest_key":
				return ErrEdgeConflict
			}
		case pgerrcode.ForeignKeyViolation:
			switch pqErr.Constraint {
			case "bracket_matches_tournament_id_fkey", "advancement_edges_tournament_id_fkey":
				return ErrTournamentNotFound
			case "advancement_edges_source_match_id_fkey", "advancement_edges_dest_match_id_fkey":
				return ErrMatchNotFound
			}
		}
		// serialization failures keep the *pq.Error in the chain so callers can retry
		return fmt.Errorf("database error (%s): %w", pqErr.Code, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("database operation failed: %w", err)
}
