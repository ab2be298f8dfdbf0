// Command bracketctl is the operator CLI for the bracket service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/Dosada05/tournament-bracket/brackets"
	"github.com/Dosada05/tournament-bracket/db"
	"github.com/Dosada05/tournament-bracket/middleware"
	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
	"github.com/Dosada05/tournament-bracket/services"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const usage = `bracketctl — operator tools for the bracket service.

Commands:
  topology   print the match layout for a group size
  validate   run the consistency check for a tournament
  migrate    apply database migrations
  hash-key   print the bcrypt hash of an operator key
  token      issue a signed JWT for testing

Run "bracketctl <command> --help" for command flags.
`

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return nil
	}
	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "topology":
		err = topologyCmd(rest, out)
	case "validate":
		err = validateCmd(rest, out)
	case "migrate":
		err = migrateCmd(rest, out)
	case "hash-key":
		err = hashKeyCmd(rest, out)
	case "token":
		err = tokenCmd(rest, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

type segmentSummary struct {
	Segment string   `json:"segment"`
	Matches int      `json:"matches"`
	GatedBy []string `json:"gated_by,omitempty"`
}

type topologySummary struct {
	Builder   string           `json:"builder"`
	GroupSize int              `json:"group_size"`
	Matches   int              `json:"matches"`
	Edges     int              `json:"edges"`
	Segments  []segmentSummary `json:"segments"`
}

func topologyCmd(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("topology", pflag.ContinueOnError)
	groupSize := fs.IntP("group-size", "n", 16, "players per group (power of two, at least 4)")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	builder := brackets.NewTwoGroupDoubleElimination()
	topo, err := builder.Build(*groupSize)
	if err != nil {
		return err
	}

	summary := topologySummary{
		Builder:   builder.Name(),
		GroupSize: topo.GroupSize,
		Matches:   topo.MatchCount(),
		Edges:     len(topo.Edges),
	}
	sizes := topo.SegmentSizes()
	for _, key := range topo.Segments() {
		s := segmentSummary{Segment: key.String(), Matches: sizes[key]}
		// group_final #1 and #2 wait on different losers ladders
		var gates []models.SegmentKey
		seen := make(map[models.SegmentKey]bool)
		for _, m := range topo.Matches {
			if m.Key.SegmentKey() != key {
				continue
			}
			for _, g := range topo.GateSegments(m.Key) {
				if !seen[g] {
					seen[g] = true
					gates = append(gates, g)
				}
			}
		}
		sort.Slice(gates, func(i, j int) bool { return gates[i].Less(gates[j]) })
		for _, g := range gates {
			s.GatedBy = append(s.GatedBy, g.String())
		}
		summary.Segments = append(summary.Segments, s)
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Fprintf(out, "%s, group size %d: %d matches, %d edges\n", summary.Builder, summary.GroupSize, summary.Matches, summary.Edges)
	for _, s := range summary.Segments {
		fmt.Fprintf(out, "  %-24s %3d", s.Segment, s.Matches)
		if len(s.GatedBy) > 0 {
			fmt.Fprintf(out, "  gated by %v", s.GatedBy)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func databaseFlag(fs *pflag.FlagSet) *string {
	return fs.String("database-url", os.Getenv("DATABASE_URL"), "Postgres DSN (default $DATABASE_URL)")
}

func validateCmd(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	dsn := databaseFlag(fs)
	tournamentID := fs.StringP("tournament", "t", "", "tournament id")
	all := fs.Bool("all", false, "validate every in-progress tournament")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tournamentID == "" && !*all {
		return errors.New("--tournament or --all is required")
	}

	conn, err := db.Connect(*dsn, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc := services.NewConsistencyService(repositories.NewPostgresBracketRepository(conn), nil, logger, 4)

	ctx := context.Background()
	var reports []*services.ConsistencyReport
	if *all {
		reports, err = svc.Sweep(ctx)
	} else {
		var report *services.ConsistencyReport
		report, err = svc.ValidateConsistency(ctx, *tournamentID)
		reports = append(reports, report)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return err
	}
	for _, r := range reports {
		if !r.Consistent {
			return fmt.Errorf("tournament %s has %d findings", r.TournamentID, len(r.Findings))
		}
	}
	return nil
}

func migrateCmd(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	dsn := databaseFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	conn, err := db.Connect(*dsn, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}
	version, err := db.MigrationVersion(ctx, conn)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema at version %d\n", version)
	return nil
}

func hashKeyCmd(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("hash-key", pflag.ContinueOnError)
	key := fs.String("key", "", "operator key to hash")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return errors.New("--key is required")
	}
	hash, err := middleware.HashOperatorKey(*key)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hash)
	return nil
}

func tokenCmd(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("JWT_SECRET_KEY"), "signing secret (default $JWT_SECRET_KEY)")
	userID := fs.String("user", "", "user id claim")
	role := fs.String("role", string(middleware.RolePlayer), "role claim: player, organizer or admin")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" || *userID == "" {
		return errors.New("--secret and --user are required")
	}
	token, err := middleware.IssueToken([]byte(*secret), *userID, middleware.Role(*role), *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
