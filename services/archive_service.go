package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/storage"
)

const archiveTimeout = 30 * time.Second

// BracketViewer is the read side the archiver needs from the bracket service.
type BracketViewer interface {
	GetBracketView(ctx context.Context, tournamentID string) (*BracketView, error)
}

// SnapshotArchiver uploads the final bracket of every completed tournament.
// Uploads run in the background; Wait blocks until the pending ones finish.
type SnapshotArchiver struct {
	viewer   BracketViewer
	uploader storage.FileUploader
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewSnapshotArchiver(viewer BracketViewer, uploader storage.FileUploader, logger *slog.Logger) *SnapshotArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotArchiver{viewer: viewer, uploader: uploader, logger: logger}
}

func (a *SnapshotArchiver) Publish(ctx context.Context, events ...models.Event) {
	for _, e := range events {
		if e.Type != models.EventTournamentCompleted {
			continue
		}
		event := e
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
			defer cancel()

			res, err := a.Archive(archiveCtx, event.TournamentID, event.ID)
			if err != nil {
				a.logger.Error("failed to archive bracket snapshot",
					slog.String("tournament_id", event.TournamentID),
					slog.Any("error", err))
				return
			}
			a.logger.Info("bracket snapshot archived",
				slog.String("tournament_id", event.TournamentID),
				slog.String("key", res.Key),
				slog.String("location", res.Location))
		}()
	}
}

// Archive uploads the current bracket view of a tournament as JSON.
func (a *SnapshotArchiver) Archive(ctx context.Context, tournamentID, version string) (*storage.UploadResult, error) {
	view, err := a.viewer.GetBracketView(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bracket %s: %w", tournamentID, err)
	}
	body, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bracket %s: %w", tournamentID, err)
	}
	key := fmt.Sprintf("%s/final-%s.json", tournamentID, version)
	return a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
}

func (a *SnapshotArchiver) Wait() {
	a.wg.Wait()
}
