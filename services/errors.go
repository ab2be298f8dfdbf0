package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-bracket/repositories"
)

var (
	// Структурные ошибки: сетка не создаётся частично
	ErrTopology      = errors.New("bracket topology error")
	ErrBuild         = errors.New("bracket build error")
	ErrBracketExists = errors.New("bracket already exists for tournament")

	// Ошибки валидации результата
	ErrInvalidScore   = errors.New("invalid score")
	ErrResultConflict = errors.New("result conflicts with the recorded result")
	ErrMatchNotReady  = errors.New("match is not ready")

	// Ошибки целостности
	ErrSlotConflict     = errors.New("slot already holds a different player")
	ErrTournamentHalted = errors.New("automatic advancement is halted pending operator review")

	// Операционные ошибки
	ErrCorrectionBlocked = errors.New("correction blocked: a downstream match already used this result")

	// Ресурс не найден
	ErrMatchNotFound      = errors.New("match not found")
	ErrTournamentNotFound = errors.New("tournament not found")
)

// SlotConflictError is returned when advancement would overwrite a filled slot
// with a different player.
type SlotConflictError struct {
	TournamentID  string
	SourceMatchID int64
	MatchID       int64
	Slot          int
	Existing      string
	Incoming      string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("%s: match %d slot %d holds %q, match %d tried to write %q",
		ErrSlotConflict, e.MatchID, e.Slot, e.Existing, e.SourceMatchID, e.Incoming)
}

func (e *SlotConflictError) Unwrap() error {
	return ErrSlotConflict
}

// mapRepoError переводит ошибки репозитория в ошибки сервисного слоя.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentExists):
		return ErrBracketExists
	default:
		return err
	}
}
