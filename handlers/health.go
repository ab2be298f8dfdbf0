package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
)

// Health reports whether the bracket store answers queries.
func Health(repo repositories.BracketReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := models.TournamentStatusInProgress
		if _, err := repo.ListTournaments(ctx, &status); err != nil {
			errorResponse(w, r, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "ok"}, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
	}
}
