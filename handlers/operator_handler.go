package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-bracket/services"
)

type OperatorHandler struct {
	consistencyService services.ConsistencyService
	matchService       services.MatchService
}

func NewOperatorHandler(cs services.ConsistencyService, ms services.MatchService) *OperatorHandler {
	return &OperatorHandler{consistencyService: cs, matchService: ms}
}

// ValidateConsistency godoc
// @Summary Проверка целостности сетки
// @Tags operator
// @Description Только чтение. Возвращает найденные расхождения между матчами и рёбрами продвижения.
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} services.ConsistencyReport
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Security OperatorKey
// @Router /operator/tournaments/{tournamentID}/consistency [get]
func (h *OperatorHandler) ValidateConsistency(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getStringFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.consistencyService.ValidateConsistency(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResumeAdvancement godoc
// @Summary Возобновить продвижение после остановки
// @Tags operator
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} models.Tournament
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Security OperatorKey
// @Router /operator/tournaments/{tournamentID}/resume [post]
func (h *OperatorHandler) ResumeAdvancement(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getStringFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.matchService.ResumeAdvancement(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
