package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-bracket/middleware"
	"github.com/Dosada05/tournament-bracket/services"
)

type MatchHandler struct {
	bracketService services.BracketService
	matchService   services.MatchService
}

func NewMatchHandler(bs services.BracketService, ms services.MatchService) *MatchHandler {
	return &MatchHandler{bracketService: bs, matchService: ms}
}

type reportResultRequest struct {
	Score1     *int `json:"score1"`
	Score2     *int `json:"score2"`
	Correction bool `json:"correction,omitempty"`
}

// GetMatch godoc
// @Summary Получить матч
// @Tags matches
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} services.MatchView
// @Failure 404 {object} map[string]string "Матч не найден"
// @Router /matches/{matchID} [get]
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getInt64FromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.bracketService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartMatch godoc
// @Summary Начать матч
// @Tags matches
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} services.MatchView
// @Failure 409 {object} map[string]string "Матч не готов"
// @Failure 423 {object} map[string]string "Турнир остановлен"
// @Security BearerAuth
// @Router /matches/{matchID}/start [post]
func (h *MatchHandler) StartMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getInt64FromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.StartMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReportResult godoc
// @Summary Сообщить результат матча
// @Tags matches
// @Description Записывает счёт и продвигает победителя и проигравшего. Повтор того же счёта ничего не меняет. Исправление (correction) доступно только организаторам.
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param input body reportResultRequest true "Счёт"
// @Success 200 {object} services.AdvancementSummary
// @Failure 400 {object} map[string]string "Некорректный запрос"
// @Failure 403 {object} map[string]string "Исправление недоступно"
// @Failure 409 {object} map[string]string "Конфликт результата / матч не готов / исправление заблокировано"
// @Failure 422 {object} map[string]string "Некорректный счёт"
// @Failure 423 {object} map[string]string "Турнир остановлен"
// @Security BearerAuth
// @Router /matches/{matchID}/result [post]
func (h *MatchHandler) ReportResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := getInt64FromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input reportResultRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Score1 == nil || input.Score2 == nil {
		errorResponse(w, r, http.StatusBadRequest, "score1 and score2 are required")
		return
	}

	if input.Correction {
		role, err := middleware.GetUserRoleFromContext(r.Context())
		if err != nil || !middleware.IsPrivileged(role) {
			forbiddenResponse(w, r, "only organizers can correct results")
			return
		}
	}

	summary, err := h.matchService.ReportMatchResult(r.Context(), services.ReportResultInput{
		MatchID:    matchID,
		Score1:     *input.Score1,
		Score2:     *input.Score2,
		ReportedBy: currentUserID,
		Correction: input.Correction,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"summary": summary}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
