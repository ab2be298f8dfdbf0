package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/tournament-bracket/middleware"
	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/services"
)

type BracketHandler struct {
	bracketService services.BracketService
}

func NewBracketHandler(bs services.BracketService) *BracketHandler {
	return &BracketHandler{bracketService: bs}
}

type createBracketRequest struct {
	Participants []services.ParticipantInput `json:"participants"`
	GroupSize    int                         `json:"group_size,omitempty"`
	SplitPolicy  models.SplitPolicy          `json:"split_policy,omitempty"`
}

// CreateBracket godoc
// @Summary Построить сетку турнира
// @Tags brackets
// @Description Строит обе группы и кросс-стадию из упорядоченного списка участников. Сетка сохраняется целиком или не сохраняется вовсе.
// @Accept json
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param input body createBracketRequest true "Участники в порядке посева"
// @Success 201 {object} services.BracketView
// @Failure 400 {object} map[string]string "Ошибка топологии или состава"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Failure 403 {object} map[string]string "Нет прав"
// @Failure 409 {object} map[string]string "Сетка уже существует"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/bracket [post]
func (h *BracketHandler) CreateBracket(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getStringFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input createBracketRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(input.Participants) == 0 {
		badRequestResponse(w, r, errors.New("participants are required"))
		return
	}

	var createdBy *string
	if userID, err := middleware.GetUserIDFromContext(r.Context()); err == nil {
		createdBy = &userID
	}

	view, err := h.bracketService.CreateBracket(r.Context(), services.CreateBracketInput{
		TournamentID: tournamentID,
		Participants: input.Participants,
		GroupSize:    input.GroupSize,
		SplitPolicy:  input.SplitPolicy,
		CreatedBy:    createdBy,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"bracket": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBracket godoc
// @Summary Получить сетку турнира
// @Tags brackets
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} services.BracketView
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Router /tournaments/{tournamentID}/bracket [get]
func (h *BracketHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getStringFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.bracketService.GetBracketView(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatches godoc
// @Summary Список матчей турнира
// @Tags brackets
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param status query string false "Фильтр по статусу (empty, partially_filled, ready, in_progress, completed)"
// @Success 200 {array} services.MatchView
// @Failure 400 {object} map[string]string "Неизвестный статус"
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Router /tournaments/{tournamentID}/matches [get]
func (h *BracketHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getStringFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var status *models.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.MatchStatus(raw)
		if !s.Valid() {
			badRequestResponse(w, r, errors.New("unknown match status "+raw))
			return
		}
		status = &s
	}

	matches, err := h.bracketService.ListMatches(r.Context(), tournamentID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
