package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dosada05/tournament-bracket/services"
	"github.com/go-chi/chi/v5"
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err) // ошибка программиста: передан не указатель
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	writeErrorEnvelope(w, r, status, jsonResponse{"error": message})
}

// codedErrorResponse adds a stable machine-readable code next to the message.
func codedErrorResponse(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	writeErrorEnvelope(w, r, status, jsonResponse{"error": err.Error(), "code": code})
}

func writeErrorEnvelope(w http.ResponseWriter, r *http.Request, status int, env jsonResponse) {
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.ErrorContext(r.Context(), "failed to write error response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	errorResponse(w, r, http.StatusInternalServerError, message)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the requested resource could not be found"
	errorResponse(w, r, http.StatusNotFound, message)
}

func unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusUnauthorized, message)
}

func forbiddenResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusForbidden, message)
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	// Ресурс не найден
	case errors.Is(err, services.ErrMatchNotFound),
		errors.Is(err, services.ErrTournamentNotFound):
		notFoundResponse(w, r)

	// Структурные ошибки построения сетки
	case errors.Is(err, services.ErrTopology):
		codedErrorResponse(w, r, http.StatusBadRequest, "topology_error", err)
	case errors.Is(err, services.ErrBuild):
		codedErrorResponse(w, r, http.StatusBadRequest, "build_error", err)

	// Валидация результата
	case errors.Is(err, services.ErrInvalidScore):
		codedErrorResponse(w, r, http.StatusUnprocessableEntity, "invalid_score", err)

	// Конфликты
	case errors.Is(err, services.ErrBracketExists):
		codedErrorResponse(w, r, http.StatusConflict, "bracket_exists", err)
	case errors.Is(err, services.ErrResultConflict):
		codedErrorResponse(w, r, http.StatusConflict, "result_conflict", err)
	case errors.Is(err, services.ErrMatchNotReady):
		codedErrorResponse(w, r, http.StatusConflict, "match_not_ready", err)
	case errors.Is(err, services.ErrCorrectionBlocked):
		codedErrorResponse(w, r, http.StatusConflict, "correction_blocked", err)

	// Целостность: турнир остановлен до решения оператора
	case errors.Is(err, services.ErrSlotConflict):
		codedErrorResponse(w, r, http.StatusLocked, "slot_conflict", err)
	case errors.Is(err, services.ErrTournamentHalted):
		codedErrorResponse(w, r, http.StatusLocked, "tournament_halted", err)

	default:
		serverErrorResponse(w, r, err)
	}
}

func getInt64FromURL(r *http.Request, paramName string) (int64, error) {
	idStr := chi.URLParam(r, paramName)
	if idStr == "" {
		return 0, fmt.Errorf("missing %s in URL path", paramName)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %q", paramName, idStr)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", paramName)
	}
	return id, nil
}

func getStringFromURL(r *http.Request, paramName string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, paramName))
	if v == "" {
		return "", fmt.Errorf("missing %s in URL path", paramName)
	}
	return v, nil
}
