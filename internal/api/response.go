package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithMessage(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

// respondWithError は業務エラーを対応するステータスコードに変換して返します
// それ以外のエラーは内容を隠して500を返します
func respondWithError(w http.ResponseWriter, action string, err error) {
	code := statusFromError(err)
	if code == http.StatusInternalServerError {
		log.Printf("Error %s: %v", action, err)
		respondWithMessage(w, code, "Internal Server Error")
		return
	}
	respondWithMessage(w, code, err.Error())
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, model.ErrReservationNotFound),
		errors.Is(err, model.ErrUnitNotFound),
		errors.Is(err, model.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConfirmationExpired):
		return http.StatusGone
	case errors.Is(err, model.ErrCustomerBanned):
		return http.StatusForbidden
	case errors.Is(err, model.ErrUnitUnavailable),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrCancellationWindowClosed):
		return http.StatusConflict
	case errors.Is(err, errBadRequest), model.IsValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

// parseDate は "2006-01-02" 形式の日付を解析します
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", errBadRequest, field)
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be formatted as YYYY-MM-DD", errBadRequest, field)
	}
	return t, nil
}

func formatDates(dates []time.Time) []string {
	formatted := make([]string, len(dates))
	for i, d := range dates {
		formatted[i] = d.Format(time.DateOnly)
	}
	return formatted
}
