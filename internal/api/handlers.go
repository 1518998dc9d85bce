package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
	"github.com/uma-arai/sbcntr-bungalow/internal/repository"
	"github.com/uma-arai/sbcntr-bungalow/internal/service/reservation"
)

// ReservationService はハンドラーが利用する予約サービスです
type ReservationService interface {
	Book(ctx context.Context, req reservation.BookRequest) (*reservation.BookResult, error)
	Quote(ctx context.Context, req reservation.QuoteRequest) (*reservation.Quote, error)
	Get(ctx context.Context, reservationID string) (model.Reservation, error)
	List(ctx context.Context, filter repository.ReservationFilter) ([]model.Reservation, error)
	Availability(ctx context.Context, unitID string, checkIn, checkOut time.Time) ([]model.Reservation, error)
	BlockedNights(ctx context.Context, unitID string, from, to time.Time) ([]time.Time, error)
	Cancel(ctx context.Context, reservationID, reason string) (model.Reservation, error)
	CheckIn(ctx context.Context, reservationID string) (model.Reservation, error)
	CheckOut(ctx context.Context, reservationID string) (model.Reservation, error)
	RecordPayment(ctx context.Context, reservationID string, amount decimal.Decimal) (model.Reservation, error)
	IssueConfirmation(ctx context.Context, reservationID string, ttl time.Duration) (*reservation.ConfirmationTicket, error)
	Confirm(ctx context.Context, code string, decl model.DepositDeclaration) (model.Reservation, error)
	ConfirmationView(ctx context.Context, code string) (*reservation.ConfirmationView, error)
	SweepExpired(ctx context.Context) ([]model.Reservation, error)
}

// Handler はHTTPハンドラーが利用するサービスをまとめます
type Handler struct {
	reservations  ReservationService
	units         repository.UnitRepository
	notifications repository.NotificationRepository
}

// NewHandler は新しいHandlerを作成します
func NewHandler(reservations ReservationService, units repository.UnitRepository, notifications repository.NotificationRepository) *Handler {
	return &Handler{
		reservations:  reservations,
		units:         units,
		notifications: notifications,
	}
}

type bookingRequest struct {
	UnitID          string           `json:"unit_id"`
	CustomerID      string           `json:"customer_id"`
	CheckIn         string           `json:"check_in"`
	CheckOut        string           `json:"check_out"`
	GuestCount      int              `json:"guest_count"`
	Notes           string           `json:"notes"`
	CustomTotal     *decimal.Decimal `json:"custom_total"`
	DepositReceived bool             `json:"deposit_received"`
}

func (b bookingRequest) dates() (time.Time, time.Time, error) {
	checkIn, err := parseDate("check_in", b.CheckIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	checkOut, err := parseDate("check_out", b.CheckOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return checkIn, checkOut, nil
}

type availabilityResponse struct {
	UnitID    string              `json:"unit_id"`
	CheckIn   string              `json:"check_in"`
	CheckOut  string              `json:"check_out"`
	Available bool                `json:"available"`
	Conflicts []model.Reservation `json:"conflicts"`
}

type calendarResponse struct {
	UnitID        string   `json:"unit_id"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	BlockedNights []string `json:"blocked_nights"`
}

type sweepResponse struct {
	Expired        int      `json:"expired"`
	ReservationIDs []string `json:"reservation_ids"`
}

func (h *Handler) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.units.List(r.Context())
	if err != nil {
		respondWithError(w, "listing units", err)
		return
	}
	respondWithJSON(w, http.StatusOK, units)
}

func (h *Handler) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.units.Get(r.Context(), chi.URLParam(r, "unitID"))
	if err != nil {
		respondWithError(w, "getting unit", err)
		return
	}
	respondWithJSON(w, http.StatusOK, unit)
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")
	query := bookingRequest{CheckIn: r.URL.Query().Get("check_in"), CheckOut: r.URL.Query().Get("check_out")}
	checkIn, checkOut, err := query.dates()
	if err != nil {
		respondWithError(w, "parsing availability query", err)
		return
	}

	conflicts, err := h.reservations.Availability(r.Context(), unitID, checkIn, checkOut)
	if err != nil {
		respondWithError(w, "checking availability", err)
		return
	}
	if conflicts == nil {
		conflicts = []model.Reservation{}
	}

	respondWithJSON(w, http.StatusOK, availabilityResponse{
		UnitID:    unitID,
		CheckIn:   query.CheckIn,
		CheckOut:  query.CheckOut,
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	})
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")
	from, err := parseDate("from", r.URL.Query().Get("from"))
	if err != nil {
		respondWithError(w, "parsing calendar query", err)
		return
	}
	to, err := parseDate("to", r.URL.Query().Get("to"))
	if err != nil {
		respondWithError(w, "parsing calendar query", err)
		return
	}

	nights, err := h.reservations.BlockedNights(r.Context(), unitID, from, to)
	if err != nil {
		respondWithError(w, "loading calendar", err)
		return
	}

	respondWithJSON(w, http.StatusOK, calendarResponse{
		UnitID:        unitID,
		From:          from.Format(time.DateOnly),
		To:            to.Format(time.DateOnly),
		BlockedNights: formatDates(nights),
	})
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, "decoding quote request", err)
		return
	}
	checkIn, checkOut, err := req.dates()
	if err != nil {
		respondWithError(w, "decoding quote request", err)
		return
	}

	quote, err := h.reservations.Quote(r.Context(), reservation.QuoteRequest{
		UnitID:          req.UnitID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		CustomTotal:     req.CustomTotal,
		DepositReceived: req.DepositReceived,
	})
	if err != nil {
		respondWithError(w, "quoting stay", err)
		return
	}
	respondWithJSON(w, http.StatusOK, quote)
}

func (h *Handler) handleListReservations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repository.ReservationFilter{
		UnitID:     query.Get("unit_id"),
		CustomerID: query.Get("customer_id"),
	}
	if s := query.Get("status"); s != "" {
		status, err := model.ParseReservationStatus(s)
		if err != nil {
			respondWithError(w, "parsing reservation filter", fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		filter.Status = status
	}

	reservations, err := h.reservations.List(r.Context(), filter)
	if err != nil {
		respondWithError(w, "listing reservations", err)
		return
	}
	respondWithJSON(w, http.StatusOK, reservations)
}

func (h *Handler) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, "decoding booking request", err)
		return
	}
	checkIn, checkOut, err := req.dates()
	if err != nil {
		respondWithError(w, "decoding booking request", err)
		return
	}

	result, err := h.reservations.Book(r.Context(), reservation.BookRequest{
		UnitID:          req.UnitID,
		CustomerID:      req.CustomerID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		GuestCount:      req.GuestCount,
		Notes:           req.Notes,
		CustomTotal:     req.CustomTotal,
		DepositReceived: req.DepositReceived,
	})
	if err != nil {
		respondWithError(w, "creating reservation", err)
		return
	}

	operatorID, _ := OperatorFromContext(r.Context())
	log.Printf("Reservation %s created by operator %s", result.Reservation.Code, operatorID)
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.Get(r.Context(), chi.URLParam(r, "reservationID"))
	if err != nil {
		respondWithError(w, "getting reservation", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, "decoding cancel request", err)
			return
		}
	}

	res, err := h.reservations.Cancel(r.Context(), chi.URLParam(r, "reservationID"), req.Reason)
	if err != nil {
		respondWithError(w, "cancelling reservation", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.CheckIn(r.Context(), chi.URLParam(r, "reservationID"))
	if err != nil {
		respondWithError(w, "checking in", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.CheckOut(r.Context(), chi.URLParam(r, "reservationID"))
	if err != nil {
		respondWithError(w, "checking out", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, "decoding payment request", err)
		return
	}

	res, err := h.reservations.RecordPayment(r.Context(), chi.URLParam(r, "reservationID"), req.Amount)
	if err != nil {
		respondWithError(w, "recording payment", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) handleIssueConfirmation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TTLSeconds int64 `json:"ttl_seconds"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, "decoding confirmation request", err)
			return
		}
	}

	ticket, err := h.reservations.IssueConfirmation(r.Context(), chi.URLParam(r, "reservationID"), time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		respondWithError(w, "issuing confirmation", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	records, err := h.notifications.GetByCustomerID(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		respondWithError(w, "listing notifications", err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

func (h *Handler) handleSweepExpired(w http.ResponseWriter, r *http.Request) {
	expired, err := h.reservations.SweepExpired(r.Context())
	if err != nil {
		respondWithError(w, "sweeping expired reservations", err)
		return
	}

	ids := make([]string, len(expired))
	for i, res := range expired {
		ids[i] = res.ID
	}
	respondWithJSON(w, http.StatusOK, sweepResponse{Expired: len(expired), ReservationIDs: ids})
}
