package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// 顧客向けの確認ページ
// 確認コードがそのまま認可の役割を持つため、オペレーター認証は行いません

func (h *Handler) handleGetConfirmation(w http.ResponseWriter, r *http.Request) {
	view, err := h.reservations.ConfirmationView(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondWithError(w, "loading confirmation", err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var decl model.DepositDeclaration
	if err := decodeJSON(r, &decl); err != nil {
		respondWithError(w, "decoding deposit declaration", err)
		return
	}
	if decl.SenderName == "" {
		respondWithMessage(w, http.StatusBadRequest, "sender_name is required")
		return
	}

	res, err := h.reservations.Confirm(r.Context(), chi.URLParam(r, "code"), decl)
	if err != nil {
		respondWithError(w, "confirming reservation", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}
