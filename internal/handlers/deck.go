package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"neuroflash-backend/internal/middleware"
	"neuroflash-backend/internal/models"
)

type deckService interface {
	Create(ctx context.Context, userID uuid.UUID, req models.CreateDeckRequest) (*models.Deck, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.Deck, error)
	Get(ctx context.Context, deckID, userID uuid.UUID) (*models.Deck, error)
	Delete(ctx context.Context, deckID, userID uuid.UUID) error
	Stats(ctx context.Context, deckID, userID uuid.UUID) (*models.DeckStats, error)
}

type DeckHandler struct {
	decks deckService
}

func NewDeckHandler(decks deckService) *DeckHandler {
	return &DeckHandler{decks: decks}
}

func (h *DeckHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDeckRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	deck, err := h.decks.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, deck)
}

func (h *DeckHandler) List(w http.ResponseWriter, r *http.Request) {
	decks, err := h.decks.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"decks": decks})
}

func (h *DeckHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id", "deck")
	if !ok {
		return
	}

	deck, err := h.decks.Get(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deck)
}

func (h *DeckHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id", "deck")
	if !ok {
		return
	}

	if err := h.decks.Delete(r.Context(), id, middleware.GetUserID(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Deck deleted"})
}

func (h *DeckHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id", "deck")
	if !ok {
		return
	}

	stats, err := h.decks.Stats(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
