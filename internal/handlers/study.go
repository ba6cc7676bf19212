package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"neuroflash-backend/internal/middleware"
	"neuroflash-backend/internal/models"
)

type studyService interface {
	GetStudyCards(ctx context.Context, deckID, userID uuid.UUID) ([]models.CardForStudy, error)
	SubmitReview(ctx context.Context, cardID, userID uuid.UUID, rating string) (*models.NewState, error)
}

type StudyHandler struct {
	study studyService
}

func NewStudyHandler(study studyService) *StudyHandler {
	return &StudyHandler{study: study}
}

// Session lists the cards to study today in a deck.
func (h *StudyHandler) Session(w http.ResponseWriter, r *http.Request) {
	deckID, ok := uuidParam(w, r, "deckID", "deck")
	if !ok {
		return
	}

	cards, err := h.study.GetStudyCards(r.Context(), deckID, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deck_id": deckID,
		"cards":   cards,
		"count":   len(cards),
	})
}

func (h *StudyHandler) Review(w http.ResponseWriter, r *http.Request) {
	cardID, ok := uuidParam(w, r, "flashcardID", "flashcard")
	if !ok {
		return
	}

	var req models.ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	state, err := h.study.SubmitReview(r.Context(), cardID, middleware.GetUserID(r.Context()), req.Rating)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flashcard_id": cardID,
		"state":        state,
	})
}
