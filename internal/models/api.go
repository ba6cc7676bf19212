package models

import (
	"time"

	"github.com/google/uuid"
)

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const EventReviewRecorded = "review_recorded"

type ReviewEvent struct {
	FlashcardID uuid.UUID `json:"flashcard_id"`
	DeckID      uuid.UUID `json:"deck_id"`
	Rating      string    `json:"rating"`
	State       NewState  `json:"state"`
	ReviewedAt  time.Time `json:"reviewed_at"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
