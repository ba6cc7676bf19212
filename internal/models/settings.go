package models

import (
	"time"

	"github.com/google/uuid"

	"neuroflash-backend/internal/srs"
)

const (
	DefaultNewCardsPerDay   = 20
	DefaultMaxReviewsPerDay = 100
	DefaultLearningSteps    = "1 10"
)

type StudySettings struct {
	UserID           uuid.UUID `json:"user_id"`
	NewCardsPerDay   int       `json:"new_cards_per_day" validate:"gte=0,lte=9999"`
	MaxReviewsPerDay int       `json:"max_reviews_per_day" validate:"gte=0,lte=99999"`
	LearningSteps    string    `json:"learning_steps" validate:"max=200"`
	EaseBonus        float64   `json:"ease_bonus" validate:"gte=1,lte=5"`
}

// DefaultStudySettings is used for users who never saved settings.
func DefaultStudySettings(userID uuid.UUID) *StudySettings {
	return &StudySettings{
		UserID:           userID,
		NewCardsPerDay:   DefaultNewCardsPerDay,
		MaxReviewsPerDay: DefaultMaxReviewsPerDay,
		LearningSteps:    DefaultLearningSteps,
		EaseBonus:        srs.DefaultEaseBonus,
	}
}

type UserStats struct {
	UserID           uuid.UUID  `json:"user_id"`
	TotalReviews     int        `json:"total_reviews"`
	ReviewStreakDays int        `json:"review_streak_days"`
	LastReviewDate   *time.Time `json:"-"`
}

type DashboardStats struct {
	TotalDecks       int `json:"total_decks"`
	TotalCards       int `json:"total_cards"`
	CardsMastered    int `json:"cards_mastered"`
	DueToday         int `json:"due_today"`
	TotalReviews     int `json:"total_reviews"`
	ReviewStreakDays int `json:"review_streak_days"`
}
