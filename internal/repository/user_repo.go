package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"neuroflash-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// GetStudySettings falls back to the defaults when the user never saved any.
func (r *UserRepo) GetStudySettings(ctx context.Context, userID uuid.UUID) (*models.StudySettings, error) {
	s := &models.StudySettings{}
	query := `SELECT user_id, new_cards_per_day, max_reviews_per_day, learning_steps, ease_bonus
		FROM settings WHERE user_id = $1`

	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.NewCardsPerDay, &s.MaxReviewsPerDay, &s.LearningSteps, &s.EaseBonus,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultStudySettings(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *UserRepo) UpsertStudySettings(ctx context.Context, s *models.StudySettings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO settings (user_id, new_cards_per_day, max_reviews_per_day, learning_steps, ease_bonus)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET new_cards_per_day = EXCLUDED.new_cards_per_day,
			max_reviews_per_day = EXCLUDED.max_reviews_per_day,
			learning_steps = EXCLUDED.learning_steps,
			ease_bonus = EXCLUDED.ease_bonus
	`, s.UserID, s.NewCardsPerDay, s.MaxReviewsPerDay, s.LearningSteps, s.EaseBonus)
	return err
}

func (r *UserRepo) GetDashboardStats(ctx context.Context, userID uuid.UUID, asOf time.Time) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM decks WHERE user_id = $1),
			COUNT(f.id),
			COUNT(f.id) FILTER (WHERE f.card_type = 'review' AND f.intervals >= $3),
			COUNT(f.id) FILTER (WHERE f.card_type <> 'new' AND f.due_date <= $2)
		FROM flashcards f
		JOIN notes n ON n.id = f.note_id
		WHERE n.user_id = $1
	`, userID, asOf, MasteredInterval).Scan(&stats.TotalDecks, &stats.TotalCards, &stats.CardsMastered, &stats.DueToday)
	if err != nil {
		return nil, err
	}

	var total, streak pgtype.Int4
	var last pgtype.Date
	err = r.pool.QueryRow(ctx,
		`SELECT total_reviews, review_streak_days, last_review_date FROM user_stats WHERE user_id = $1`,
		userID,
	).Scan(&total, &streak, &last)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	stats.TotalReviews = int(total.Int32)
	// A streak is only live if the last review was today or yesterday.
	if last.Valid && !last.Time.Before(asOf.AddDate(0, 0, -1)) {
		stats.ReviewStreakDays = int(streak.Int32)
	}
	return stats, nil
}

// MasteredInterval is the interval, in days, from which a review card counts
// as mastered on the dashboard.
const MasteredInterval = 21
