package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"neuroflash-backend/internal/models"
	"neuroflash-backend/internal/srs"
)

type FlashcardRepo struct {
	pool *pgxpool.Pool
}

func NewFlashcardRepo(pool *pgxpool.Pool) *FlashcardRepo {
	return &FlashcardRepo{pool: pool}
}

// ReviewOutcome is what a ReviewFunc hands back to be persisted next to the
// mutated card. Day is the study day the review counts toward.
type ReviewOutcome struct {
	Log models.ReviewLog
	Day time.Time
}

// ReviewFunc mutates card in place. Returning an error aborts the transaction.
type ReviewFunc func(card *models.Flashcard) (*ReviewOutcome, error)

const studyCardColumns = `f.id, f.note_id, f.deck_id, f.card_type, f.due_date, f.ease_factor,
	f.intervals, f.reps, f.lapses, f.last_reviewed, f.created_at`

// ListNewCards returns up to limit unseen cards, newest first.
func (r *FlashcardRepo) ListNewCards(ctx context.Context, deckID, userID uuid.UUID, limit int) ([]models.StudyCard, error) {
	query := `SELECT ` + studyCardColumns + `, n.front, n.back
		FROM flashcards f
		JOIN notes n ON n.id = f.note_id
		WHERE f.deck_id = $1 AND n.user_id = $2 AND f.card_type = 'new'
		ORDER BY f.created_at DESC, f.id DESC
		LIMIT $3`

	return r.queryStudyCards(ctx, query, deckID, userID, limit)
}

// ListDueCards returns up to limit seen cards due on or before asOf, earliest
// due first and lowest ease first within a day.
func (r *FlashcardRepo) ListDueCards(ctx context.Context, deckID, userID uuid.UUID, asOf time.Time, limit int) ([]models.StudyCard, error) {
	query := `SELECT ` + studyCardColumns + `, n.front, n.back
		FROM flashcards f
		JOIN notes n ON n.id = f.note_id
		WHERE f.deck_id = $1 AND n.user_id = $2 AND f.card_type <> 'new' AND f.due_date <= $3
		ORDER BY f.due_date ASC, f.ease_factor ASC, f.id ASC
		LIMIT $4`

	return r.queryStudyCards(ctx, query, deckID, userID, asOf, limit)
}

func (r *FlashcardRepo) queryStudyCards(ctx context.Context, query string, args ...interface{}) ([]models.StudyCard, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query study cards: %w", err)
	}
	defer rows.Close()

	cards := make([]models.StudyCard, 0)
	for rows.Next() {
		var c models.StudyCard
		if err := scanFlashcard(rows, &c.Flashcard, &c.Front, &c.Back); err != nil {
			return nil, fmt.Errorf("failed to scan study card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// ApplyReview runs fn against the card under a row lock and persists the
// card update, the review log and the user's stats in one transaction. A card
// that does not exist or whose note belongs to someone else yields
// pgx.ErrNoRows and nothing is written.
func (r *FlashcardRepo) ApplyReview(ctx context.Context, cardID, userID uuid.UUID, fn ReviewFunc) (*models.Flashcard, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	card := &models.Flashcard{}
	row := tx.QueryRow(ctx, `SELECT `+studyCardColumns+`
		FROM flashcards f
		JOIN notes n ON n.id = f.note_id
		WHERE f.id = $1 AND n.user_id = $2
		FOR UPDATE OF f`, cardID, userID)
	if err := scanFlashcard(row, card); err != nil {
		return nil, fmt.Errorf("failed to lock flashcard %s: %w", cardID, err)
	}

	outcome, err := fn(card)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE flashcards SET card_type = $1, due_date = $2, intervals = $3, ease_factor = $4,
		 reps = $5, lapses = $6, last_reviewed = $7 WHERE id = $8`,
		string(card.Stage), card.DueDate, card.Interval, card.EaseFactor,
		card.Reps, card.Lapses, card.LastReviewed, card.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update flashcard %s: %w", card.ID, err)
	}

	l := &outcome.Log
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO review_logs (id, flashcard_id, user_id, rating, review_time,
		 intervals_before, intervals_after, ease_factor_before, ease_factor_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.FlashcardID, l.UserID, string(l.Rating), l.ReviewTime,
		l.IntervalBefore, l.IntervalAfter, l.EaseFactorBefore, l.EaseFactorAfter,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append review log: %w", err)
	}

	// Same day keeps the streak, the next day extends it, any gap restarts it.
	_, err = tx.Exec(ctx, `
		INSERT INTO user_stats (user_id, total_reviews, review_streak_days, last_review_date)
		VALUES ($1, 1, 1, $2::date)
		ON CONFLICT (user_id) DO UPDATE
		SET total_reviews = user_stats.total_reviews + 1,
			review_streak_days = CASE
				WHEN user_stats.last_review_date = $2::date THEN user_stats.review_streak_days
				WHEN user_stats.last_review_date = $2::date - 1 THEN user_stats.review_streak_days + 1
				ELSE 1
			END,
			last_review_date = GREATEST(COALESCE(user_stats.last_review_date, $2::date), $2::date)
	`, userID, outcome.Day)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit review: %w", err)
	}
	return card, nil
}

func (r *FlashcardRepo) GetDeckStats(ctx context.Context, deckID uuid.UUID, asOf time.Time) (*models.DeckStats, error) {
	stats := &models.DeckStats{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE card_type = 'new'),
			COUNT(*) FILTER (WHERE card_type = 'learning'),
			COUNT(*) FILTER (WHERE card_type = 'review'),
			COUNT(*) FILTER (WHERE card_type <> 'new' AND due_date <= $2)
		FROM flashcards WHERE deck_id = $1
	`, deckID, asOf).Scan(&stats.TotalCards, &stats.New, &stats.Learning, &stats.Review, &stats.DueToday)
	if err != nil {
		return nil, fmt.Errorf("failed to load deck stats: %w", err)
	}
	return stats, nil
}

func scanFlashcard(row pgx.Row, c *models.Flashcard, extra ...interface{}) error {
	var stage string
	dest := []interface{}{
		&c.ID, &c.NoteID, &c.DeckID, &stage, &c.DueDate, &c.EaseFactor,
		&c.Interval, &c.Reps, &c.Lapses, &c.LastReviewed, &c.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	c.Stage = srs.Stage(stage)
	if !c.Stage.IsValid() {
		return fmt.Errorf("flashcard %s has unknown card_type %q", c.ID, stage)
	}
	return nil
}
