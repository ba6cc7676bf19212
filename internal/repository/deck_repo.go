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

type DeckRepo struct {
	pool *pgxpool.Pool
}

func NewDeckRepo(pool *pgxpool.Pool) *DeckRepo {
	return &DeckRepo{pool: pool}
}

// CreateWithCards inserts the deck, one note per card and one new flashcard
// per note. Either everything is written or nothing is.
func (r *DeckRepo) CreateWithCards(ctx context.Context, d *models.Deck, cards []models.CardContentInput, today time.Time) error {
	d.ID = uuid.New()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin deck transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO decks (id, user_id, name, description) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		d.ID, d.UserID, d.Name, d.Description,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert deck: %w", err)
	}

	initial := srs.NewCardState()
	batch := &pgx.Batch{}
	for _, c := range cards {
		noteID := uuid.New()
		batch.Queue(`INSERT INTO notes (id, user_id, front, back) VALUES ($1, $2, $3, $4)`,
			noteID, d.UserID, c.Front, c.Back)
		batch.Queue(`INSERT INTO flashcards (id, note_id, deck_id, card_type, due_date, ease_factor, intervals, reps, lapses)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), noteID, d.ID, string(initial.Stage), today, initial.EaseFactor,
			initial.Interval, initial.Reps, initial.Lapses)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert cards: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit deck: %w", err)
	}
	d.CardCount = len(cards)
	return nil
}

func (r *DeckRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Deck, error) {
	d := &models.Deck{}
	query := `SELECT d.id, d.user_id, d.name, d.description, d.created_at,
		(SELECT COUNT(*) FROM flashcards f WHERE f.deck_id = d.id)
		FROM decks d WHERE d.id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.UserID, &d.Name, &d.Description, &d.CreatedAt, &d.CardCount,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DeckRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Deck, error) {
	query := `SELECT d.id, d.user_id, d.name, d.description, d.created_at,
		(SELECT COUNT(*) FROM flashcards f WHERE f.deck_id = d.id)
		FROM decks d WHERE d.user_id = $1 ORDER BY d.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	decks := make([]*models.Deck, 0)
	for rows.Next() {
		d := &models.Deck{}
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Description, &d.CreatedAt, &d.CardCount); err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

// Delete removes the deck and, through ON DELETE CASCADE, its cards and logs.
// Notes left without any card are removed in the same transaction.
func (r *DeckRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT note_id FROM flashcards WHERE deck_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to list deck notes: %w", err)
	}
	noteIDs, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return fmt.Errorf("failed to scan deck notes: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM decks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if len(noteIDs) > 0 {
		_, err = tx.Exec(ctx, `DELETE FROM notes n WHERE n.id = ANY($1) AND n.user_id = $2
			AND NOT EXISTS (SELECT 1 FROM flashcards f WHERE f.note_id = n.id)`, noteIDs, userID)
		if err != nil {
			return fmt.Errorf("failed to delete orphaned notes: %w", err)
		}
	}

	return tx.Commit(ctx)
}
