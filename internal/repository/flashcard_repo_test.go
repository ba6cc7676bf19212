package repository

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"neuroflash-backend/internal/database"
	"neuroflash-backend/internal/models"
	"neuroflash-backend/internal/srs"
)

// valuesRow is a pgx.Row that copies fixed values into the scan targets.
type valuesRow []interface{}

func (r valuesRow) Scan(dest ...interface{}) error {
	for i := range dest {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(r[i]))
	}
	return nil
}

func flashcardRow(stage string) valuesRow {
	return valuesRow{
		uuid.New(), uuid.New(), uuid.New(), stage, time.Now(), 2.5,
		3, 2, 0, (*time.Time)(nil), time.Now(),
	}
}

func TestScanFlashcard_Stage(t *testing.T) {
	tests := []struct {
		name    string
		stage   string
		wantErr bool
	}{
		{"new", "new", false},
		{"learning", "learning", false},
		{"review", "review", false},
		{"unknown", "relearning", true},
		{"empty", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var c models.Flashcard
			err := scanFlashcard(flashcardRow(tc.stage), &c)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected error for card_type %q", tc.stage)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.Stage != srs.Stage(tc.stage) || c.Interval != 3 {
				t.Errorf("Unexpected card: %+v", c)
			}
		})
	}
}

// The tests below need a disposable PostgreSQL database in DATABASE_URL.

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.RunMigrations(ctx, pool, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

type reviewFixture struct {
	pool   *pgxpool.Pool
	repo   *FlashcardRepo
	userID uuid.UUID
	deckID uuid.UUID
	cardID uuid.UUID
	today  time.Time
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	pool := testPool(t)
	ctx := context.Background()

	f := &reviewFixture{
		pool:   pool,
		repo:   NewFlashcardRepo(pool),
		userID: uuid.New(),
		today:  srs.Today(time.Now(), time.UTC),
	}

	deck := &models.Deck{UserID: f.userID, Name: "rollback"}
	if err := NewDeckRepo(pool).CreateWithCards(ctx, deck, []models.CardContentInput{{Front: "f", Back: "b"}}, f.today); err != nil {
		t.Fatalf("seed deck: %v", err)
	}
	f.deckID = deck.ID
	t.Cleanup(func() {
		ctx := context.Background()
		NewDeckRepo(pool).Delete(ctx, f.deckID, f.userID)
		pool.Exec(ctx, `DELETE FROM user_stats WHERE user_id = $1`, f.userID)
	})

	cards, err := f.repo.ListNewCards(ctx, f.deckID, f.userID, 10)
	if err != nil || len(cards) != 1 {
		t.Fatalf("list seeded cards: %v (%d)", err, len(cards))
	}
	f.cardID = cards[0].ID
	return f
}

func (f *reviewFixture) load(t *testing.T) models.Flashcard {
	t.Helper()
	var c models.Flashcard
	row := f.pool.QueryRow(context.Background(), `SELECT `+studyCardColumns+` FROM flashcards f WHERE f.id = $1`, f.cardID)
	if err := scanFlashcard(row, &c); err != nil {
		t.Fatalf("load card: %v", err)
	}
	return c
}

func (f *reviewFixture) counts(t *testing.T) (logs, totalReviews int) {
	t.Helper()
	ctx := context.Background()
	if err := f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM review_logs WHERE flashcard_id = $1`, f.cardID).Scan(&logs); err != nil {
		t.Fatalf("count logs: %v", err)
	}
	err := f.pool.QueryRow(ctx, `SELECT total_reviews FROM user_stats WHERE user_id = $1`, f.userID).Scan(&totalReviews)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("load stats: %v", err)
	}
	return logs, totalReviews
}

// goodReview applies a valid good rating, then lets mutate corrupt the result.
func (f *reviewFixture) goodReview(mutate func(c *models.Flashcard, o *ReviewOutcome)) ReviewFunc {
	return func(c *models.Flashcard) (*ReviewOutcome, error) {
		before := c.State()
		next, err := srs.Next(before, srs.Good, srs.DefaultEaseBonus)
		if err != nil {
			return nil, err
		}
		c.Apply(next)
		c.DueDate = srs.DueDate(f.today, next.Interval)
		now := time.Now()
		c.LastReviewed = &now

		o := &ReviewOutcome{
			Log: models.ReviewLog{
				FlashcardID:      c.ID,
				UserID:           f.userID,
				Rating:           srs.Good,
				ReviewTime:       now,
				IntervalBefore:   before.Interval,
				IntervalAfter:    next.Interval,
				EaseFactorBefore: before.EaseFactor,
				EaseFactorAfter:  next.EaseFactor,
			},
			Day: f.today,
		}
		if mutate != nil {
			mutate(c, o)
		}
		return o, nil
	}
}

func TestApplyReview_CommitsAllWrites(t *testing.T) {
	f := newReviewFixture(t)

	card, err := f.repo.ApplyReview(context.Background(), f.cardID, f.userID, f.goodReview(nil))
	if err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}
	if card.Stage != srs.StageLearning || card.Reps != 1 {
		t.Errorf("Unexpected returned card: %+v", card)
	}

	stored := f.load(t)
	if stored.Stage != srs.StageLearning || stored.Reps != 1 || stored.LastReviewed == nil {
		t.Errorf("Card not persisted: %+v", stored)
	}
	if logs, total := f.counts(t); logs != 1 || total != 1 {
		t.Errorf("logs=%d total_reviews=%d, want 1/1", logs, total)
	}
}

func TestApplyReview_RollsBack(t *testing.T) {
	errAbort := errors.New("abort")

	tests := []struct {
		name string
		fn   func(f *reviewFixture) ReviewFunc
	}{
		{"callback error", func(f *reviewFixture) ReviewFunc {
			return func(c *models.Flashcard) (*ReviewOutcome, error) {
				c.Reps = 99
				return nil, errAbort
			}
		}},
		{"card update rejected", func(f *reviewFixture) ReviewFunc {
			return f.goodReview(func(c *models.Flashcard, o *ReviewOutcome) {
				c.Stage = srs.StageReview
				c.Interval = 0
			})
		}},
		{"log insert rejected after card update", func(f *reviewFixture) ReviewFunc {
			return f.goodReview(func(c *models.Flashcard, o *ReviewOutcome) {
				o.Log.Rating = srs.Rating("again")
			})
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newReviewFixture(t)
			before := f.load(t)

			if _, err := f.repo.ApplyReview(context.Background(), f.cardID, f.userID, tc.fn(f)); err == nil {
				t.Fatal("Expected ApplyReview to fail")
			}

			after := f.load(t)
			if after.Stage != before.Stage || after.Reps != before.Reps || after.Interval != before.Interval ||
				after.EaseFactor != before.EaseFactor || after.LastReviewed != nil || !after.DueDate.Equal(before.DueDate) {
				t.Errorf("Card changed after failed review:\nbefore %+v\nafter  %+v", before, after)
			}
			if logs, total := f.counts(t); logs != 0 || total != 0 {
				t.Errorf("logs=%d total_reviews=%d after rollback, want 0/0", logs, total)
			}
		})
	}
}

func TestApplyReview_OtherUser(t *testing.T) {
	f := newReviewFixture(t)

	_, err := f.repo.ApplyReview(context.Background(), f.cardID, uuid.New(), f.goodReview(nil))
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("Expected pgx.ErrNoRows, got %v", err)
	}
	if logs, _ := f.counts(t); logs != 0 {
		t.Errorf("logs=%d, want 0", logs)
	}
}
