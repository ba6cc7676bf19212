package services

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"neuroflash-backend/internal/models"
	"neuroflash-backend/internal/repository"
	"neuroflash-backend/internal/srs"
)

type studyCardRepository interface {
	ListNewCards(ctx context.Context, deckID, userID uuid.UUID, limit int) ([]models.StudyCard, error)
	ListDueCards(ctx context.Context, deckID, userID uuid.UUID, asOf time.Time, limit int) ([]models.StudyCard, error)
	ApplyReview(ctx context.Context, cardID, userID uuid.UUID, fn repository.ReviewFunc) (*models.Flashcard, error)
}

type deckLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deck, error)
}

type studySettingsSource interface {
	GetStudySettings(ctx context.Context, userID uuid.UUID) (*models.StudySettings, error)
}

// EventPublisher delivers realtime messages to a user's open sessions.
type EventPublisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

// StudyService selects the cards due for a session and applies reviews.
type StudyService struct {
	cards    studyCardRepository
	decks    deckLookup
	settings studySettingsSource
	events   EventPublisher
	loc      *time.Location
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewStudyService(cards studyCardRepository, decks deckLookup, settings studySettingsSource, events EventPublisher, loc *time.Location) *StudyService {
	if loc == nil {
		loc = time.UTC
	}
	return &StudyService{
		cards:    cards,
		decks:    decks,
		settings: settings,
		events:   events,
		loc:      loc,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetStudyCards returns today's new and due cards for one of the user's
// decks, shuffled together.
func (s *StudyService) GetStudyCards(ctx context.Context, deckID, userID uuid.UUID) ([]models.CardForStudy, error) {
	deck, err := s.decks.GetByID(ctx, deckID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && deck.UserID != userID) {
		return nil, &NotFoundError{Message: "Deck not found"}
	}
	if err != nil {
		return nil, &StoreError{Op: "load deck", Err: err}
	}

	settings, err := s.settings.GetStudySettings(ctx, userID)
	if err != nil {
		return nil, &StoreError{Op: "load study settings", Err: err}
	}
	if settings.NewCardsPerDay < 0 || settings.MaxReviewsPerDay < 0 {
		return nil, &ValidationError{
			Message: "Daily limits must not be negative",
			Fields: map[string]string{
				"new_cards_per_day":   "must be 0 or more",
				"max_reviews_per_day": "must be 0 or more",
			},
		}
	}

	asOf := srs.Today(s.now(), s.loc)
	selected := make([]models.StudyCard, 0, settings.NewCardsPerDay+settings.MaxReviewsPerDay)

	if settings.NewCardsPerDay > 0 {
		fresh, err := s.cards.ListNewCards(ctx, deckID, userID, settings.NewCardsPerDay)
		if err != nil {
			return nil, &StoreError{Op: "list new cards", Err: err}
		}
		selected = append(selected, fresh...)
	}

	if settings.MaxReviewsPerDay > 0 {
		due, err := s.cards.ListDueCards(ctx, deckID, userID, asOf, settings.MaxReviewsPerDay)
		if err != nil {
			return nil, &StoreError{Op: "list due cards", Err: err}
		}
		selected = append(selected, due...)
	}

	s.rngMu.Lock()
	srs.Interleave(selected, s.rng)
	s.rngMu.Unlock()

	out := make([]models.CardForStudy, len(selected))
	for i, c := range selected {
		out[i] = models.NewCardForStudy(c)
	}
	return out, nil
}

// SubmitReview applies rating to the card and records the review. The card
// update, review log and stats bump commit together or not at all.
func (s *StudyService) SubmitReview(ctx context.Context, cardID, userID uuid.UUID, rating string) (*models.NewState, error) {
	r, err := srs.ParseRating(rating)
	if err != nil {
		return nil, &ValidationError{
			Message: "Rating must be hard, good or easy",
			Fields:  map[string]string{"rating": "must be one of hard, good, easy"},
		}
	}

	settings, err := s.settings.GetStudySettings(ctx, userID)
	if err != nil {
		return nil, &StoreError{Op: "load study settings", Err: err}
	}

	now := s.now()
	today := srs.Today(now, s.loc)

	card, err := s.cards.ApplyReview(ctx, cardID, userID, func(c *models.Flashcard) (*repository.ReviewOutcome, error) {
		before := c.State()
		next, err := srs.Next(before, r, settings.EaseBonus)
		if err != nil {
			return nil, err
		}

		c.Apply(next)
		c.DueDate = srs.DueDate(today, next.Interval)
		reviewedAt := now
		c.LastReviewed = &reviewedAt

		return &repository.ReviewOutcome{
			Log: models.ReviewLog{
				FlashcardID:      c.ID,
				UserID:           userID,
				Rating:           r,
				ReviewTime:       now,
				IntervalBefore:   before.Interval,
				IntervalAfter:    next.Interval,
				EaseFactorBefore: before.EaseFactor,
				EaseFactorAfter:  next.EaseFactor,
			},
			Day: today,
		}, nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Flashcard not found"}
	}
	if err != nil {
		return nil, &StoreError{Op: "submit review", Err: err}
	}

	state := models.NewStateOf(card)
	s.publishReview(ctx, userID, card, r, state, now)
	return &state, nil
}

func (s *StudyService) publishReview(ctx context.Context, userID uuid.UUID, card *models.Flashcard, r srs.Rating, state models.NewState, at time.Time) {
	if s.events == nil {
		return
	}
	err := s.events.PublishUpdate(ctx, userID, models.WSMessage{
		Type: models.EventReviewRecorded,
		Payload: models.ReviewEvent{
			FlashcardID: card.ID,
			DeckID:      card.DeckID,
			Rating:      r.String(),
			State:       state,
			ReviewedAt:  at,
		},
	})
	if err != nil {
		log.Printf("study: failed to publish review event for user %s: %v", userID, err)
	}
}
