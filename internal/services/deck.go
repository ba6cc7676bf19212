package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"neuroflash-backend/internal/models"
	"neuroflash-backend/internal/srs"
)

type deckRepository interface {
	CreateWithCards(ctx context.Context, d *models.Deck, cards []models.CardContentInput, today time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deck, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Deck, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type deckStatsRepository interface {
	GetDeckStats(ctx context.Context, deckID uuid.UUID, asOf time.Time) (*models.DeckStats, error)
}

type DeckService struct {
	decks deckRepository
	stats deckStatsRepository
	loc   *time.Location
	now   func() time.Time
}

func NewDeckService(decks deckRepository, stats deckStatsRepository, loc *time.Location) *DeckService {
	if loc == nil {
		loc = time.UTC
	}
	return &DeckService{decks: decks, stats: stats, loc: loc, now: time.Now}
}

// Create stores a deck and one new card per entry in req.Cards, all due today.
func (s *DeckService) Create(ctx context.Context, userID uuid.UUID, req models.CreateDeckRequest) (*models.Deck, error) {
	req.Name = strings.TrimSpace(req.Name)
	for i := range req.Cards {
		req.Cards[i].Front = strings.TrimSpace(req.Cards[i].Front)
		req.Cards[i].Back = strings.TrimSpace(req.Cards[i].Back)
	}
	if err := validateStruct("Invalid deck", req); err != nil {
		return nil, err
	}

	deck := &models.Deck{
		UserID:      userID,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.decks.CreateWithCards(ctx, deck, req.Cards, srs.Today(s.now(), s.loc)); err != nil {
		return nil, &StoreError{Op: "create deck", Err: err}
	}
	return deck, nil
}

func (s *DeckService) List(ctx context.Context, userID uuid.UUID) ([]*models.Deck, error) {
	decks, err := s.decks.ListByUser(ctx, userID)
	if err != nil {
		return nil, &StoreError{Op: "list decks", Err: err}
	}
	return decks, nil
}

// Get returns the deck only if userID owns it.
func (s *DeckService) Get(ctx context.Context, deckID, userID uuid.UUID) (*models.Deck, error) {
	deck, err := s.decks.GetByID(ctx, deckID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && deck.UserID != userID) {
		return nil, &NotFoundError{Message: "Deck not found"}
	}
	if err != nil {
		return nil, &StoreError{Op: "load deck", Err: err}
	}
	return deck, nil
}

func (s *DeckService) Delete(ctx context.Context, deckID, userID uuid.UUID) error {
	err := s.decks.Delete(ctx, deckID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Message: "Deck not found"}
	}
	if err != nil {
		return &StoreError{Op: "delete deck", Err: err}
	}
	return nil
}

// Stats counts the deck's cards per stage and how many are due today.
func (s *DeckService) Stats(ctx context.Context, deckID, userID uuid.UUID) (*models.DeckStats, error) {
	if _, err := s.Get(ctx, deckID, userID); err != nil {
		return nil, err
	}
	stats, err := s.stats.GetDeckStats(ctx, deckID, srs.Today(s.now(), s.loc))
	if err != nil {
		return nil, &StoreError{Op: "load deck stats", Err: err}
	}
	return stats, nil
}
