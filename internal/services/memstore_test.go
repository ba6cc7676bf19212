package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"neuroflash-backend/internal/models"
	"neuroflash-backend/internal/repository"
	"neuroflash-backend/internal/srs"
)

// memStore is an in-memory stand-in for the postgres repositories. ApplyReview
// works on a copy and only writes it back when every step succeeds.
type memStore struct {
	mu    sync.Mutex
	decks map[uuid.UUID]*models.Deck
	owner map[uuid.UUID]uuid.UUID // note id -> user id
	cards map[uuid.UUID]*models.StudyCard
	logs  []models.ReviewLog
	stats map[uuid.UUID]*models.UserStats

	listErr   error
	logErr    error
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{
		decks: make(map[uuid.UUID]*models.Deck),
		owner: make(map[uuid.UUID]uuid.UUID),
		cards: make(map[uuid.UUID]*models.StudyCard),
		stats: make(map[uuid.UUID]*models.UserStats),
	}
}

func (m *memStore) addDeck(userID uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.decks[id] = &models.Deck{ID: id, UserID: userID, Name: "deck"}
	return id
}

type cardSeed struct {
	stage    srs.Stage
	due      time.Time
	ease     float64
	interval int
	created  time.Time
}

func (m *memStore) addCard(deckID, userID uuid.UUID, cs cardSeed) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cs.ease == 0 {
		cs.ease = srs.InitialEaseFactor
	}
	if cs.created.IsZero() {
		cs.created = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	noteID := uuid.New()
	m.owner[noteID] = userID
	id := uuid.New()
	m.cards[id] = &models.StudyCard{
		Flashcard: models.Flashcard{
			ID:         id,
			NoteID:     noteID,
			DeckID:     deckID,
			Stage:      cs.stage,
			DueDate:    cs.due,
			EaseFactor: cs.ease,
			Interval:   cs.interval,
			CreatedAt:  cs.created,
		},
		Front: "front " + id.String(),
		Back:  "back",
	}
	return id
}

func (m *memStore) card(id uuid.UUID) models.Flashcard {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cards[id].Flashcard
}

func (m *memStore) logCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func (m *memStore) userStats(userID uuid.UUID) models.UserStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[userID]; ok {
		return *s
	}
	return models.UserStats{UserID: userID}
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) CreateWithCards(ctx context.Context, d *models.Deck, cards []models.CardContentInput, today time.Time) error {
	m.mu.Lock()
	d.ID = uuid.New()
	d.CardCount = len(cards)
	cp := *d
	m.decks[d.ID] = &cp
	m.mu.Unlock()
	for range cards {
		m.addCard(d.ID, d.UserID, cardSeed{stage: srs.StageNew, due: today})
	}
	return nil
}

func (m *memStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Deck, 0)
	for _, d := range m.decks {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) Delete(ctx context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	d, ok := m.decks[id]
	if !ok || d.UserID != userID {
		return pgx.ErrNoRows
	}
	delete(m.decks, id)
	for cid, c := range m.cards {
		if c.DeckID == id {
			delete(m.cards, cid)
		}
	}
	return nil
}

func (m *memStore) ListNewCards(ctx context.Context, deckID, userID uuid.UUID, limit int) ([]models.StudyCard, error) {
	return m.list(deckID, userID, limit, func(c *models.StudyCard) bool {
		return c.Stage == srs.StageNew
	}, func(a, b *models.StudyCard) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() > b.ID.String()
	})
}

func (m *memStore) ListDueCards(ctx context.Context, deckID, userID uuid.UUID, asOf time.Time, limit int) ([]models.StudyCard, error) {
	return m.list(deckID, userID, limit, func(c *models.StudyCard) bool {
		return c.Stage != srs.StageNew && !c.DueDate.After(asOf)
	}, func(a, b *models.StudyCard) bool {
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if a.EaseFactor != b.EaseFactor {
			return a.EaseFactor < b.EaseFactor
		}
		return a.ID.String() < b.ID.String()
	})
}

func (m *memStore) list(deckID, userID uuid.UUID, limit int, keep func(*models.StudyCard) bool, less func(a, b *models.StudyCard) bool) ([]models.StudyCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	matched := make([]*models.StudyCard, 0)
	for _, c := range m.cards {
		if c.DeckID == deckID && m.owner[c.NoteID] == userID && keep(c) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]models.StudyCard, len(matched))
	for i, c := range matched {
		out[i] = *c
	}
	return out, nil
}

func (m *memStore) ApplyReview(ctx context.Context, cardID, userID uuid.UUID, fn repository.ReviewFunc) (*models.Flashcard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.cards[cardID]
	if !ok || m.owner[stored.NoteID] != userID {
		return nil, pgx.ErrNoRows
	}

	working := stored.Flashcard
	outcome, err := fn(&working)
	if err != nil {
		return nil, err
	}
	if m.logErr != nil {
		return nil, m.logErr
	}

	stored.Flashcard = working
	m.logs = append(m.logs, outcome.Log)

	st, ok := m.stats[userID]
	if !ok {
		st = &models.UserStats{UserID: userID}
		m.stats[userID] = st
	}
	st.TotalReviews++
	day := outcome.Day
	switch {
	case st.LastReviewDate == nil:
		st.ReviewStreakDays = 1
	case st.LastReviewDate.Equal(day):
	case st.LastReviewDate.AddDate(0, 0, 1).Equal(day):
		st.ReviewStreakDays++
	default:
		st.ReviewStreakDays = 1
	}
	st.LastReviewDate = &day

	out := working
	return &out, nil
}

func (m *memStore) GetDeckStats(ctx context.Context, deckID uuid.UUID, asOf time.Time) (*models.DeckStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.DeckStats{}
	for _, c := range m.cards {
		if c.DeckID != deckID {
			continue
		}
		stats.TotalCards++
		switch c.Stage {
		case srs.StageNew:
			stats.New++
		case srs.StageLearning:
			stats.Learning++
		case srs.StageReview:
			stats.Review++
		}
		if c.Stage != srs.StageNew && !c.DueDate.After(asOf) {
			stats.DueToday++
		}
	}
	return stats, nil
}

type stubSettings struct {
	settings models.StudySettings
	err      error
}

func (s *stubSettings) GetStudySettings(ctx context.Context, userID uuid.UUID) (*models.StudySettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := s.settings
	cp.UserID = userID
	return &cp, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []models.WSMessage
	err  error
}

func (p *recordingPublisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

var errStoreDown = errors.New("connection refused")
