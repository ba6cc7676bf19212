package models

import (
	"time"

	"github.com/google/uuid"

	"neuroflash-backend/internal/srs"
)

const DateLayout = "2006-01-02"

type Deck struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CardCount   int       `json:"card_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Note struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Front     string    `json:"front"`
	Back      string    `json:"back"`
	CreatedAt time.Time `json:"created_at"`
}

// Flashcard is the scheduling unit. DueDate is a calendar day at midnight UTC.
type Flashcard struct {
	ID           uuid.UUID  `json:"id"`
	NoteID       uuid.UUID  `json:"note_id"`
	DeckID       uuid.UUID  `json:"deck_id"`
	Stage        srs.Stage  `json:"stage"`
	DueDate      time.Time  `json:"due_date"`
	EaseFactor   float64    `json:"ease_factor"`
	Interval     int        `json:"interval"`
	Reps         int        `json:"reps"`
	Lapses       int        `json:"lapses"`
	LastReviewed *time.Time `json:"last_reviewed"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (f *Flashcard) State() srs.State {
	return srs.State{
		Stage:      f.Stage,
		Interval:   f.Interval,
		EaseFactor: f.EaseFactor,
		Reps:       f.Reps,
		Lapses:     f.Lapses,
	}
}

func (f *Flashcard) Apply(s srs.State) {
	f.Stage = s.Stage
	f.Interval = s.Interval
	f.EaseFactor = s.EaseFactor
	f.Reps = s.Reps
	f.Lapses = s.Lapses
}

// StudyCard is a flashcard joined with its note content.
type StudyCard struct {
	Flashcard
	Front string
	Back  string
}

type ReviewLog struct {
	ID               uuid.UUID  `json:"id"`
	FlashcardID      uuid.UUID  `json:"flashcard_id"`
	UserID           uuid.UUID  `json:"user_id"`
	Rating           srs.Rating `json:"rating"`
	ReviewTime       time.Time  `json:"review_time"`
	IntervalBefore   int        `json:"intervals_before"`
	IntervalAfter    int        `json:"intervals_after"`
	EaseFactorBefore float64    `json:"ease_factor_before"`
	EaseFactorAfter  float64    `json:"ease_factor_after"`
}

// CardForStudy is the wire shape of one card in a study session.
type CardForStudy struct {
	FlashcardID uuid.UUID `json:"flashcard_id"`
	NoteID      uuid.UUID `json:"note_id"`
	Front       string    `json:"front"`
	Back        string    `json:"back"`
	Stage       srs.Stage `json:"stage"`
	DueDate     string    `json:"due_date"`
	EaseFactor  float64   `json:"ease_factor"`
	Interval    int       `json:"interval"`
	Reps        int       `json:"reps"`
	Lapses      int       `json:"lapses"`
}

func NewCardForStudy(c StudyCard) CardForStudy {
	return CardForStudy{
		FlashcardID: c.ID,
		NoteID:      c.NoteID,
		Front:       c.Front,
		Back:        c.Back,
		Stage:       c.Stage,
		DueDate:     c.DueDate.Format(DateLayout),
		EaseFactor:  c.EaseFactor,
		Interval:    c.Interval,
		Reps:        c.Reps,
		Lapses:      c.Lapses,
	}
}

// NewState is what a review returns to the caller.
type NewState struct {
	Stage      srs.Stage `json:"stage"`
	DueDate    string    `json:"due_date"`
	Interval   int       `json:"interval"`
	EaseFactor float64   `json:"ease_factor"`
	Reps       int       `json:"reps"`
	Lapses     int       `json:"lapses"`
}

func NewStateOf(f *Flashcard) NewState {
	return NewState{
		Stage:      f.Stage,
		DueDate:    f.DueDate.Format(DateLayout),
		Interval:   f.Interval,
		EaseFactor: f.EaseFactor,
		Reps:       f.Reps,
		Lapses:     f.Lapses,
	}
}

type CreateDeckRequest struct {
	Name        string             `json:"name" validate:"required,max=200"`
	Description string             `json:"description" validate:"max=2000"`
	Cards       []CardContentInput `json:"cards" validate:"max=1000,dive"`
}

type CardContentInput struct {
	Front string `json:"front" validate:"required,max=2000"`
	Back  string `json:"back" validate:"required,max=5000"`
}

type ReviewRequest struct {
	Rating string `json:"rating"`
}

type DeckStats struct {
	TotalCards int `json:"total_cards"`
	New        int `json:"new"`
	Learning   int `json:"learning"`
	Review     int `json:"review"`
	DueToday   int `json:"due_today"`
}
