package srs

// Stage is the scheduling phase of a card.
type Stage string

const (
	StageNew      Stage = "new"
	StageLearning Stage = "learning"
	StageReview   Stage = "review"
)

func (s Stage) IsValid() bool {
	switch s {
	case StageNew, StageLearning, StageReview:
		return true
	}
	return false
}
