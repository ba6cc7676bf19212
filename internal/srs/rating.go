package srs

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRating is returned when a rating is not hard, good or easy.
var ErrInvalidRating = errors.New("srs: invalid rating")

// Rating is the learner's answer for a single review.
type Rating string

const (
	Hard Rating = "hard"
	Good Rating = "good"
	Easy Rating = "easy"
)

var (
	_ fmt.Stringer             = Rating("")
	_ encoding.TextUnmarshaler = (*Rating)(nil)
	_ json.Unmarshaler         = (*Rating)(nil)
)

// ParseRating accepts the three rating names, case-insensitively.
func ParseRating(s string) (Rating, error) {
	r := Rating(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
	return r, nil
}

func (r Rating) String() string { return string(r) }

// IsValid reports whether r is one of Hard, Good or Easy.
func (r Rating) IsValid() bool {
	switch r {
	case Hard, Good, Easy:
		return true
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// UnmarshalJSON expects a JSON string.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRating, data)
	}
	return r.UnmarshalText([]byte(s))
}
