package domain

import "time"

// Content is the user-visible part of a flashcard. It is opaque to
// scheduling: editing it never touches the review state.
type Content struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Notes    string `json:"notes,omitempty"`
}

// ReviewCard is a flashcard together with its spaced-repetition state.
type ReviewCard struct {
	ID string `json:"id"`
	Content
	Hash          string `json:"hash"`
	AutoGenerated bool   `json:"auto_generated"`

	// Scheduling state. Mutated only by the scheduler and by the
	// store's creation defaults.
	Ease           float64    `json:"ease"`
	Repetitions    int        `json:"repetitions"`
	IntervalDays   int        `json:"interval_days"`
	LastReviewedAt *time.Time `json:"last_reviewed_at"` // nil until first review
	NextReviewAt   time.Time  `json:"next_review_at"`

	// Version backs the store's compare-and-swap; it is not part of
	// the scheduling state.
	Version  int64 `json:"version"`
	SourceID int64 `json:"source_id,omitempty"`
}

// Phase returns the card's position in the learning lifecycle. It is
// derived from the scheduling state, never stored.
func (c ReviewCard) Phase() Phase {
	switch {
	case c.Repetitions == 0 && c.LastReviewedAt == nil:
		return New
	case c.Repetitions <= 2:
		return Learning
	default:
		return Reviewing
	}
}

// Clone returns a copy of the card with no shared pointers.
func (c ReviewCard) Clone() ReviewCard {
	out := c
	if c.LastReviewedAt != nil {
		t := *c.LastReviewedAt
		out.LastReviewedAt = &t
	}
	return out
}

// ReviewLog records a single graded review of a card.
type ReviewLog struct {
	CardID     string    `json:"card_id"`
	Grade      Grade     `json:"grade"`
	ReviewedAt time.Time `json:"reviewed_at"`
}
