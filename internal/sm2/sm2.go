// Package sm2 implements the SuperMemo-2 spaced-repetition scheduler.
//
// The scheduler is a pure state transition: given a card's current
// scheduling state, a 0-5 recall grade, and the current time, it
// produces the card's next state. It performs no I/O and never reads a
// clock; callers supply now explicitly.
package sm2

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/Keeno5280/LectureLens/internal/domain"
)

// Params tune the scheduler. The defaults implement classic SM-2;
// anything else is a deliberate deviation.
type Params struct {
	InitialEase        float64 // ease assigned to new cards
	MinEase            float64 // hard floor the ease never drops below
	FirstIntervalDays  int     // interval after the first pass
	SecondIntervalDays int     // interval after the second consecutive pass
	MaxIntervalDays    int     // cap on the multiplicative growth
}

// DefaultParams returns the classic SM-2 parameters.
func DefaultParams() Params {
	return Params{
		InitialEase:        2.5,
		MinEase:            1.3,
		FirstIntervalDays:  1,
		SecondIntervalDays: 6,
		MaxIntervalDays:    36500,
	}
}

// Scheduler computes review transitions for a fixed set of parameters.
type Scheduler struct {
	p Params
}

// New validates params and returns a Scheduler. Zero-value fields are
// not defaulted; use DefaultParams as the starting point.
func New(p Params) (*Scheduler, error) {
	switch {
	case p.MinEase < 1.0:
		return nil, fmt.Errorf("%w: min ease %.2f below 1.0", ErrInvalidParams, p.MinEase)
	case p.InitialEase < p.MinEase:
		return nil, fmt.Errorf("%w: initial ease %.2f below min ease %.2f", ErrInvalidParams, p.InitialEase, p.MinEase)
	case p.FirstIntervalDays < 1:
		return nil, fmt.Errorf("%w: first interval %d days", ErrInvalidParams, p.FirstIntervalDays)
	case p.SecondIntervalDays < p.FirstIntervalDays:
		return nil, fmt.Errorf("%w: second interval %d below first %d", ErrInvalidParams, p.SecondIntervalDays, p.FirstIntervalDays)
	case p.MaxIntervalDays < p.SecondIntervalDays:
		return nil, fmt.Errorf("%w: max interval %d below second %d", ErrInvalidParams, p.MaxIntervalDays, p.SecondIntervalDays)
	}
	return &Scheduler{p: p}, nil
}

// Params returns the scheduler's parameters.
func (s *Scheduler) Params() Params { return s.p }

// NewCard returns a card carrying creation defaults: the initial ease,
// zero repetitions, zero interval, immediately due.
func (s *Scheduler) NewCard(id string, content domain.Content, hash string, autoGenerated bool, sourceID int64, now time.Time) domain.ReviewCard {
	return domain.ReviewCard{
		ID:            id,
		Content:       content,
		Hash:          hash,
		AutoGenerated: autoGenerated,
		Ease:          s.p.InitialEase,
		NextReviewAt:  now,
		Version:       1,
		SourceID:      sourceID,
	}
}

// Review applies one graded review at time now and returns the card's
// next scheduling state. The input card is not mutated; all
// non-scheduling fields carry over unchanged.
//
// Returns ErrInvalidGrade for a grade outside 0-5 and ErrInvalidState
// if the card's persisted state already violates its invariants, which
// means whatever wrote it has a bug; the state is not auto-corrected.
func (s *Scheduler) Review(card domain.ReviewCard, grade domain.Grade, now time.Time) (domain.ReviewCard, error) {
	if !grade.IsValid() {
		return domain.ReviewCard{}, fmt.Errorf("%w: %d", ErrInvalidGrade, int(grade))
	}
	if err := s.checkState(card); err != nil {
		return domain.ReviewCard{}, err
	}

	c := card.Clone()
	c.Ease = s.nextEase(card.Ease, grade)

	if grade.Passing() {
		c.Repetitions = card.Repetitions + 1
		switch c.Repetitions {
		case 1:
			c.IntervalDays = s.p.FirstIntervalDays
		case 2:
			c.IntervalDays = s.p.SecondIntervalDays
		default:
			grown := int(math.Round(float64(card.IntervalDays) * c.Ease))
			c.IntervalDays = min(grown, s.p.MaxIntervalDays)
		}
	} else {
		// Failure restarts the card at a short interval. The ease
		// penalty above still applies, so a lapsed card grows back
		// more slowly than a fresh one.
		c.Repetitions = 0
		c.IntervalDays = s.p.FirstIntervalDays
	}

	reviewed := now
	c.LastReviewedAt = &reviewed
	c.NextReviewAt = now.AddDate(0, 0, c.IntervalDays)
	return c, nil
}

// Preview returns the state the card would reach under each possible
// grade, without committing any of them.
func (s *Scheduler) Preview(card domain.ReviewCard, now time.Time) (map[domain.Grade]domain.ReviewCard, error) {
	out := make(map[domain.Grade]domain.ReviewCard, int(domain.Perfect)+1)
	for g := domain.Blackout; g <= domain.Perfect; g++ {
		c, err := s.Review(card, g, now)
		if err != nil {
			return nil, err
		}
		out[g] = c
	}
	return out, nil
}

// Replay rebuilds a card's scheduling state by re-applying its review
// history in order. Logs for a different card are rejected with
// ErrCardMismatch.
func (s *Scheduler) Replay(card domain.ReviewCard, logs []domain.ReviewLog) (domain.ReviewCard, error) {
	c := card.Clone()
	for _, l := range logs {
		if l.CardID != c.ID {
			return domain.ReviewCard{}, fmt.Errorf("%w: card %s, log %s", ErrCardMismatch, c.ID, l.CardID)
		}
		var err error
		c, err = s.Review(c, l.Grade, l.ReviewedAt)
		if err != nil {
			return domain.ReviewCard{}, err
		}
	}
	return c, nil
}

// nextEase applies the SM-2 ease update and clamps at the floor.
func (s *Scheduler) nextEase(ease float64, grade domain.Grade) float64 {
	q := float64(grade)
	next := ease + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	return math.Max(next, s.p.MinEase)
}

func (s *Scheduler) checkState(card domain.ReviewCard) error {
	if card.Ease < s.p.MinEase {
		return fmt.Errorf("%w: ease %.3f below floor %.2f", ErrInvalidState, card.Ease, s.p.MinEase)
	}
	if card.Repetitions < 0 {
		return fmt.Errorf("%w: negative repetitions %d", ErrInvalidState, card.Repetitions)
	}
	if card.IntervalDays < 0 {
		return fmt.Errorf("%w: negative interval %d", ErrInvalidState, card.IntervalDays)
	}
	return nil
}

// IsDue reports whether the card's scheduled review time has passed.
func IsDue(card domain.ReviewCard, now time.Time) bool {
	return !card.NextReviewAt.After(now)
}

// SelectDue returns the due subset of cards, most overdue first, ties
// broken by ID for determinism. A limit <= 0 means unbounded. The input
// slice is not modified.
func SelectDue(cards []domain.ReviewCard, now time.Time, limit int) []domain.ReviewCard {
	var due []domain.ReviewCard
	for _, c := range cards {
		if IsDue(c, now) {
			due = append(due, c)
		}
	}
	slices.SortFunc(due, func(a, b domain.ReviewCard) int {
		if n := a.NextReviewAt.Compare(b.NextReviewAt); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}
