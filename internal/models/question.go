package models

import (
	"time"

	"github.com/google/uuid"
)

// RecentWindow is how far back a publication still counts as recent.
const RecentWindow = 24 * time.Hour

// Question represents a poll question with a publication window.
// EndDate is nil for questions that never close.
type Question struct {
	ID        uuid.UUID  `json:"id"`
	Text      string     `json:"text"`
	PubDate   time.Time  `json:"pub_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsPublished reports whether the question is visible at the given time.
// A pub_date equal to now counts as published.
func (q *Question) IsPublished(now time.Time) bool {
	return !q.PubDate.After(now)
}

// CanVote reports whether the voting window is open at the given time.
// Both window edges are inclusive; an unset end date means the window
// never closes.
func (q *Question) CanVote(now time.Time) bool {
	if q.PubDate.After(now) {
		return false
	}
	if q.EndDate == nil {
		return true
	}
	return !now.After(*q.EndDate)
}

// WasPublishedRecently reports whether pub_date falls within the closed
// interval [now - RecentWindow, now].
func (q *Question) WasPublishedRecently(now time.Time) bool {
	earliest := now.Add(-RecentWindow)
	return !q.PubDate.Before(earliest) && !q.PubDate.After(now)
}
