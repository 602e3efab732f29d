package models

import (
	"github.com/google/uuid"
)

// Choice is one selectable answer belonging to exactly one question.
// Choices are cascade-deleted with their question; tallies are counted
// from vote rows rather than stored on the choice.
type Choice struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
}

// ChoiceResult is a choice with its current vote tally.
type ChoiceResult struct {
	ID    uuid.UUID `json:"id"`
	Text  string    `json:"text"`
	Votes int       `json:"votes"`
}
