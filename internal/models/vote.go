package models

import (
	"time"

	"github.com/google/uuid"
)

// Vote records a user's single active choice for a question.
// The (question_id, user_id) pair is unique; re-voting overwrites ChoiceID.
type Vote struct {
	QuestionID uuid.UUID `json:"question_id"`
	UserID     uuid.UUID `json:"user_id"`
	ChoiceID   uuid.UUID `json:"choice_id"`
	VotedAt    time.Time `json:"voted_at"`
}
