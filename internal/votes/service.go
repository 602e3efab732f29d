// Package votes enforces the single-active-vote-per-user-per-question rule.
package votes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openpolls/backend/internal/models"
)

var (
	// ErrQuestionNotFound is returned when the question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrVotingClosed is returned when the question's voting window is not open.
	ErrVotingClosed = errors.New("voting closed for question")
	// ErrInvalidChoice is returned when the choice is missing or belongs to
	// another question. No state changes.
	ErrInvalidChoice = errors.New("choice does not belong to question")
)

// QuestionGetter loads questions for window checks.
type QuestionGetter interface {
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
}

// ChoiceGetter loads choices for ownership checks.
type ChoiceGetter interface {
	GetChoice(ctx context.Context, id uuid.UUID) (*models.Choice, error)
}

// VoteStore persists votes.
type VoteStore interface {
	Upsert(ctx context.Context, questionID, userID, choiceID uuid.UUID) (*models.Vote, error)
	GetByUser(ctx context.Context, questionID, userID uuid.UUID) (*models.Vote, error)
}

// Service validates and records votes.
type Service struct {
	questions QuestionGetter
	choices   ChoiceGetter
	votes     VoteStore
	now       func() time.Time
}

// NewService creates a voting service using the wall clock.
func NewService(questions QuestionGetter, choices ChoiceGetter, votes VoteStore) *Service {
	return &Service{questions: questions, choices: choices, votes: votes, now: time.Now}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Cast records the user's vote for an open question. A second vote by the
// same user overwrites the first; the (user, question) pair never holds more
// than one vote. Database upsert semantics provide the read-modify-write
// atomicity under concurrent double-submission.
func (s *Service) Cast(ctx context.Context, userID, questionID, choiceID uuid.UUID) (*models.Vote, error) {
	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	if !question.CanVote(s.now()) {
		return nil, ErrVotingClosed
	}

	choice, err := s.choices.GetChoice(ctx, choiceID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidChoice
		}
		return nil, fmt.Errorf("load choice: %w", err)
	}
	if choice.QuestionID != question.ID {
		return nil, ErrInvalidChoice
	}

	vote, err := s.votes.Upsert(ctx, question.ID, userID, choice.ID)
	if err != nil {
		return nil, fmt.Errorf("record vote: %w", err)
	}
	return vote, nil
}

// Current returns the user's existing vote for a question, if any.
func (s *Service) Current(ctx context.Context, userID, questionID uuid.UUID) (*models.Vote, error) {
	return s.votes.GetByUser(ctx, questionID, userID)
}
