package votes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openpolls/backend/internal/models"
)

type fakeQuestions struct {
	questions map[uuid.UUID]*models.Question
}

func (f *fakeQuestions) GetQuestion(_ context.Context, id uuid.UUID) (*models.Question, error) {
	q, ok := f.questions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return q, nil
}

type fakeChoices struct {
	choices map[uuid.UUID]*models.Choice
}

func (f *fakeChoices) GetChoice(_ context.Context, id uuid.UUID) (*models.Choice, error) {
	ch, ok := f.choices[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return ch, nil
}

type fakeVotes struct {
	votes map[[2]uuid.UUID]*models.Vote // (question, user) -> vote
}

func newFakeVotes() *fakeVotes {
	return &fakeVotes{votes: make(map[[2]uuid.UUID]*models.Vote)}
}

func (f *fakeVotes) Upsert(_ context.Context, questionID, userID, choiceID uuid.UUID) (*models.Vote, error) {
	v := &models.Vote{QuestionID: questionID, UserID: userID, ChoiceID: choiceID, VotedAt: time.Now()}
	f.votes[[2]uuid.UUID{questionID, userID}] = v
	return v, nil
}

func (f *fakeVotes) GetByUser(_ context.Context, questionID, userID uuid.UUID) (*models.Vote, error) {
	v, ok := f.votes[[2]uuid.UUID{questionID, userID}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return v, nil
}

type fixture struct {
	service  *Service
	votes    *fakeVotes
	question *models.Question
	choiceA  *models.Choice
	choiceB  *models.Choice
	foreign  *models.Choice
}

// newFixture builds a service around one open question with two choices plus
// a choice belonging to another question.
func newFixture(now time.Time, end *time.Time) *fixture {
	question := &models.Question{ID: uuid.New(), Text: "favorite color?", PubDate: now.Add(-time.Hour), EndDate: end}
	other := &models.Question{ID: uuid.New(), Text: "other", PubDate: now.Add(-time.Hour)}
	choiceA := &models.Choice{ID: uuid.New(), QuestionID: question.ID, Text: "red"}
	choiceB := &models.Choice{ID: uuid.New(), QuestionID: question.ID, Text: "blue"}
	foreign := &models.Choice{ID: uuid.New(), QuestionID: other.ID, Text: "green"}

	questions := &fakeQuestions{questions: map[uuid.UUID]*models.Question{question.ID: question, other.ID: other}}
	choices := &fakeChoices{choices: map[uuid.UUID]*models.Choice{choiceA.ID: choiceA, choiceB.ID: choiceB, foreign.ID: foreign}}
	votes := newFakeVotes()

	service := NewService(questions, choices, votes).WithClock(func() time.Time { return now })
	return &fixture{service: service, votes: votes, question: question, choiceA: choiceA, choiceB: choiceB, foreign: foreign}
}

func TestCastRecordsVote(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newFixture(now, nil)
	userID := uuid.New()

	vote, err := fx.service.Cast(context.Background(), userID, fx.question.ID, fx.choiceA.ID)
	if err != nil {
		t.Fatalf("cast failed: %v", err)
	}
	if vote.ChoiceID != fx.choiceA.ID {
		t.Fatalf("recorded choice = %s, want %s", vote.ChoiceID, fx.choiceA.ID)
	}
}

func TestCastTwiceOverwritesNotDuplicates(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newFixture(now, nil)
	userID := uuid.New()

	if _, err := fx.service.Cast(context.Background(), userID, fx.question.ID, fx.choiceA.ID); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	if _, err := fx.service.Cast(context.Background(), userID, fx.question.ID, fx.choiceB.ID); err != nil {
		t.Fatalf("second cast failed: %v", err)
	}

	if got := len(fx.votes.votes); got != 1 {
		t.Fatalf("vote rows = %d, want 1", got)
	}
	current, err := fx.service.Current(context.Background(), userID, fx.question.ID)
	if err != nil {
		t.Fatalf("current vote lookup failed: %v", err)
	}
	if current.ChoiceID != fx.choiceB.ID {
		t.Fatalf("final choice = %s, want second selection %s", current.ChoiceID, fx.choiceB.ID)
	}
}

func TestCastRejectsForeignChoice(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newFixture(now, nil)

	_, err := fx.service.Cast(context.Background(), uuid.New(), fx.question.ID, fx.foreign.ID)
	if !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("err = %v, want ErrInvalidChoice", err)
	}
	if len(fx.votes.votes) != 0 {
		t.Fatalf("foreign choice must not change state")
	}
}

func TestCastRejectsUnknownChoice(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newFixture(now, nil)

	_, err := fx.service.Cast(context.Background(), uuid.New(), fx.question.ID, uuid.New())
	if !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("err = %v, want ErrInvalidChoice", err)
	}
}

func TestCastRejectsUnknownQuestion(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newFixture(now, nil)

	_, err := fx.service.Cast(context.Background(), uuid.New(), uuid.New(), fx.choiceA.ID)
	if !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("err = %v, want ErrQuestionNotFound", err)
	}
}

func TestCastRespectsVotingWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	end := now.Add(24 * time.Hour)
	fx := newFixture(now, &end)
	userID := uuid.New()

	if _, err := fx.service.Cast(context.Background(), userID, fx.question.ID, fx.choiceA.ID); err != nil {
		t.Fatalf("cast inside window failed: %v", err)
	}

	// Advance the clock past end_date: voting closes.
	fx.service.WithClock(func() time.Time { return end.Add(time.Minute) })
	_, err := fx.service.Cast(context.Background(), userID, fx.question.ID, fx.choiceB.ID)
	if !errors.Is(err, ErrVotingClosed) {
		t.Fatalf("err = %v, want ErrVotingClosed", err)
	}

	current, err := fx.service.Current(context.Background(), userID, fx.question.ID)
	if err != nil {
		t.Fatalf("current vote lookup failed: %v", err)
	}
	if current.ChoiceID != fx.choiceA.ID {
		t.Fatalf("closed-window cast must not overwrite the recorded choice")
	}
}

func TestCastRejectsUnpublishedQuestion(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newFixture(now, nil)
	fx.question.PubDate = now.Add(time.Hour)

	_, err := fx.service.Cast(context.Background(), uuid.New(), fx.question.ID, fx.choiceA.ID)
	if !errors.Is(err, ErrVotingClosed) {
		t.Fatalf("err = %v, want ErrVotingClosed", err)
	}
}
