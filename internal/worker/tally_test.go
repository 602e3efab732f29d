package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/openpolls/backend/internal/models"
	"github.com/openpolls/backend/pkg/queue"
)

type fakeSource struct {
	results map[uuid.UUID][]models.ChoiceResult
	err     error
}

func (f *fakeSource) Results(_ context.Context, questionID uuid.UUID) ([]models.ChoiceResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[questionID], nil
}

type fakeSink struct {
	stored map[uuid.UUID][]models.ChoiceResult
}

func (f *fakeSink) Set(_ context.Context, questionID uuid.UUID, results []models.ChoiceResult) {
	f.stored[questionID] = results
}

type fakePublisher struct {
	events []publishedEvent
}

type publishedEvent struct {
	questionID uuid.UUID
	event      string
	payload    []byte
}

func (f *fakePublisher) PublishQuestionEvent(questionID uuid.UUID, event string, payload []byte) error {
	f.events = append(f.events, publishedEvent{questionID: questionID, event: event, payload: payload})
	return nil
}

func tallyJob(t *testing.T, questionID uuid.UUID) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(queue.TallyPayload{QuestionID: questionID})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeTally, Payload: payload}
}

func TestProcessCachesAndPublishesTallies(t *testing.T) {
	questionID := uuid.New()
	tallies := []models.ChoiceResult{
		{ID: uuid.New(), Text: "red", Votes: 3},
		{ID: uuid.New(), Text: "blue", Votes: 0},
	}
	source := &fakeSource{results: map[uuid.UUID][]models.ChoiceResult{questionID: tallies}}
	sink := &fakeSink{stored: make(map[uuid.UUID][]models.ChoiceResult)}
	publisher := &fakePublisher{}
	p := NewTallyProcessor(source, sink, nil, publisher, nil)

	if err := p.Process(context.Background(), tallyJob(t, questionID)); err != nil {
		t.Fatalf("process: %v", err)
	}

	if got := sink.stored[questionID]; len(got) != 2 || got[0].Votes != 3 {
		t.Fatalf("cached tallies = %+v", got)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(publisher.events))
	}
	ev := publisher.events[0]
	if ev.questionID != questionID || ev.event != "results" {
		t.Fatalf("event = %+v", ev)
	}
	var body struct {
		QuestionID uuid.UUID             `json:"question_id"`
		Results    []models.ChoiceResult `json:"results"`
	}
	if err := json.Unmarshal(ev.payload, &body); err != nil {
		t.Fatalf("unmarshal event payload: %v", err)
	}
	if body.QuestionID != questionID || len(body.Results) != 2 {
		t.Fatalf("event payload = %+v", body)
	}
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewTallyProcessor(&fakeSource{}, nil, nil, nil, nil)
	job := &queue.Job{ID: uuid.NewString(), Type: "transcode", Payload: []byte(`{}`)}
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatalf("expected error for unknown job type")
	}
}

func TestProcessPropagatesSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	sink := &fakeSink{stored: make(map[uuid.UUID][]models.ChoiceResult)}
	p := NewTallyProcessor(source, sink, nil, nil, nil)

	if err := p.Process(context.Background(), tallyJob(t, uuid.New())); err == nil {
		t.Fatalf("expected error when recompute fails")
	}
	if len(sink.stored) != 0 {
		t.Fatalf("failed recompute must not touch the cache")
	}
}
