package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// fakeLists is an in-memory stand-in for the Redis list commands.
type fakeLists struct {
	lists map[string][]string
}

func newFakeLists() *fakeLists {
	return &fakeLists{lists: make(map[string][]string)}
}

func (f *fakeLists) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		switch val := v.(type) {
		case []byte:
			f.lists[key] = append(f.lists[key], string(val))
		case string:
			f.lists[key] = append(f.lists[key], val)
		}
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeLists) BLPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	for _, k := range keys {
		if items := f.lists[k]; len(items) > 0 {
			f.lists[k] = items[1:]
			return redis.NewStringSliceResult([]string{k, items[0]}, nil)
		}
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (f *fakeLists) decodeJob(t *testing.T, key string, index int) Job {
	t.Helper()
	items := f.lists[key]
	if index >= len(items) {
		t.Fatalf("list %q has %d items, want index %d", key, len(items), index)
	}
	var job Job
	if err := json.Unmarshal([]byte(items[index]), &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	return job
}

func TestEnqueueDequeueRoundtrip(t *testing.T) {
	lists := newFakeLists()
	q := NewQueue(lists, nil)
	questionID := uuid.New()

	if err := q.EnqueueTally(context.Background(), TallyPayload{QuestionID: questionID}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, key, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if key != QueueTallies {
		t.Fatalf("key = %q, want %q", key, QueueTallies)
	}
	if job == nil || job.Type != JobTypeTally {
		t.Fatalf("job = %+v, want tally job", job)
	}
	var payload TallyPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.QuestionID != questionID {
		t.Fatalf("question id = %s, want %s", payload.QuestionID, questionID)
	}
}

func TestDequeueEmptyQueue(t *testing.T) {
	q := NewQueue(newFakeLists(), nil)
	job, _, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job != nil {
		t.Fatalf("job = %+v, want nil on empty queue", job)
	}
}

func TestRetryReenqueuesWithIncrementedAttempt(t *testing.T) {
	lists := newFakeLists()
	q := NewQueue(lists, nil)
	job := &Job{ID: uuid.NewString(), Type: JobTypeTally, Payload: []byte(`{}`), Attempt: 0}

	if err := q.Retry(context.Background(), job); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(lists.lists[QueueDLQ]) != 0 {
		t.Fatalf("first retry must not hit the DLQ")
	}
	requeued := lists.decodeJob(t, QueueTallies, 0)
	if requeued.Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", requeued.Attempt)
	}
}

func TestRetryMovesExhaustedJobToDLQ(t *testing.T) {
	lists := newFakeLists()
	q := NewQueue(lists, nil)
	job := &Job{ID: uuid.NewString(), Type: JobTypeTally, Payload: []byte(`{}`), Attempt: MaxRetries - 1}

	if err := q.Retry(context.Background(), job); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(lists.lists[QueueTallies]) != 0 {
		t.Fatalf("exhausted job must not return to the work queue")
	}
	dead := lists.decodeJob(t, QueueDLQ, 0)
	if dead.ID != job.ID || dead.Attempt != MaxRetries {
		t.Fatalf("dlq job = %+v", dead)
	}
}

func TestDequeueSkipsCorruptPayload(t *testing.T) {
	lists := newFakeLists()
	lists.lists[QueueTallies] = []string{"not json"}
	q := NewQueue(lists, nil)

	job, _, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job != nil {
		t.Fatalf("corrupt payload should be dropped, got %+v", job)
	}
}
