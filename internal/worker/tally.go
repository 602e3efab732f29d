// Package worker recomputes question tallies in the background.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openpolls/backend/internal/models"
	"github.com/openpolls/backend/pkg/queue"
)

// ResultsSource counts votes per choice for a question.
type ResultsSource interface {
	Results(ctx context.Context, questionID uuid.UUID) ([]models.ChoiceResult, error)
}

// ResultsSink stores recomputed tallies for fast reads.
type ResultsSink interface {
	Set(ctx context.Context, questionID uuid.UUID, results []models.ChoiceResult)
}

// EventPublisher pushes refreshed tallies to live watchers.
type EventPublisher interface {
	PublishQuestionEvent(questionID uuid.UUID, event string, payload []byte) error
}

// TallyProcessor consumes tally jobs: recompute per-choice counts from vote
// rows, refresh the cache, and publish a results event to the question's
// channel.
type TallyProcessor struct {
	results   ResultsSource
	cache     ResultsSink
	queue     *queue.Queue
	publisher EventPublisher
	logger    *zap.Logger
}

// NewTallyProcessor creates a tally recompute processor. cache and publisher may be nil.
func NewTallyProcessor(results ResultsSource, cache ResultsSink, q *queue.Queue, publisher EventPublisher, logger *zap.Logger) *TallyProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TallyProcessor{results: results, cache: cache, queue: q, publisher: publisher, logger: logger}
}

// Process executes one tally job.
func (p *TallyProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTally {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TallyPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	results, err := p.results.Results(ctx, payload.QuestionID)
	if err != nil {
		return fmt.Errorf("recompute tallies: %w", err)
	}

	if p.cache != nil {
		p.cache.Set(ctx, payload.QuestionID, results)
	}

	if p.publisher != nil {
		body, err := json.Marshal(resultsEvent{QuestionID: payload.QuestionID, Results: results})
		if err != nil {
			return fmt.Errorf("marshal results event: %w", err)
		}
		if err := p.publisher.PublishQuestionEvent(payload.QuestionID, "results", body); err != nil {
			p.logger.Warn("publish results event", zap.Error(err), zap.String("question_id", payload.QuestionID.String()))
		}
	}

	p.logger.Debug("tally recomputed", zap.String("question_id", payload.QuestionID.String()), zap.Int("choices", len(results)))
	return nil
}

type resultsEvent struct {
	QuestionID uuid.UUID             `json:"question_id"`
	Results    []models.ChoiceResult `json:"results"`
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *TallyProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("tally worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
