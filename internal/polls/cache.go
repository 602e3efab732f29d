package polls

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openpolls/backend/internal/models"
)

const (
	resultsKeyPrefix = "results:"
	resultsTTL       = 30 * time.Second
)

// ResultsCache caches per-question tallies in Redis. Entries are written by
// the results handler and the tally worker and dropped when a vote lands.
type ResultsCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewResultsCache creates a Redis-backed results cache.
func NewResultsCache(client *redis.Client, logger *zap.Logger) *ResultsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsCache{client: client, logger: logger}
}

// Get returns cached tallies for a question, or ok=false on miss.
func (c *ResultsCache) Get(ctx context.Context, questionID uuid.UUID) ([]models.ChoiceResult, bool) {
	raw, err := c.client.Get(ctx, resultsKeyPrefix+questionID.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("results cache get", zap.Error(err))
		}
		return nil, false
	}
	var results []models.ChoiceResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	return results, true
}

// Set stores tallies for a question with a short TTL.
func (c *ResultsCache) Set(ctx context.Context, questionID uuid.UUID, results []models.ChoiceResult) {
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, resultsKeyPrefix+questionID.String(), raw, resultsTTL).Err(); err != nil {
		c.logger.Warn("results cache set", zap.Error(err))
	}
}

// Invalidate drops the cached tallies for a question.
func (c *ResultsCache) Invalidate(ctx context.Context, questionID uuid.UUID) error {
	return c.client.Del(ctx, resultsKeyPrefix+questionID.String()).Err()
}
