package votes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openpolls/backend/internal/models"
)

// Repository handles vote persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a votes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert records the user's vote for a question, overwriting any previous
// choice. The UNIQUE (question_id, user_id) key serializes concurrent
// double-submission so at most one row exists per pair.
func (r *Repository) Upsert(ctx context.Context, questionID, userID, choiceID uuid.UUID) (*models.Vote, error) {
	const q = `INSERT INTO votes (question_id, user_id, choice_id) VALUES ($1, $2, $3)
		ON CONFLICT (question_id, user_id) DO UPDATE SET choice_id = EXCLUDED.choice_id, voted_at = NOW()
		RETURNING question_id, user_id, choice_id, voted_at`
	var v models.Vote
	err := r.pool.QueryRow(ctx, q, questionID, userID, choiceID).
		Scan(&v.QuestionID, &v.UserID, &v.ChoiceID, &v.VotedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetByUser returns the user's vote for a question, if any.
func (r *Repository) GetByUser(ctx context.Context, questionID, userID uuid.UUID) (*models.Vote, error) {
	const q = `SELECT question_id, user_id, choice_id, voted_at
		FROM votes WHERE question_id = $1 AND user_id = $2`
	var v models.Vote
	err := r.pool.QueryRow(ctx, q, questionID, userID).
		Scan(&v.QuestionID, &v.UserID, &v.ChoiceID, &v.VotedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
