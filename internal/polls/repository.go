package polls

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openpolls/backend/internal/models"
)

// Repository handles question and choice persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPublished returns up to limit questions with pub_date <= now,
// most recent first.
func (r *Repository) ListPublished(ctx context.Context, now time.Time, limit int) ([]models.Question, error) {
	const q = `SELECT id, text, pub_date, end_date, created_at
		FROM questions WHERE pub_date <= $1
		ORDER BY pub_date DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Question
	for rows.Next() {
		var question models.Question
		if err := rows.Scan(&question.ID, &question.Text, &question.PubDate, &question.EndDate, &question.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, question)
	}
	return list, rows.Err()
}

// ListAll returns every question, unpublished included, most recent first.
// Used by the admin surface.
func (r *Repository) ListAll(ctx context.Context) ([]models.Question, error) {
	const q = `SELECT id, text, pub_date, end_date, created_at
		FROM questions ORDER BY pub_date DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Question
	for rows.Next() {
		var question models.Question
		if err := rows.Scan(&question.ID, &question.Text, &question.PubDate, &question.EndDate, &question.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, question)
	}
	return list, rows.Err()
}

// GetQuestion returns a question by ID.
func (r *Repository) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	const q = `SELECT id, text, pub_date, end_date, created_at
		FROM questions WHERE id = $1`
	var question models.Question
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&question.ID, &question.Text, &question.PubDate, &question.EndDate, &question.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// CreateQuestion inserts a new question.
func (r *Repository) CreateQuestion(ctx context.Context, question *models.Question) error {
	const q = `INSERT INTO questions (text, pub_date, end_date)
		VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, question.Text, question.PubDate, question.EndDate).
		Scan(&question.ID, &question.CreatedAt)
}

// UpdateQuestion updates a question's text and window.
func (r *Repository) UpdateQuestion(ctx context.Context, question *models.Question) error {
	const q = `UPDATE questions SET text = $2, pub_date = $3, end_date = $4 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, question.ID, question.Text, question.PubDate, question.EndDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteQuestion deletes a question; choices and votes cascade.
func (r *Repository) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListChoices returns a question's choices in insertion order.
func (r *Repository) ListChoices(ctx context.Context, questionID uuid.UUID) ([]models.Choice, error) {
	const q = `SELECT id, question_id, text FROM choices WHERE question_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, q, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Choice
	for rows.Next() {
		var choice models.Choice
		if err := rows.Scan(&choice.ID, &choice.QuestionID, &choice.Text); err != nil {
			return nil, err
		}
		list = append(list, choice)
	}
	return list, rows.Err()
}

// GetChoice returns a choice by ID.
func (r *Repository) GetChoice(ctx context.Context, id uuid.UUID) (*models.Choice, error) {
	const q = `SELECT id, question_id, text FROM choices WHERE id = $1`
	var choice models.Choice
	err := r.pool.QueryRow(ctx, q, id).Scan(&choice.ID, &choice.QuestionID, &choice.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &choice, nil
}

// CreateChoice inserts a new choice for a question.
func (r *Repository) CreateChoice(ctx context.Context, choice *models.Choice) error {
	const q = `INSERT INTO choices (question_id, text) VALUES ($1, $2) RETURNING id`
	return r.pool.QueryRow(ctx, q, choice.QuestionID, choice.Text).Scan(&choice.ID)
}

// DeleteChoice deletes a choice; its votes cascade.
func (r *Repository) DeleteChoice(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM choices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Results counts votes per choice for a question. Choices with no votes
// are included with a zero tally.
func (r *Repository) Results(ctx context.Context, questionID uuid.UUID) ([]models.ChoiceResult, error) {
	const q = `SELECT c.id, c.text, COUNT(v.choice_id)
		FROM choices c
		LEFT JOIN votes v ON v.choice_id = c.id
		WHERE c.question_id = $1
		GROUP BY c.id, c.text
		ORDER BY c.id`
	rows, err := r.pool.Query(ctx, q, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ChoiceResult
	for rows.Next() {
		var res models.ChoiceResult
		if err := rows.Scan(&res.ID, &res.Text, &res.Votes); err != nil {
			return nil, err
		}
		list = append(list, res)
	}
	return list, rows.Err()
}
