// Package admin exposes question and choice management endpoints.
package admin

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openpolls/backend/internal/models"
	"github.com/openpolls/backend/pkg/response"
)

// Store is the persistence surface the admin endpoints manage.
type Store interface {
	ListAll(ctx context.Context) ([]models.Question, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	CreateQuestion(ctx context.Context, question *models.Question) error
	UpdateQuestion(ctx context.Context, question *models.Question) error
	DeleteQuestion(ctx context.Context, id uuid.UUID) error
	ListChoices(ctx context.Context, questionID uuid.UUID) ([]models.Choice, error)
	CreateChoice(ctx context.Context, choice *models.Choice) error
	DeleteChoice(ctx context.Context, id uuid.UUID) error
}

// QuestionRequest is the body for creating or updating a question.
// A missing pub_date defaults to now; end_date may be omitted for questions
// that never close.
type QuestionRequest struct {
	Text    string     `json:"text" binding:"required"`
	PubDate *time.Time `json:"pub_date"`
	EndDate *time.Time `json:"end_date"`
}

// ChoiceRequest is the body for adding a choice to a question.
type ChoiceRequest struct {
	Text string `json:"text" binding:"required"`
}

// Handler handles the admin CRUD endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates an admin handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

// ListQuestions handles GET /admin/questions: every question, unpublished included.
func (h *Handler) ListQuestions(c *gin.Context) {
	questions, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list questions")
		return
	}
	response.OK(c, questions)
}

// CreateQuestion handles POST /admin/questions.
func (h *Handler) CreateQuestion(c *gin.Context) {
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	pubDate := h.now()
	if req.PubDate != nil {
		pubDate = *req.PubDate
	}
	if req.EndDate != nil && req.EndDate.Before(pubDate) {
		response.BadRequest(c, "end_date must not precede pub_date")
		return
	}
	question := &models.Question{Text: req.Text, PubDate: pubDate, EndDate: req.EndDate}
	if err := h.store.CreateQuestion(c.Request.Context(), question); err != nil {
		h.logger.Error("create question", zap.Error(err))
		response.Internal(c, "failed to create question")
		return
	}
	response.Created(c, question)
}

// UpdateQuestion handles PATCH /admin/questions/:id. Omitted pub_date and
// end_date keep their stored values.
func (h *Handler) UpdateQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	question, err := h.store.GetQuestion(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "question not found")
		return
	}
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	question.Text = req.Text
	if req.PubDate != nil {
		question.PubDate = *req.PubDate
	}
	if req.EndDate != nil {
		question.EndDate = req.EndDate
	}
	if question.EndDate != nil && question.EndDate.Before(question.PubDate) {
		response.BadRequest(c, "end_date must not precede pub_date")
		return
	}
	if err := h.store.UpdateQuestion(c.Request.Context(), question); err != nil {
		response.Internal(c, "failed to update question")
		return
	}
	response.OK(c, question)
}

// DeleteQuestion handles DELETE /admin/questions/:id. Choices and votes cascade.
func (h *Handler) DeleteQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	if err := h.store.DeleteQuestion(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "question not found")
			return
		}
		response.Internal(c, "failed to delete question")
		return
	}
	response.NoContent(c)
}

// ListChoices handles GET /admin/questions/:id/choices.
func (h *Handler) ListChoices(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	choices, err := h.store.ListChoices(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to list choices")
		return
	}
	response.OK(c, choices)
}

// CreateChoice handles POST /admin/questions/:id/choices.
func (h *Handler) CreateChoice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	if _, err := h.store.GetQuestion(c.Request.Context(), id); err != nil {
		response.NotFound(c, "question not found")
		return
	}
	var req ChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	choice := &models.Choice{QuestionID: id, Text: req.Text}
	if err := h.store.CreateChoice(c.Request.Context(), choice); err != nil {
		h.logger.Error("create choice", zap.Error(err))
		response.Internal(c, "failed to create choice")
		return
	}
	response.Created(c, choice)
}

// DeleteChoice handles DELETE /admin/choices/:id. Its votes cascade.
func (h *Handler) DeleteChoice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid choice id")
		return
	}
	if err := h.store.DeleteChoice(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "choice not found")
			return
		}
		response.Internal(c, "failed to delete choice")
		return
	}
	response.NoContent(c)
}
