package votes

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openpolls/backend/internal/middleware"
	"github.com/openpolls/backend/internal/models"
	"github.com/openpolls/backend/internal/polls"
	"github.com/openpolls/backend/pkg/queue"
	"github.com/openpolls/backend/pkg/response"
)

// PollReader loads the question and its choices for the re-display payload.
type PollReader interface {
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	ListChoices(ctx context.Context, questionID uuid.UUID) ([]models.Choice, error)
}

// Invalidator drops cached tallies after a vote lands.
type Invalidator interface {
	Invalidate(ctx context.Context, questionID uuid.UUID) error
}

// TallyEnqueuer schedules a background tally recompute.
type TallyEnqueuer interface {
	EnqueueTally(ctx context.Context, payload queue.TallyPayload) error
}

// Broadcaster pushes live vote events to question rooms.
type Broadcaster interface {
	BroadcastToQuestionAndPublish(questionID uuid.UUID, event string, payload interface{})
}

// VoteRequest is the JSON body alternative to the `choice` form field.
type VoteRequest struct {
	Choice string `json:"choice" binding:"required"`
}

// Handler handles POST /polls/:id/vote/.
type Handler struct {
	service *Service
	reader  PollReader
	cache   Invalidator
	queue   TallyEnqueuer
	hub     Broadcaster
	logger  *zap.Logger
}

// NewHandler creates a vote handler. cache, queue and hub may be nil.
func NewHandler(service *Service, reader PollReader, cache Invalidator, q TallyEnqueuer, hub Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, reader: reader, cache: cache, queue: q, hub: hub, logger: logger}
}

// Cast handles POST /polls/:id/vote/ (authenticated). The selected choice
// arrives in the `choice` form field (or JSON body). A missing or foreign
// choice re-displays the voting form with an error and changes nothing;
// success redirects to the results page.
func (h *Handler) Cast(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Redirect(c, "/polls/", "Access to question denied.")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	choiceID, ok := h.selectedChoice(c)
	if !ok {
		h.redisplay(c, questionID, userID)
		return
	}

	vote, err := h.service.Cast(c.Request.Context(), userID, questionID, choiceID)
	switch {
	case err == nil:
	case errors.Is(err, ErrQuestionNotFound):
		response.Redirect(c, "/polls/", "Access to question denied.")
		return
	case errors.Is(err, ErrVotingClosed):
		response.Redirect(c, "/polls/"+questionID.String()+"/results/", "Voting period is closed for this question.")
		return
	case errors.Is(err, ErrInvalidChoice):
		h.redisplay(c, questionID, userID)
		return
	default:
		h.logger.Error("cast vote", zap.Error(err), zap.String("question_id", questionID.String()))
		response.Internal(c, "failed to record vote")
		return
	}

	ctx := c.Request.Context()
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, questionID); err != nil {
			h.logger.Warn("invalidate tally cache", zap.Error(err))
		}
	}
	if h.queue != nil {
		if err := h.queue.EnqueueTally(ctx, queue.TallyPayload{QuestionID: questionID}); err != nil {
			h.logger.Warn("enqueue tally job", zap.Error(err))
		}
	}
	if h.hub != nil {
		h.hub.BroadcastToQuestionAndPublish(questionID, "vote", map[string]interface{}{
			"question_id": questionID, "choice_id": vote.ChoiceID,
		})
	}
	response.Redirect(c, "/polls/"+questionID.String()+"/results/", "")
}

// selectedChoice reads the choice from the form field or JSON body.
func (h *Handler) selectedChoice(c *gin.Context) (uuid.UUID, bool) {
	raw := c.PostForm("choice")
	if raw == "" {
		var req VoteRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			raw = req.Choice
		}
	}
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// redisplay returns the voting form payload with an error message, leaving
// state untouched. Unknown questions fall back to the index redirect.
func (h *Handler) redisplay(c *gin.Context, questionID, userID uuid.UUID) {
	ctx := c.Request.Context()
	question, err := h.reader.GetQuestion(ctx, questionID)
	if err != nil {
		response.Redirect(c, "/polls/", "Access to question denied.")
		return
	}
	choices, err := h.reader.ListChoices(ctx, questionID)
	if err != nil {
		response.Internal(c, "failed to list choices")
		return
	}
	payload := polls.DetailPayload{
		Question:     question,
		Choices:      choices,
		ErrorMessage: "You didn't select a choice.",
	}
	if vote, err := h.service.Current(ctx, userID, questionID); err == nil {
		payload.CurrentChoice = &vote.ChoiceID
	}
	response.OK(c, payload)
}
