package polls

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openpolls/backend/internal/middleware"
	"github.com/openpolls/backend/internal/models"
	"github.com/openpolls/backend/pkg/response"
)

// Store is the question/choice persistence the poll pages depend on.
type Store interface {
	ListPublished(ctx context.Context, now time.Time, limit int) ([]models.Question, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	ListChoices(ctx context.Context, questionID uuid.UUID) ([]models.Choice, error)
	Results(ctx context.Context, questionID uuid.UUID) ([]models.ChoiceResult, error)
}

// VoteReader looks up the caller's existing vote for the detail page.
type VoteReader interface {
	GetByUser(ctx context.Context, questionID, userID uuid.UUID) (*models.Vote, error)
}

// TallyCache caches per-question results; nil-able via NewHandler.
type TallyCache interface {
	Get(ctx context.Context, questionID uuid.UUID) ([]models.ChoiceResult, bool)
	Set(ctx context.Context, questionID uuid.UUID, results []models.ChoiceResult)
}

// IndexItem is one question on the index page.
type IndexItem struct {
	models.Question
	RecentlyPublished bool `json:"recently_published"`
}

// DetailPayload is the voting-form payload for an open question.
type DetailPayload struct {
	Question      *models.Question `json:"question"`
	Choices       []models.Choice  `json:"choices"`
	CurrentChoice *uuid.UUID       `json:"current_choice,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
}

// ResultsPayload is the tallies payload for a published question.
type ResultsPayload struct {
	Question *models.Question      `json:"question"`
	Results  []models.ChoiceResult `json:"results"`
}

// Handler handles the poll pages: index, detail, results.
type Handler struct {
	store      Store
	votes      VoteReader
	cache      TallyCache
	indexLimit int
	now        func() time.Time
}

// NewHandler creates a polls handler. cache may be nil.
func NewHandler(store Store, votes VoteReader, cache TallyCache, indexLimit int) *Handler {
	return &Handler{
		store:      store,
		votes:      votes,
		cache:      cache,
		indexLimit: indexLimit,
		now:        time.Now,
	}
}

// Index handles GET /polls/: the latest published questions, newest first.
func (h *Handler) Index(c *gin.Context) {
	now := h.now()
	questions, err := h.store.ListPublished(c.Request.Context(), now, h.indexLimit)
	if err != nil {
		response.Internal(c, "failed to list questions")
		return
	}
	items := make([]IndexItem, 0, len(questions))
	for i := range questions {
		items = append(items, IndexItem{
			Question:          questions[i],
			RecentlyPublished: questions[i].WasPublishedRecently(now),
		})
	}
	response.OK(c, gin.H{"questions": items, "message": c.Query("message")})
}

// Detail handles GET /polls/:id/ (authenticated): the voting form for an open
// question, including the caller's current choice. Unpublished or unknown
// questions redirect to the index; a closed window redirects to results.
func (h *Handler) Detail(c *gin.Context) {
	question, ok := h.lookupQuestion(c)
	if !ok {
		return
	}
	now := h.now()
	switch {
	case question.CanVote(now):
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		choices, err := h.store.ListChoices(c.Request.Context(), question.ID)
		if err != nil {
			response.Internal(c, "failed to list choices")
			return
		}
		payload := DetailPayload{Question: question, Choices: choices}
		if vote, err := h.votes.GetByUser(c.Request.Context(), question.ID, userID); err == nil {
			payload.CurrentChoice = &vote.ChoiceID
		}
		response.OK(c, payload)
	case question.IsPublished(now):
		response.Redirect(c, "/polls/"+question.ID.String()+"/results/", "Voting period is closed for this question.")
	default:
		response.Redirect(c, "/polls/", "Access to question denied.")
	}
}

// Results handles GET /polls/:id/results/: per-choice tallies for a published
// question. Unpublished or unknown questions redirect to the index.
func (h *Handler) Results(c *gin.Context) {
	question, ok := h.lookupQuestion(c)
	if !ok {
		return
	}
	if !question.IsPublished(h.now()) {
		response.Redirect(c, "/polls/", "Access to question denied.")
		return
	}
	if h.cache != nil {
		if results, hit := h.cache.Get(c.Request.Context(), question.ID); hit {
			response.OK(c, ResultsPayload{Question: question, Results: results})
			return
		}
	}
	results, err := h.store.Results(c.Request.Context(), question.ID)
	if err != nil {
		response.Internal(c, "failed to load results")
		return
	}
	if h.cache != nil {
		h.cache.Set(c.Request.Context(), question.ID, results)
	}
	response.OK(c, ResultsPayload{Question: question, Results: results})
}

// lookupQuestion parses the :id param and loads the question, redirecting to
// the index (with a flashed message) when either step fails.
func (h *Handler) lookupQuestion(c *gin.Context) (*models.Question, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Redirect(c, "/polls/", "Access to question denied.")
		return nil, false
	}
	question, err := h.store.GetQuestion(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.Redirect(c, "/polls/", "Access to question denied.")
		} else {
			response.Internal(c, "failed to load question")
		}
		return nil, false
	}
	return question, true
}
