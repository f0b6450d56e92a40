package api

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"

	"storyteller-bot/internal/models"
	"storyteller-bot/internal/story"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const maxFieldLength = 200

// Synthesizer - конвейер генерации историй.
type Synthesizer interface {
	Synthesize(ctx context.Context, userID string, req models.StoryRequest, seed uint64) story.Result
}

// UpdateDispatcher принимает обновления Telegram из вебхука.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, update tgbotapi.Update)
}

// CreateStoryRequest - тело POST /api/v1/stories. Seed задает локальный генератор (для воспроизводимости).
type CreateStoryRequest struct {
	Age       int      `json:"age"`
	Hero      string   `json:"hero"`
	Theme     string   `json:"theme"`
	Length    string   `json:"length"`
	Style     string   `json:"style"`
	AvoidList []string `json:"avoid_list"`
	Seed      *uint64  `json:"seed,omitempty"`
}

// StoryResponse - ответ POST /api/v1/stories.
type StoryResponse struct {
	Title     string             `json:"title"`
	Text      string             `json:"text"`
	Moral     string             `json:"moral"`
	Questions []string           `json:"questions"`
	Source    models.StorySource `json:"source"`
	WordCount int                `json:"word_count"`
}

type storyHandler struct {
	synth  Synthesizer
	logger *zap.Logger
}

func (h *storyHandler) create(c *gin.Context) {
	var body CreateStoryRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(body.Hero) > maxFieldLength || len(body.Theme) > maxFieldLength || len(strings.Join(body.AvoidList, "")) > maxFieldLength*5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request fields are too long"})
		return
	}

	req := models.StoryRequest{
		Age:       body.Age,
		Hero:      body.Hero,
		Theme:     body.Theme,
		Length:    models.Length(body.Length),
		Style:     models.Style(body.Style),
		AvoidList: body.AvoidList,
	}
	if req.Age == 0 {
		req.Age = models.DefaultAge
	}
	seed := rand.Uint64()
	if body.Seed != nil {
		seed = *body.Seed
	}

	subject := c.GetString(subjectContextKey)
	if subject == "" {
		subject = "api"
	}
	res := h.synth.Synthesize(c.Request.Context(), subject, req, seed)
	h.logger.Info("Story generated via API",
		zap.String("subject", subject),
		zap.String("source", string(res.Source)),
		zap.Duration("duration", res.Duration),
	)
	c.JSON(http.StatusOK, StoryResponse{
		Title:     res.Draft.Title,
		Text:      res.Draft.Text,
		Moral:     res.Draft.Moral,
		Questions: res.Draft.Questions,
		Source:    res.Source,
		WordCount: story.WordCount(res.Draft.Text),
	})
}

func webhookHandler(d UpdateDispatcher, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			logger.Warn("Invalid webhook payload", zap.Error(err))
			c.Status(http.StatusBadRequest)
			return
		}
		d.Dispatch(c.Request.Context(), update)
		c.Status(http.StatusOK)
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
