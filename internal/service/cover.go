package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storyteller-bot/internal/config"
	"storyteller-bot/internal/metrics"
	"storyteller-bot/internal/models"

	"github.com/google/uuid"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrImageGenerationFailed - ошибка генерации обложки внешним сервисом
var ErrImageGenerationFailed = errors.New("image generation failed")

// ImageGenerator генерирует картинку по текстовому описанию и возвращает PNG/JPEG байты.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// LocalCoverRenderer рисует обложку без внешних вызовов.
type LocalCoverRenderer interface {
	RenderCover(title, hero string, palette models.Palette) ([]byte, error)
}

// Cover - готовая обложка.
type Cover struct {
	Data   []byte
	Source string // ai | local
}

// CoverParams - все, что влияет на обложку.
type CoverParams struct {
	UserID   string
	Title    string
	Hero     string
	Theme    string
	ArtStyle models.ArtStyle
	Palette  models.Palette
}

type openAIImageGenerator struct {
	client *openaigo.Client
	model  string
}

// NewOpenAIImageGenerator использует images API OpenAI-совместимого провайдера.
func NewOpenAIImageGenerator(cfg *config.Config) ImageGenerator {
	c := openaigo.DefaultConfig(cfg.AIAPIKey)
	c.BaseURL = cfg.AIBaseURL
	c.HTTPClient = &http.Client{Timeout: cfg.AICoverTimeout}
	return &openAIImageGenerator{client: openaigo.NewClientWithConfig(c), model: cfg.AIImageModel}
}

func (g *openAIImageGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.client.CreateImage(ctx, openaigo.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           openaigo.CreateImageSize1024x1024,
		ResponseFormat: openaigo.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: API returned empty data", ErrImageGenerationFailed)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrImageGenerationFailed, err)
	}
	return data, nil
}

// CoverService пробует AI-обложку и при любой ошибке рисует локальную.
type CoverService struct {
	images  ImageGenerator // nil - только локальные обложки
	local   LocalCoverRenderer
	timeout time.Duration
	logger  *zap.Logger
}

func NewCoverService(images ImageGenerator, local LocalCoverRenderer, timeout time.Duration, logger *zap.Logger) *CoverService {
	return &CoverService{
		images:  images,
		local:   local,
		timeout: timeout,
		logger:  logger.Named("CoverService"),
	}
}

// Cover никогда не возвращает ошибку, если локальный рендер работает.
func (s *CoverService) Cover(ctx context.Context, p CoverParams) (Cover, error) {
	prompt := CoverPrompt(p)
	log := s.logger.With(
		zap.String("userID", p.UserID),
		zap.String("prompt_hash", uuid.NewSHA1(uuid.NameSpaceOID, []byte(prompt)).String()),
	)

	if s.images != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		data, err := s.images.GenerateImage(callCtx, prompt)
		cancel()
		if err == nil && len(data) > 0 {
			metrics.CoversTotal.WithLabelValues("ai").Inc()
			log.Info("AI cover generated", zap.Int("size_bytes", len(data)))
			return Cover{Data: data, Source: "ai"}, nil
		}
		log.Warn("AI cover failed, rendering local cover", zap.Error(err))
	}

	data, err := s.local.RenderCover(p.Title, p.Hero, p.Palette)
	if err != nil {
		return Cover{}, fmt.Errorf("local cover render failed: %w", err)
	}
	metrics.CoversTotal.WithLabelValues("local").Inc()
	return Cover{Data: data, Source: "local"}, nil
}

var artStyleHints = map[models.ArtStyle]string{
	models.ArtWatercolor: "soft watercolor illustration with gentle brush textures",
	models.ArtCartoon:    "friendly cartoon illustration with clean outlines",
	models.ArtPencil:     "colored pencil drawing with visible hatching",
	models.ArtFlat:       "flat vector illustration with simple shapes",
}

var paletteHints = map[models.Palette]string{
	models.PalettePastel: "pastel colors",
	models.PaletteBright: "bright saturated colors",
	models.PaletteWarm:   "warm golden and orange tones",
	models.PaletteCool:   "cool blue and green tones",
}

// CoverPrompt собирает промт для обложки детской книги.
func CoverPrompt(p CoverParams) string {
	style := artStyleHints[models.ParseArtStyle(string(p.ArtStyle))]
	palette := paletteHints[models.ParsePalette(string(p.Palette))]
	var b strings.Builder
	fmt.Fprintf(&b, "Children's book cover, %s, %s. ", style, palette)
	fmt.Fprintf(&b, "Main character: %s. ", p.Hero)
	if p.Theme != "" {
		fmt.Fprintf(&b, "The story is about %s. ", p.Theme)
	}
	fmt.Fprintf(&b, "Title mood: %q. ", p.Title)
	b.WriteString("Kind, safe, cozy atmosphere, no text, no letters, no scary elements.")
	return b.String()
}
