package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storyteller-bot/internal/config"
	"storyteller-bot/internal/metrics"
	"storyteller-bot/internal/models"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// GenerationParams - параметры сэмплинга. Указатели отличают 0 от "не задано".
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	// JSONMode просит модель вернуть один JSON-объект
	JSONMode bool
}

// UsageInfo содержит информацию об использовании токенов
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool // посчитано локально через tiktoken
}

// AIClient интерфейс для взаимодействия с AI API
type AIClient interface {
	// GenerateText генерирует текст на основе системного промта и ввода пользователя.
	GenerateText(ctx context.Context, userID string, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// NewAIClient создает клиента по AI_CLIENT_TYPE.
func NewAIClient(cfg *config.Config, logger *zap.Logger) (AIClient, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		return newOpenAIClient(cfg, logger), nil
	case "ollama":
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: %s", cfg.AIClientType)
	}
}

// --- OpenAI-совместимый клиент (OpenAI, OpenRouter) ---

type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

var _ AIClient = (*openAIClient)(nil)

func newOpenAIClient(cfg *config.Config, logger *zap.Logger) *openAIClient {
	openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
	openaiConfig.BaseURL = cfg.AIBaseURL
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
	l := logger.Named("OpenAIClient")
	l.Info("OpenAI client created", zap.String("baseURL", cfg.AIBaseURL), zap.String("model", cfg.AIModel), zap.Duration("timeout", cfg.AITimeout))
	return &openAIClient{
		client: openaigo.NewClientWithConfig(openaiConfig),
		model:  cfg.AIModel,
		logger: l,
	}
}

func (c *openAIClient) GenerateText(ctx context.Context, userID string, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}
	log := c.logger.With(zap.String("userID", userID))

	if strings.TrimSpace(systemPrompt) == "" {
		metrics.AIRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usageInfo, fmt.Errorf("%w: системный промт пуст", models.ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userInput})
	}

	req := openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
	}
	if params.JSONMode {
		req.ResponseFormat = &openaigo.ChatCompletionResponseFormat{Type: openaigo.ChatCompletionResponseFormatTypeJSONObject}
	}

	startTime := time.Now()
	log.Debug("Sending AI request", zap.String("model", c.model), zap.Int("systemPromptBytes", len(systemPrompt)), zap.Int("userInputBytes", len(userInput)))
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(startTime)

	if err != nil {
		log.Warn("AI API error", zap.Duration("duration", duration), zap.Error(err))
		metrics.AIRequestsTotal.WithLabelValues(c.model, statusForError(err)).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", models.ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		log.Warn("AI API returned empty response", zap.Duration("duration", duration))
		metrics.AIRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return "", usageInfo, fmt.Errorf("%w: получен пустой ответ", models.ErrAIGenerationFailed)
	}

	metrics.AIRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	generatedText := resp.Choices[0].Message.Content
	if resp.Usage.TotalTokens > 0 {
		usageInfo.PromptTokens = resp.Usage.PromptTokens
		usageInfo.CompletionTokens = resp.Usage.CompletionTokens
		usageInfo.TotalTokens = resp.Usage.TotalTokens
	} else {
		// OpenRouter для некоторых моделей не возвращает usage
		usageInfo = estimateUsage(c.model, systemPrompt+userInput, generatedText)
	}
	observeUsage(c.model, usageInfo)

	log.Info("AI response received",
		zap.Duration("duration", duration),
		zap.Int("responseChars", len(generatedText)),
		zap.Int("totalTokens", usageInfo.TotalTokens),
		zap.Bool("estimated", usageInfo.Estimated),
	)
	return generatedText, usageInfo, nil
}

// --- Ollama ---

type ollamaClient struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

var _ AIClient = (*ollamaClient)(nil)

func newOllamaClient(cfg *config.Config, logger *zap.Logger) (*ollamaClient, error) {
	ollamaBaseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")

	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", ollamaBaseURL, err)
	}

	l := logger.Named("OllamaClient")
	l.Info("Ollama client created", zap.String("baseURL", ollamaBaseURL), zap.String("model", cfg.AIModel))
	return &ollamaClient{
		client: api.NewClient(parsedURL, &http.Client{Timeout: cfg.AITimeout}),
		model:  cfg.AIModel,
		logger: l,
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, userID string, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}
	log := c.logger.With(zap.String("userID", userID))

	if strings.TrimSpace(systemPrompt) == "" {
		metrics.AIRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usageInfo, fmt.Errorf("%w: системный промт пуст", models.ErrAIGenerationFailed)
	}

	messages := []api.Message{{Role: "system", Content: systemPrompt}}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	stream := false
	options := map[string]interface{}{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
	if params.JSONMode {
		req.Format = []byte(`"json"`)
	}

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r // без стрима приходит один полный ответ
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		log.Warn("Ollama API error", zap.Duration("duration", duration), zap.Error(err))
		metrics.AIRequestsTotal.WithLabelValues(c.model, statusForError(err)).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", models.ErrAIGenerationFailed, err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		log.Warn("Ollama API returned empty response", zap.Duration("duration", duration))
		metrics.AIRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return "", usageInfo, fmt.Errorf("%w: получен пустой ответ", models.ErrAIGenerationFailed)
	}

	metrics.AIRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	usageInfo.PromptTokens = resp.PromptEvalCount
	usageInfo.CompletionTokens = resp.EvalCount
	usageInfo.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	observeUsage(c.model, usageInfo)

	log.Info("Ollama response received", zap.Duration("duration", duration), zap.Int("responseChars", len(resp.Message.Content)))
	return resp.Message.Content, usageInfo, nil
}

// --- helpers ---

// estimateUsage считает токены локально. Для неизвестных моделей используется cl100k_base.
func estimateUsage(model, prompt, completion string) UsageInfo {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return UsageInfo{}
		}
	}
	p := len(tke.Encode(prompt, nil, nil))
	c := len(tke.Encode(completion, nil, nil))
	return UsageInfo{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c, Estimated: true}
}

func observeUsage(model string, u UsageInfo) {
	if u.TotalTokens == 0 {
		return
	}
	metrics.AITokens.WithLabelValues(model, "prompt").Observe(float64(u.PromptTokens))
	metrics.AITokens.WithLabelValues(model, "completion").Observe(float64(u.CompletionTokens))
}

func statusForError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "error_timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "error_canceled"
	}
	return "error"
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
