package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"storyteller-bot/internal/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Config содержит конфигурацию бота, HTTP API и конвейера генерации.
type Config struct {
	Env string `envconfig:"ENV" default:"development"`

	// Логирование
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Telegram
	BotMode     string `envconfig:"BOT_MODE" default:"polling"` // polling | webhook
	PublicURL   string `envconfig:"PUBLIC_URL"`
	WebhookPath string `envconfig:"WEBHOOK_PATH" default:"/telegram/webhook"`
	BotDebug    bool   `envconfig:"BOT_DEBUG" default:"false"`
	// Секретное поле БЕЗ envconfig тега
	BotToken string `ignored:"true"`

	UserRatePerMinute    int `envconfig:"USER_RATE_PER_MINUTE" default:"30"`
	MaxConcurrentUpdates int `envconfig:"MAX_CONCURRENT_UPDATES" default:"32"`

	// HTTP
	HTTPPort           string   `envconfig:"HTTP_PORT" default:"8080"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	// Пустой секрет отключает авторизацию REST API
	APIJWTSecret string `ignored:"true"`

	// AI
	AIClientType   string        `envconfig:"AI_CLIENT_TYPE" default:"openai"` // openai | ollama | none
	AIBaseURL      string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel        string        `envconfig:"AI_MODEL" default:"openai/gpt-4o-mini"`
	AIImageModel   string        `envconfig:"AI_IMAGE_MODEL" default:"dall-e-3"`
	AITimeout      time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	AICoverTimeout time.Duration `envconfig:"AI_COVER_TIMEOUT" default:"90s"`
	AITemperature  float64       `envconfig:"AI_TEMPERATURE" default:"0.8"`
	AIMaxTokens    int           `envconfig:"AI_MAX_TOKENS" default:"2500"`
	AICoverEnabled bool          `envconfig:"AI_COVER_ENABLED" default:"true"`
	// Секретное поле БЕЗ envconfig тега
	AIAPIKey string `ignored:"true"`

	// Квоты
	DailyStoryLimit int    `envconfig:"DAILY_STORY_LIMIT" default:"3"`
	QuotaTimezone   string `envconfig:"QUOTA_TIMEZONE" default:"Europe/Moscow"`

	// Диалог
	SettingsAskIllustration bool `envconfig:"SETTINGS_ASK_ILLUSTRATION" default:"false"`

	// Хранилища
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory"` // memory | redis
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	ArchiveBackend string `envconfig:"ARCHIVE_BACKEND" default:"memory"` // memory | postgres
	// Секретное поле БЕЗ envconfig тега, необязательное
	RedisPassword string `ignored:"true"`

	DBHost         string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort         string        `envconfig:"DB_PORT" default:"5432"`
	DBUser         string        `envconfig:"DB_USER" default:"postgres"`
	DBName         string        `envconfig:"DB_NAME" default:"storyteller"`
	DBSSLMode      string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns     int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout  time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	DBConnectTries int           `envconfig:"DB_CONNECT_TRIES" default:"10"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string `ignored:"true"`

	// События
	RabbitMQURL string `envconfig:"RABBITMQ_URL"`
	EventsQueue string `envconfig:"EVENTS_QUEUE" default:"story_generated_events"`

	// Метрики
	PushgatewayURL      string        `envconfig:"PUSHGATEWAY_URL"`
	PushgatewayInterval time.Duration `envconfig:"PUSHGATEWAY_INTERVAL" default:"15s"`

	// Рендеринг
	FontDir         string `envconfig:"FONT_DIR"`
	RenderQuestions bool   `envconfig:"RENDER_QUESTIONS" default:"true"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// WebhookURL - полный адрес вебхука для Telegram.
func (c *Config) WebhookURL() string {
	return strings.TrimSuffix(c.PublicURL, "/") + c.WebhookPath
}

// UsesWebhook: режим вебхука включается явно или наличием PUBLIC_URL.
func (c *Config) UsesWebhook() bool {
	return strings.EqualFold(c.BotMode, "webhook") || c.PublicURL != ""
}

// Load загружает .env (если есть), переменные окружения и секреты.
// requireBot=false используется командами, которым не нужен Telegram (migrate, generate).
func Load(requireBot bool) (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	var err error
	if cfg.BotToken, err = utils.LookupSecret("bot_token", "BOT_TOKEN"); err != nil && requireBot {
		return nil, err
	}
	if cfg.AIClientType != "none" {
		// Ollama работает без ключа
		cfg.AIAPIKey, err = utils.LookupSecret("ai_api_key", "AI_API_KEY")
		if err != nil && cfg.AIClientType == "openai" {
			return nil, err
		}
	}
	// пароль БД нужен архиву в postgres и команде migrate
	if cfg.DBPassword, err = utils.LookupSecret("db_password", "DB_PASSWORD"); err != nil && cfg.ArchiveBackend == "postgres" {
		return nil, err
	}
	cfg.RedisPassword, _ = utils.LookupSecret("redis_password", "REDIS_PASSWORD")
	cfg.APIJWTSecret, _ = utils.LookupSecret("api_jwt_secret", "API_JWT_SECRET")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения, которые envconfig не может проверить сам.
func (c *Config) Validate() error {
	var errs []error
	switch c.AIClientType {
	case "openai", "ollama", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown AI_CLIENT_TYPE %q", c.AIClientType))
	}
	switch c.StorageBackend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	switch c.ArchiveBackend {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown ARCHIVE_BACKEND %q", c.ArchiveBackend))
	}
	if c.DailyStoryLimit < 1 {
		errs = append(errs, fmt.Errorf("DAILY_STORY_LIMIT must be positive, got %d", c.DailyStoryLimit))
	}
	if _, err := time.LoadLocation(c.QuotaTimezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid QUOTA_TIMEZONE %q: %w", c.QuotaTimezone, err))
	}
	if strings.EqualFold(c.BotMode, "webhook") && c.PublicURL == "" {
		errs = append(errs, errors.New("BOT_MODE=webhook requires PUBLIC_URL"))
	}
	if c.AITimeout <= 0 {
		errs = append(errs, errors.New("AI_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// LogSummary логирует загруженную конфигурацию без секретов.
func (c *Config) LogSummary(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.String("env", c.Env),
		zap.String("botMode", c.BotMode),
		zap.Bool("webhook", c.UsesWebhook()),
		zap.String("httpPort", c.HTTPPort),
		zap.String("aiClientType", c.AIClientType),
		zap.String("aiBaseURL", c.AIBaseURL),
		zap.String("aiModel", c.AIModel),
		zap.Duration("aiTimeout", c.AITimeout),
		zap.Int("dailyStoryLimit", c.DailyStoryLimit),
		zap.String("quotaTimezone", c.QuotaTimezone),
		zap.String("storageBackend", c.StorageBackend),
		zap.String("archiveBackend", c.ArchiveBackend),
		zap.String("dbDSN", c.getMaskedDSN()),
		zap.Bool("eventsEnabled", c.RabbitMQURL != ""),
		zap.Bool("apiAuthEnabled", c.APIJWTSecret != ""),
		zap.Bool("aiKeyLoaded", c.AIAPIKey != ""),
	)
}

// getMaskedDSN возвращает DSN с замаскированным паролем для логирования
func (c *Config) getMaskedDSN() string {
	dsn := c.GetDSN()
	parts := strings.Split(dsn, "@")
	if len(parts) != 2 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(parts[0], ":")
	if len(userInfo) >= 2 {
		userInfo[len(userInfo)-1] = "********"
	}
	return strings.Join(userInfo, ":") + "@" + parts[1]
}
