package api

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

// RouterConfig - параметры HTTP API.
type RouterConfig struct {
	Env            string
	AllowedOrigins []string
	WebhookPath    string
}

// RouterDeps - обработчики. Verifier == nil отключает авторизацию, Webhook == nil - маршрут вебхука.
type RouterDeps struct {
	Synth    Synthesizer
	Verifier *JWTVerifier
	Webhook  UpdateDispatcher
	Metrics  *ginprometheus.Prometheus
}

// NewRouter собирает gin.Engine: логирование, recovery, CORS, /health, /metrics,
// вебхук Telegram и REST API.
func NewRouter(cfg RouterConfig, deps RouterDeps, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}
	logger = logger.Named("HTTP")

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(ZapLogger(logger))
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	// до регистрации маршрутов: gin не применяет middleware к уже добавленным маршрутам
	if deps.Metrics != nil {
		deps.Metrics.Use(router)
	}

	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	if deps.Webhook != nil && cfg.WebhookPath != "" {
		router.POST(cfg.WebhookPath, webhookHandler(deps.Webhook, logger))
	}

	v1 := router.Group("/api/v1")
	if deps.Verifier != nil {
		v1.Use(AuthMiddleware(deps.Verifier, logger))
	} else {
		logger.Warn("API_JWT_SECRET not set, REST API is unauthenticated")
	}
	stories := &storyHandler{synth: deps.Synth, logger: logger}
	v1.POST("/stories", stories.create)
	return router
}

// NewPrometheus - gin-метрики (gin_requests_total и др.) и /metrics.
// Регистрирует коллекторы в глобальном реестре, поэтому создается один раз на процесс.
func NewPrometheus() *ginprometheus.Prometheus {
	return ginprometheus.NewPrometheus("gin")
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	c.MaxAge = 12 * time.Hour
	return c
}
