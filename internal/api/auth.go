package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storyteller-bot/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const subjectContextKey = "apiSubject"

// Claims - полезная нагрузка токена клиента REST API. Subject обязателен.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTVerifier проверяет HS256 токены клиентов API.
type JWTVerifier struct {
	secret []byte
	logger *zap.Logger
}

func NewJWTVerifier(secret string, logger *zap.Logger) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	return &JWTVerifier{secret: []byte(secret), logger: logger.Named("JWTVerifier")}, nil
}

// VerifyToken проверяет подпись и срок действия и возвращает claims.
func (v *JWTVerifier) VerifyToken(_ context.Context, tokenString string) (*Claims, error) {
	log := v.logger.With(zap.String("tokenSnippet", tokenSnippet(tokenString)))
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		log.Warn("Failed to parse or verify token", zap.Error(err))
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, models.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, models.ErrTokenMalformed
		default:
			return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
		}
	}
	if !token.Valid {
		return nil, models.ErrTokenInvalid
	}
	if claims.Subject == "" {
		log.Warn("Token missing subject")
		return nil, fmt.Errorf("%w: subject missing", models.ErrTokenInvalid)
	}
	return claims, nil
}

// AuthMiddleware требует заголовок "Authorization: Bearer <token>".
func AuthMiddleware(v *JWTVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if header == "" || !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			logger.Warn("Missing or malformed Authorization header", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Missing token"})
			return
		}

		claims, err := v.VerifyToken(c.Request.Context(), token)
		if err != nil {
			msg := "Unauthorized: Invalid token"
			if errors.Is(err, models.ErrTokenExpired) {
				msg = "Unauthorized: Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		c.Set(subjectContextKey, claims.Subject)
		c.Next()
	}
}

func tokenSnippet(tokenString string) string {
	const limit = 15
	if len(tokenString) > limit {
		return tokenString[:limit] + "..."
	}
	return tokenString
}
