package models

import (
	"errors"
	"fmt"
	"time"
)

// Общие ошибки приложения
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input data")

	// Ошибки генерации
	ErrAIGenerationFailed = errors.New("ai text generation failed")
	ErrMalformedResponse  = errors.New("malformed ai response")

	// Ошибки диалога
	ErrNoActiveSession = errors.New("no active conversation session")
	ErrQuotaExceeded   = errors.New("daily story quota exceeded")

	// Ошибки авторизации API
	ErrUnauthorized   = errors.New("unauthorized")
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")
)

// QuotaExceededError описывает исчерпанный дневной лимит.
// ResetIn - сколько осталось до полуночи в опорной таймзоне.
type QuotaExceededError struct {
	Limit   int
	Used    int
	ResetIn time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: %d/%d, resets in %s", ErrQuotaExceeded, e.Used, e.Limit, e.ResetIn.Round(time.Minute))
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}
