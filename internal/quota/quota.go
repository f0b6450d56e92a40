package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyteller-bot/internal/models"
	"storyteller-bot/internal/repository"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Gate - дневной лимит историй. День отсчитывается в опорной таймзоне,
// счетчик дня обнуляется при первом обращении в новый день.
type Gate struct {
	stats  repository.StatsRepository
	limit  int
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// Option настраивает Gate.
type Option func(*Gate)

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func NewGate(stats repository.StatsRepository, limit int, loc *time.Location, logger *zap.Logger, opts ...Option) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	g := &Gate{stats: stats, limit: limit, loc: loc, now: time.Now, logger: logger.Named("QuotaGate")}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Limit() int { return g.limit }

func (g *Gate) Location() *time.Location { return g.loc }

// Now - текущее время в опорной таймзоне.
func (g *Gate) Now() time.Time { return g.now().In(g.loc) }

// ResetIn - время до ближайшей полуночи в опорной таймзоне.
func (g *Gate) ResetIn() time.Duration {
	n := g.Now()
	next := time.Date(n.Year(), n.Month(), n.Day()+1, 0, 0, 0, 0, g.loc)
	return next.Sub(n)
}

// Stats возвращает счетчики пользователя, создавая их при первом обращении
// и обнуляя дневной счетчик, если сохраненная дата не совпадает с сегодняшней.
func (g *Gate) Stats(ctx context.Context, userID int64) (models.UserStats, error) {
	today := g.Now().Format(dateLayout)
	st, err := g.stats.Get(ctx, userID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		st = models.UserStats{TodayDate: today}
	case err != nil:
		return st, fmt.Errorf("failed to load stats: %w", err)
	case st.TodayDate == today:
		return st, nil
	default:
		g.logger.Debug("New day, resetting daily counter",
			zap.Int64("userID", userID), zap.String("storedDate", st.TodayDate), zap.String("today", today))
		st.TodayDate = today
		st.TodayStories = 0
	}
	if err := g.stats.Save(ctx, userID, st); err != nil {
		return st, fmt.Errorf("failed to save stats: %w", err)
	}
	return st, nil
}

// Check возвращает *models.QuotaExceededError, если лимит на сегодня исчерпан.
// Счетчики не меняются.
func (g *Gate) Check(ctx context.Context, userID int64) error {
	st, err := g.Stats(ctx, userID)
	if err != nil {
		return err
	}
	if st.TodayStories >= g.limit {
		return &models.QuotaExceededError{Limit: g.limit, Used: st.TodayStories, ResetIn: g.ResetIn()}
	}
	return nil
}

// RecordStory учитывает выданную историю.
func (g *Gate) RecordStory(ctx context.Context, userID int64, title string) (models.UserStats, error) {
	st, err := g.Stats(ctx, userID)
	if err != nil {
		return st, err
	}
	st.TodayStories++
	st.StoriesTotal++
	st.LastStoryAt = g.Now()
	st.LastStoryTitle = title
	if err := g.stats.Save(ctx, userID, st); err != nil {
		return st, fmt.Errorf("failed to save stats: %w", err)
	}
	return st, nil
}

// RecordMath учитывает выданный лист с примерами.
func (g *Gate) RecordMath(ctx context.Context, userID int64) error {
	st, err := g.Stats(ctx, userID)
	if err != nil {
		return err
	}
	st.MathTotal++
	if err := g.stats.Save(ctx, userID, st); err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// Forget удаляет счетчики пользователя.
func (g *Gate) Forget(ctx context.Context, userID int64) error {
	return g.stats.Delete(ctx, userID)
}

// Message - текст для пользователя при исчерпанном лимите.
func Message(e *models.QuotaExceededError) string {
	total := int(e.ResetIn.Truncate(time.Minute) / time.Minute)
	return fmt.Sprintf("Today's story limit is used up (%d/day).\nA new day starts in %d h %d min.",
		e.Limit, total/60, total%60)
}
