package repository

import (
	"context"

	"storyteller-bot/internal/models"
)

// ProfileRepository хранит настройки пользователя. Get возвращает models.ErrNotFound,
// если профиль еще не создавался.
type ProfileRepository interface {
	Get(ctx context.Context, userID int64) (models.UserProfile, error)
	Save(ctx context.Context, userID int64, profile models.UserProfile) error
	Delete(ctx context.Context, userID int64) error
}

// StatsRepository хранит счетчики пользователя. Get возвращает models.ErrNotFound для нового пользователя.
// Сброс дневного счетчика выполняет вызывающая сторона (quota.Gate), репозиторий хранит данные как есть.
type StatsRepository interface {
	Get(ctx context.Context, userID int64) (models.UserStats, error)
	Save(ctx context.Context, userID int64, stats models.UserStats) error
	Delete(ctx context.Context, userID int64) error
}

// StoryArchive - архив выданных историй. Append хранит не больше models.StoryHistoryLimit
// последних записей на пользователя, более старые удаляются.
type StoryArchive interface {
	Append(ctx context.Context, rec models.StoryRecord) error
	ListRecent(ctx context.Context, userID int64, limit int) ([]models.StoryRecord, error)
	DeleteByUser(ctx context.Context, userID int64) error
}
