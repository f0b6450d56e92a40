package repository

import (
	"context"
	"fmt"

	"storyteller-bot/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	insertStoryQuery = `
		INSERT INTO stories (id, user_id, title, text, moral, questions, request, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	// Удаляет все истории пользователя, кроме $2 самых новых.
	trimStoriesQuery = `
		DELETE FROM stories
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM stories WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)
	`
	listRecentStoriesQuery = `
		SELECT id::text AS id, user_id, title, text, moral, questions, request, source, created_at
		FROM stories
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	deleteUserStoriesQuery = `DELETE FROM stories WHERE user_id = $1`
)

var _ StoryArchive = (*PgStoryArchive)(nil)

// PgStoryArchive - архив историй в PostgreSQL (ARCHIVE_BACKEND=postgres).
type PgStoryArchive struct {
	pool   *pgxpool.Pool
	limit  int
	logger *zap.Logger
}

func NewPgStoryArchive(pool *pgxpool.Pool, logger *zap.Logger) *PgStoryArchive {
	return &PgStoryArchive{pool: pool, limit: models.StoryHistoryLimit, logger: logger.Named("PgStoryArchive")}
}

// Append сохраняет историю и в той же транзакции обрезает архив пользователя до лимита.
func (r *PgStoryArchive) Append(ctx context.Context, rec models.StoryRecord) error {
	log := r.logger.With(zap.Int64("userID", rec.UserID), zap.String("storyID", rec.ID))
	questions := rec.Questions
	if questions == nil {
		questions = []string{}
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertStoryQuery,
			rec.ID, rec.UserID, rec.Title, rec.Text, rec.Moral,
			questions, rec.Request, string(rec.Source), rec.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert story: %w", err)
		}
		tag, err := tx.Exec(ctx, trimStoriesQuery, rec.UserID, r.limit)
		if err != nil {
			return fmt.Errorf("trim archive: %w", err)
		}
		if tag.RowsAffected() > 0 {
			log.Debug("Archive trimmed", zap.Int64("removed", tag.RowsAffected()))
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to append story to archive", zap.Error(err))
		return fmt.Errorf("failed to append story: %w", err)
	}
	return nil
}

func (r *PgStoryArchive) ListRecent(ctx context.Context, userID int64, limit int) ([]models.StoryRecord, error) {
	if limit <= 0 || limit > r.limit {
		limit = r.limit
	}
	var records []models.StoryRecord
	if err := pgxscan.Select(ctx, r.pool, &records, listRecentStoriesQuery, userID, limit); err != nil {
		r.logger.Error("Failed to list stories", zap.Int64("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return records, nil
}

func (r *PgStoryArchive) DeleteByUser(ctx context.Context, userID int64) error {
	tag, err := r.pool.Exec(ctx, deleteUserStoriesQuery, userID)
	if err != nil {
		r.logger.Error("Failed to delete user stories", zap.Int64("userID", userID), zap.Error(err))
		return fmt.Errorf("failed to delete stories: %w", err)
	}
	r.logger.Info("User stories deleted", zap.Int64("userID", userID), zap.Int64("count", tag.RowsAffected()))
	return nil
}
