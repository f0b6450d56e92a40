package repository

import (
	"context"
	"slices"
	"sync"

	"storyteller-bot/internal/models"
)

var (
	_ ProfileRepository = (*MemoryProfileRepository)(nil)
	_ StatsRepository   = (*MemoryStatsRepository)(nil)
	_ StoryArchive      = (*MemoryStoryArchive)(nil)
)

// memoryKV - потокобезопасная map по userID, общая для профилей и статистики.
type memoryKV[V any] struct {
	mu    sync.RWMutex
	items map[int64]V
}

func newMemoryKV[V any]() *memoryKV[V] {
	return &memoryKV[V]{items: make(map[int64]V)}
}

func (m *memoryKV[V]) get(userID int64) (V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[userID]
	if !ok {
		var zero V
		return zero, models.ErrNotFound
	}
	return v, nil
}

func (m *memoryKV[V]) set(userID int64, v V) {
	m.mu.Lock()
	m.items[userID] = v
	m.mu.Unlock()
}

func (m *memoryKV[V]) delete(userID int64) {
	m.mu.Lock()
	delete(m.items, userID)
	m.mu.Unlock()
}

// MemoryProfileRepository - профили в памяти процесса (STORAGE_BACKEND=memory).
type MemoryProfileRepository struct {
	kv *memoryKV[models.UserProfile]
}

func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{kv: newMemoryKV[models.UserProfile]()}
}

func (r *MemoryProfileRepository) Get(_ context.Context, userID int64) (models.UserProfile, error) {
	p, err := r.kv.get(userID)
	if err != nil {
		return p, err
	}
	p.AvoidList = slices.Clone(p.AvoidList)
	return p, nil
}

func (r *MemoryProfileRepository) Save(_ context.Context, userID int64, profile models.UserProfile) error {
	profile.AvoidList = slices.Clone(profile.AvoidList)
	r.kv.set(userID, profile)
	return nil
}

func (r *MemoryProfileRepository) Delete(_ context.Context, userID int64) error {
	r.kv.delete(userID)
	return nil
}

// MemoryStatsRepository - счетчики в памяти процесса.
type MemoryStatsRepository struct {
	kv *memoryKV[models.UserStats]
}

func NewMemoryStatsRepository() *MemoryStatsRepository {
	return &MemoryStatsRepository{kv: newMemoryKV[models.UserStats]()}
}

func (r *MemoryStatsRepository) Get(_ context.Context, userID int64) (models.UserStats, error) {
	return r.kv.get(userID)
}

func (r *MemoryStatsRepository) Save(_ context.Context, userID int64, stats models.UserStats) error {
	r.kv.set(userID, stats)
	return nil
}

func (r *MemoryStatsRepository) Delete(_ context.Context, userID int64) error {
	r.kv.delete(userID)
	return nil
}

// MemoryStoryArchive хранит последние истории в памяти (ARCHIVE_BACKEND=memory).
type MemoryStoryArchive struct {
	mu      sync.Mutex
	limit   int
	stories map[int64][]models.StoryRecord // от старых к новым
}

func NewMemoryStoryArchive() *MemoryStoryArchive {
	return &MemoryStoryArchive{limit: models.StoryHistoryLimit, stories: make(map[int64][]models.StoryRecord)}
}

func (a *MemoryStoryArchive) Append(_ context.Context, rec models.StoryRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec.Questions = slices.Clone(rec.Questions)
	list := append(a.stories[rec.UserID], rec)
	if len(list) > a.limit {
		list = slices.Clone(list[len(list)-a.limit:])
	}
	a.stories[rec.UserID] = list
	return nil
}

// ListRecent возвращает до limit последних историй, новые первыми.
func (a *MemoryStoryArchive) ListRecent(_ context.Context, userID int64, limit int) ([]models.StoryRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	list := a.stories[userID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]models.StoryRecord, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (a *MemoryStoryArchive) DeleteByUser(_ context.Context, userID int64) error {
	a.mu.Lock()
	delete(a.stories, userID)
	a.mu.Unlock()
	return nil
}
