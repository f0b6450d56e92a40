package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedUsers - после этого порога лимитеры с полным запасом токенов удаляются.
const maxTrackedUsers = 10000

// userLimiter - token bucket на пользователя.
type userLimiter struct {
	mu     sync.Mutex
	users  map[int64]*rate.Limiter
	every  rate.Limit
	burst  int
	now    func() time.Time
	active bool
}

// newUserLimiter: perMinute <= 0 отключает ограничение.
func newUserLimiter(perMinute int) *userLimiter {
	l := &userLimiter{users: make(map[int64]*rate.Limiter), now: time.Now}
	if perMinute > 0 {
		l.active = true
		l.every = rate.Every(time.Minute / time.Duration(perMinute))
		l.burst = max(1, perMinute/3)
	}
	return l
}

func (l *userLimiter) allow(userID int64) bool {
	if !l.active {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	lim, ok := l.users[userID]
	if !ok {
		if len(l.users) >= maxTrackedUsers {
			l.sweep(now)
		}
		lim = rate.NewLimiter(l.every, l.burst)
		l.users[userID] = lim
	}
	return lim.AllowN(now, 1)
}

func (l *userLimiter) sweep(now time.Time) {
	for id, lim := range l.users {
		if lim.TokensAt(now) >= float64(l.burst) {
			delete(l.users, id)
		}
	}
}
