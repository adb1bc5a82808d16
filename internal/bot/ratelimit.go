package bot

import (
	"golang.org/x/time/rate"
	"sync"
	"time"
)

// RateLimiter ограничивает частоту команд для каждого пользователя,
// отдельно по каждой команде. Один токен на период: первая команда проходит сразу.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limits   map[string]time.Duration
	fallback time.Duration
	exempt   func(userID string) bool
	now      func() time.Time
}

func NewRateLimiter(purchaseCooldown time.Duration, exempt func(userID string) bool) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limits: map[string]time.Duration{
			"purchase":         purchaseCooldown,
			"support":          30 * time.Second,
			"daftar-affiliate": 10 * time.Second,
			"myorders":         5 * time.Second,
			"checkorder":       5 * time.Second,
			"leaderboard":      5 * time.Second,
		},
		fallback: 2 * time.Second,
		exempt:   exempt,
		now:      time.Now,
	}
}

// IsLimited возвращает true, если пользователь вызывает команду слишком часто.
// Админы не лимитируются.
func (r *RateLimiter) IsLimited(userID, cmd string) bool {
	if r.exempt != nil && r.exempt(userID) {
		return false
	}
	limit, ok := r.limits[cmd]
	if !ok {
		limit = r.fallback
	}
	if limit <= 0 {
		return false
	}
	key := userID + ":" + cmd
	r.mu.Lock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(limit), 1)
		r.limiters[key] = l
	}
	r.mu.Unlock()
	return !l.AllowN(r.now(), 1)
}

// Prune удаляет лимитеры, которые уже полностью восстановились
func (r *RateLimiter) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for k, l := range r.limiters {
		if l.TokensAt(now) >= 1 {
			delete(r.limiters, k)
			n++
		}
	}
	return n
}
