package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/region23/desco-balance-bot/pkg/metrics"
)

type visitor struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter ограничивает частоту запросов по ключу (IP адресу)
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	logger   *zap.Logger

	cleanupInterval time.Duration
	idleTTL         time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

// NewRateLimiter создает rate limiter: requests запросов за duration на ключ
func NewRateLimiter(requests int, duration time.Duration, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		visitors:        make(map[string]*visitor),
		limit:           rate.Limit(float64(requests) / duration.Seconds()),
		burst:           requests,
		logger:          logger,
		cleanupInterval: 5 * time.Minute,
		idleTTL:         10 * time.Minute,
		done:            make(chan struct{}),
	}

	go rl.cleanupRoutine()

	return rl
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastAccess = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// cleanupRoutine периодически удаляет неиспользуемые limiters
func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-rl.idleTTL))
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var cleaned int
	for key, v := range rl.visitors {
		if v.lastAccess.Before(cutoff) {
			delete(rl.visitors, key)
			cleaned++
		}
	}

	if cleaned > 0 {
		rl.logger.Debug("Cleaned up rate limiters",
			zap.Int("cleaned_count", cleaned),
			zap.Int("remaining_count", len(rl.visitors)))
	}
}

// Close останавливает cleanup routine
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// RateLimit создает HTTP middleware, ограничивающий запросы по IP
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getRealIP(r)

			if !limiter.Allow(key) {
				limiter.logger.Warn("Rate limit exceeded",
					zap.String("ip", key),
					zap.String("path", r.URL.Path),
					zap.String("user_agent", r.UserAgent()))
				metrics.RecordError("http", "rate_limited")

				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getRealIP извлекает реальный IP адрес из запроса
func getRealIP(r *http.Request) string {
	headers := []string{
		"CF-Connecting-IP", // Cloudflare
		"X-Forwarded-For",
		"X-Real-IP", // Nginx
	}

	for _, header := range headers {
		ip := r.Header.Get(header)
		if ip == "" {
			continue
		}
		// X-Forwarded-For может содержать несколько IP через запятую
		if first, _, ok := strings.Cut(ip, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(ip)
	}

	return r.RemoteAddr
}
