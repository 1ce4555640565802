package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/server/handlers"
)

// FixedWindow ограничивает число запросов на ключ (IP клиента) в окне window.
// Счетчик ключа обнуляется, когда его окно истекло.
type FixedWindow struct {
	now       func() time.Time
	windows   map[string]*window
	nextSweep time.Time
	limit     int
	period    time.Duration
	mu        sync.Mutex
}

type window struct {
	start time.Time
	count int
}

// NewFixedWindow creates a limiter allowing limit requests per period for every key.
func NewFixedWindow(limit int, period time.Duration) *FixedWindow {
	return &FixedWindow{
		now:     time.Now,
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
	}
}

// Allow учитывает запрос; при отказе возвращает время до конца окна
func (l *FixedWindow) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows[key] = w
	}

	if w.count >= l.limit {
		return false, w.start.Add(l.period).Sub(now)
	}
	w.count++
	return true, 0
}

// sweep удаляет истекшие окна не чаще раза за период. Вызывать под mu.
func (l *FixedWindow) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.period {
			delete(l.windows, key)
		}
	}
	l.nextSweep = now.Add(l.period)
}

// RateRule limits requests whose path starts with Prefix.
// An empty Prefix matches every path.
type RateRule struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// RateLimit ограничивает частоту запросов по IP клиента. Запрос проверяется
// первым подходящим правилом; правило с пустым префиксом ставьте последним.
func RateLimit(logger *slog.Logger, rules ...RateRule) func(http.Handler) http.Handler {
	limiters := make([]*FixedWindow, len(rules))
	for i, rule := range rules {
		limiters[i] = NewFixedWindow(rule.Limit, rule.Window)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for i, rule := range rules {
				if !strings.HasPrefix(r.URL.Path, rule.Prefix) {
					continue
				}

				ip := clientIP(r)
				ok, retryAfter := limiters[i].Allow(ip)
				if !ok {
					logger.Warn("Rate limit exceeded",
						"ip", ip,
						"method", r.Method,
						"path", r.URL.Path,
						"rule", rule.Prefix,
					)

					seconds := int(math.Ceil(retryAfter.Seconds()))
					w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
					handlers.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
					return
				}
				break
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP извлекает IP клиента с учетом X-Forwarded-For и X-Real-IP
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// RemoteAddr содержит порт, который меняется между соединениями
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
