package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/wardlog/internal/transport/telegram"
)

const (
	maxWebhookBody    = 1 << 20 // 1MB
	secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
	limiterResetEvery = time.Hour
)

// limiterSet hands out one rate limiter per client IP.
type limiterSet struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limit:       limit,
		burst:       burst,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// get returns the limiter for ip. The set is dropped hourly so idle
// clients do not accumulate.
func (l *limiterSet) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > limiterResetEvery {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter
}

// handleTelegramWebhook accepts one Telegram update. Once the body decodes,
// the response is 200 whether or not the update carried a usable message,
// so Telegram does not redeliver it.
func (s *Server) handleTelegramWebhook(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()

	if !s.limiters.get(c.RealIP()).Allow() {
		s.logger.Warn(ctx, "webhook rate limit exceeded", zap.String("ip", c.RealIP()))
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	if s.config.WebhookSecret.IsSet() {
		got := req.Header.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.config.WebhookSecret.Value())) != 1 {
			s.logger.Warn(ctx, "webhook secret mismatch", zap.String("ip", c.RealIP()))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid secret token")
		}
	}

	body := http.MaxBytesReader(c.Response(), req.Body, maxWebhookBody)
	upd, err := telegram.DecodeUpdate(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
		}
		s.logger.Warn(ctx, "invalid webhook body", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update")
	}

	if msg, ok := telegram.MessageFromUpdate(upd); ok {
		s.webhook.Accept(ctx, msg)
	}
	return c.NoContent(http.StatusOK)
}
