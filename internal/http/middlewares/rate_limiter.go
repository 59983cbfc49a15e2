package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const maxLimiterKeys = 10000

// RateLimiter allows limit requests per window for each owner, falling back
// to the client IP for requests without an owner.
func RateLimiter(limit int, window time.Duration) echo.MiddlewareFunc {
	return rateLimiter(limit, window, maxLimiterKeys)
}

// rateLimiter keeps at most maxKeys limiters. A limiter idle for a whole
// window has refilled, so dropping it loses nothing.
func rateLimiter(limit int, window time.Duration, maxKeys int) echo.MiddlewareFunc {
	var mu sync.Mutex
	limiters := expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, window)

	every := rate.Every(window / time.Duration(limit))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(OwnerHeader)
			if key == "" {
				key = c.RealIP()
			}

			mu.Lock()
			l, ok := limiters.Get(key)
			if !ok {
				l = rate.NewLimiter(every, limit)
			}
			limiters.Add(key, l)
			mu.Unlock()

			if !l.Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}
