package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "MarketPulse/pkg/logger"
)

// RequestLogging logs one line per request at debug level; 5xx responses at warn.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []applogger.Field{
				applogger.String("method", c.Request().Method),
				applogger.String("route", routeOf(c)),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("duration_ms", time.Since(start)),
			}
			if c.Response().Status >= 500 {
				l.Warn("request", fields...)
			} else {
				l.Debug("request", fields...)
			}
			return nil
		}
	}
}

// routeOf returns the registered route template, falling back to the raw path.
func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return c.Request().URL.Path
}
