package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medcore/hms/internal/platform/auth"
)

// quietPaths are polled by probes and scrapers; successful hits log at debug.
var quietPaths = []string{"/health", "/metrics"}

func isQuiet(path string) bool {
	for _, p := range quietPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Logger writes one structured line per request with the acting user and the
// matched route. 5xx and unclassified errors log at error, 4xx at warn.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			status := c.Response().Status
			level := zerolog.InfoLevel
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
				level = zerolog.ErrorLevel
				if status < http.StatusInternalServerError {
					level = zerolog.WarnLevel
				}
			} else if isQuiet(req.URL.Path) {
				level = zerolog.DebugLevel
			}

			rid, _ := c.Get("request_id").(string)
			ctx := req.Context()
			evt := logger.WithLevel(level).
				Str("request_id", rid).
				Str("method", req.Method).
				Str("route", c.Path()).
				Str("path", req.URL.Path).
				Int("status", status).
				Int64("bytes_out", c.Response().Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())
			if uid := auth.UserIDFromContext(ctx); uid != "" {
				evt = evt.Str("user_id", uid).Strs("roles", auth.RolesFromContext(ctx))
			}
			if err != nil {
				evt = evt.Err(err)
			}
			evt.Msg("request")

			return err
		}
	}
}
