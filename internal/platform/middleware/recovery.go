package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medcore/hms/internal/platform/auth"
)

const panicStackSize = 8 << 10

// PanicHook is told the route pattern of every recovered panic.
type PanicHook func(route string)

// Recovery turns a handler panic into a 500 whose body carries the request id.
// http.ErrAbortHandler is re-panicked for net/http to handle.
func Recovery(logger zerolog.Logger, hooks ...PanicHook) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				stack := make([]byte, panicStackSize)
				stack = stack[:runtime.Stack(stack, false)]
				rid, _ := c.Get("request_id").(string)
				route := c.Path()

				logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", route).
					Str("user_id", auth.UserIDFromContext(c.Request().Context())).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", stack).
					Msg("panic recovered")

				for _, hook := range hooks {
					hook(route)
				}
				err = echo.NewHTTPError(http.StatusInternalServerError, map[string]string{
					"error":      "internal server error",
					"request_id": rid,
				})
			}()
			return next(c)
		}
	}
}
