package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

func TestHTTP_StatusMapping(t *testing.T) {
	errMissing := NotFound("patient")
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", errMissing, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", errMissing), http.StatusNotFound},
		{"conflict", Conflict("slot taken"), http.StatusConflict},
		{"invalid", Invalid("name is required"), http.StatusBadRequest},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
		{"passthrough", echo.NewHTTPError(http.StatusTeapot), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he, ok := HTTP(tt.err).(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected *echo.HTTPError")
			}
			if he.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, he.Code)
			}
		})
	}
}

func TestHTTP_HidesInternalDetail(t *testing.T) {
	he := HTTP(errors.New("pq: password authentication failed")).(*echo.HTTPError)
	if he.Message != "internal server error" {
		t.Errorf("expected generic message, got %v", he.Message)
	}
}

func TestFromRow(t *testing.T) {
	errMissing := NotFound("asset")
	if got := FromRow(pgx.ErrNoRows, errMissing, "get asset"); got != errMissing {
		t.Errorf("expected sentinel, got %v", got)
	}
	if got := FromRow(nil, errMissing, "get asset"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	got := FromRow(errors.New("boom"), errMissing, "get asset")
	if got == nil || got.Error() != "get asset: boom" {
		t.Errorf("unexpected wrap: %v", got)
	}
}

func TestMessages(t *testing.T) {
	if NotFound("lab request").Error() != "lab request not found" {
		t.Errorf("unexpected: %s", NotFound("lab request"))
	}
	if Invalid("bad %s", "gender").Error() != "invalid input: bad gender" {
		t.Errorf("unexpected: %s", Invalid("bad %s", "gender"))
	}
}
