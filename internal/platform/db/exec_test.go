package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestExpectRows(t *testing.T) {
	errMissing := errors.New("nurse not found")

	if err := ExpectRows(pgconn.NewCommandTag("UPDATE 1"), nil, errMissing, "update nurse"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := ExpectRows(pgconn.NewCommandTag("DELETE 0"), nil, errMissing, "delete nurse"); err != errMissing {
		t.Errorf("expected not found sentinel, got %v", err)
	}
	err := ExpectRows(pgconn.CommandTag{}, errors.New("boom"), errMissing, "delete nurse")
	if err == nil || err.Error() != "delete nurse: boom" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_doctor_slot"}
	wrapped := fmt.Errorf("insert appointment: %w", dup)

	tests := []struct {
		name        string
		err         error
		constraints []string
		want        bool
	}{
		{"any unique", dup, nil, true},
		{"wrapped", wrapped, nil, true},
		{"named constraint", dup, []string{"assets_tag_key", "uq_appointments_doctor_slot"}, true},
		{"other constraint", dup, []string{"assets_tag_key"}, false},
		{"foreign key", &pgconn.PgError{Code: "23503"}, nil, false},
		{"plain error", errors.New("boom"), nil, false},
		{"nil", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err, tt.constraints...); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
