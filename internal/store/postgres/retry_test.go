package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"pasarhub/backend/internal/store"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"deadlock", fmt.Errorf("line 2: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), true},
		{"inventory row created concurrently", fmt.Errorf("line 1: %w", fmt.Errorf("%w: inventory row was created concurrently", errRowRace)), true},
		{"other unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "orders_number_key"}, false},
		{"insufficient stock", store.ErrInsufficientStock, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := isRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: isRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
