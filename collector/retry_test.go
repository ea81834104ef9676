package collector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryablePGError(t *testing.T) {
	cases := []struct {
		code      string
		retryable bool
	}{
		{"40001", true},  // serialization_failure
		{"40P01", true},  // deadlock_detected
		{"55P03", false}, // lock_not_available, claims skip locked rows instead
		{"23505", false}, // unique_violation
		{"42P01", false}, // undefined_table
	}
	for _, tc := range cases {
		err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: tc.code})
		assert.Equal(t, tc.retryable, isRetryablePGError(err), "code %s", tc.code)
	}

	assert.False(t, isRetryablePGError(fmt.Errorf("plain error")))
	assert.False(t, isRetryablePGError(nil))
}

func TestSleepWithContext(t *testing.T) {
	// Zero and negative durations return immediately.
	assert.NoError(t, sleepWithContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sleepWithContext(ctx, time.Minute))
}
