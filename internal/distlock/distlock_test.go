package distlock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scheduler/internal/distlock"
)

func TestNew_InvalidURLFails(t *testing.T) {
	_, err := distlock.New("not a valid redis url://", nil)
	require.Error(t, err)
}

func TestNew_ValidURLSucceeds(t *testing.T) {
	l, err := distlock.New("redis://localhost:6379/0", nil)
	require.NoError(t, err)
	require.NotNil(t, l)
}

// TestPing_UnreachableRedisFails does not require a running Redis; a
// connection to a closed local port fails fast.
func TestPing_UnreachableRedisFails(t *testing.T) {
	l, err := distlock.New("redis://127.0.0.1:1/0", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = l.Ping(ctx)
	assert.Error(t, err)
}
