package runlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocal_ExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	release, err := l.Acquire(ctx, "rollforward", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "rollforward", time.Minute)
	require.ErrorIs(t, err, ErrHeld)

	other, err := l.Acquire(ctx, "snapshot", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	again, err := l.Acquire(ctx, "rollforward", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestConnect_RejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "mysql://nope")
	require.ErrorContains(t, err, "parse redis url")
}
