package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategories_MatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("subscribe: %w", Conflict("user already has an active subscription to %q", "Vendor Pro"))

	require.True(t, errors.Is(err, ErrConflict))
	require.False(t, errors.Is(err, ErrBadRequest))
	require.Equal(t, `subscribe: user already has an active subscription to "Vendor Pro"`, err.Error())
}

func TestNotFound_MessageIsVerbatim(t *testing.T) {
	err := NotFound("plan %s not found", "p-1")
	require.ErrorIs(t, err, ErrNotFound)
	require.EqualError(t, err, "plan p-1 not found")
}
