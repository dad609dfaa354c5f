package logger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/broxiva/subscriptions/pkg/config"
)

func TestNew_RespectsLevel(t *testing.T) {
	l, err := New(&config.Config{Env: config.EnvProd, Log: config.LogConfig{Level: "warn"}})
	require.NoError(t, err)
	require.False(t, l.Desugar().Core().Enabled(-1))
	require.True(t, l.Desugar().Core().Enabled(1))
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(&config.Config{Log: config.LogConfig{Level: "chatty"}})
	require.Error(t, err)
}
