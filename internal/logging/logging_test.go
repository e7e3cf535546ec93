package logging

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_StoresLoggerInContext(t *testing.T) {
	ctx, logger := NewLogger(context.Background(), "Server", "test", "debug", false)

	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	assert.Equal(t, logger.GetLevel(), GetLoggerFromContext(ctx).GetLevel())
}

func TestNewLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	_, logger := NewLogger(context.Background(), "server", "test", "loud", false)

	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestGetLoggerFromContext_FallsBackToGlobal(t *testing.T) {
	logger := GetLoggerFromContext(context.Background())

	assert.NotNil(t, logger)
}
