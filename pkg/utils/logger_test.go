package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, err := NewLogger(LoggerConfig{Level: "info", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Reconciliation finished", zap.String("invoice_id", "INV-1"))
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Reconciliation finished", entry["msg"])
	assert.Equal(t, "INV-1", entry["invoice_id"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: "stderr", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewCLILogger(t *testing.T) {
	quiet, err := NewCLILogger(false)
	require.NoError(t, err)
	assert.False(t, quiet.Core().Enabled(zap.InfoLevel))
	assert.True(t, quiet.Core().Enabled(zap.WarnLevel))

	verbose, err := NewCLILogger(true)
	require.NoError(t, err)
	assert.True(t, verbose.Core().Enabled(zap.DebugLevel))
}
