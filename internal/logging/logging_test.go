package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFileSink(t *testing.T) {
	dir := t.TempDir()

	logger, logPath, err := Setup(Config{
		Level:  "INFO",
		Format: "text",
		LogDir: dir,
		File:   true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, logPath)
	assert.Equal(t, dir, filepath.Dir(logPath))
	assert.True(t, strings.HasPrefix(filepath.Base(logPath), "ragbench_"))

	logger.Info("sink check", slog.String("key", "value"))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sink check")
	assert.Contains(t, string(data), "key=value")
}

func TestSetupJSONFormat(t *testing.T) {
	dir := t.TempDir()

	logger, logPath, err := Setup(Config{
		Level:  "INFO",
		Format: "json",
		LogDir: dir,
		File:   true,
	})
	require.NoError(t, err)

	logger.Info("json check")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"json check"`)
}

func TestSetupConsoleOnly(t *testing.T) {
	logger, logPath, err := Setup(Config{
		Level:   "INFO",
		Format:  "text",
		Console: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.Empty(t, logPath)
}

func TestSetupCreatesLogDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	_, logPath, err := Setup(Config{
		Level:  "INFO",
		Format: "text",
		LogDir: dir,
		File:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(logPath))
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, logPath, err := Setup(Config{
		Level:  "WARNING",
		Format: "text",
		LogDir: dir,
		File:   true,
	})
	require.NoError(t, err)

	logger.Info("below threshold")
	logger.Warn("at threshold")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "below threshold")
	assert.Contains(t, string(data), "at threshold")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLevel("unknown"))
}
