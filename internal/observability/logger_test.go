// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/cypherguard/internal/config"
)

// lockedBuffer is a goroutine-safe sink for captured log output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func initWithBuffer(t *testing.T, cfg config.LoggerConfig) *lockedBuffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	buf := &lockedBuffer{}
	Initialize(cfg, zapcore.AddSync(buf))
	return buf
}

func TestInitialize(t *testing.T) {
	t.Run("console logger colors the level", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		})
		GetLogger().Named("executor").Info("query finished")
		Sync()

		out := buf.String()
		assert.Contains(t, out, ansiColors["green"]+"INFO"+colorReset)
		assert.Contains(t, out, "TestService.executor.")
		assert.Contains(t, out, "query finished")
	})

	t.Run("json logger emits structured fields", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"})
		GetLogger().Warn("schema refresh failed", zap.String("mode", "refresh"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(buf.String()), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "schema refresh failed", entry["msg"])
		assert.Equal(t, "refresh", entry["mode"])
	})

	t.Run("level filter applies", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "warn", Format: "json"})
		GetLogger().Info("hidden")
		GetLogger().Error("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "loud", Format: "json"})
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("log file receives json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cypherguard.log")
		initWithBuffer(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1})
		GetLogger().Error("written to file")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"written to file"`)
	})

	t.Run("only the first initialization counts", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "info", ServiceName: "First"})
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&lockedBuffer{}))
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		assert.True(t, strings.Contains(buf.String(), "First"))
		assert.False(t, strings.Contains(buf.String(), "Second"))
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("global logger after initialization", func(t *testing.T) {
		initWithBuffer(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
