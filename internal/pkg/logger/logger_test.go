package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", "json", "stdout")
	assert.Error(t, err)
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l, err := New("info", "json", path)
	require.NoError(t, err)

	l.Info("document ingested", zap.Int("chunks", 3))
	l.Debug("hidden")
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"message":"document ingested"`)
	assert.Contains(t, string(raw), `"chunks":3`)
	assert.NotContains(t, string(raw), "hidden")
}

func TestOrNop(t *testing.T) {
	custom := zap.NewExample()
	assert.Same(t, custom, OrNop(custom))
	assert.Same(t, Log, OrNop(nil))
}
