package mylgcli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/tj/assert"
)

func TestLogger(t *testing.T) {
	defer func() { CommonOpts.LogLevel = "" }()
	service := Service{Name: "presence-ws", Version: "abc123"}

	t.Run("fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(&buf, service)
		logger.Info().Str("connection_id", "c1").Msg("hello")

		var line map[string]interface{}
		assert.Nil(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "presence-ws", line["service"])
		assert.Equal(t, "abc123", line["version"])
		assert.Equal(t, "c1", line["connection_id"])
		assert.Contains(t, line, "time")
	})

	t.Run("level", func(t *testing.T) {
		CommonOpts.LogLevel = "warn"
		var buf bytes.Buffer
		logger := newLogger(&buf, service)
		logger.Info().Msg("dropped")
		assert.Equal(t, 0, buf.Len())
		logger.Warn().Msg("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("bad level falls back to info", func(t *testing.T) {
		CommonOpts.LogLevel = "loud"
		var buf bytes.Buffer
		logger := newLogger(&buf, service)
		logger.Debug().Msg("dropped")
		logger.Info().Msg("kept")
		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})
}
