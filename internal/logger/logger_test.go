package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreStd(t *testing.T) {
	t.Helper()
	std := logrus.StandardLogger()
	out, formatter, level := std.Out, std.Formatter, std.GetLevel()
	t.Cleanup(func() {
		std.SetOutput(out)
		std.SetFormatter(formatter)
		std.SetLevel(level)
	})
}

func TestSetupProductionWritesJSON(t *testing.T) {
	restoreStd(t)
	var buf bytes.Buffer
	log := Setup("debug", true, &buf)
	log.WithField("event_id", 7).Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "event-seat-hold", line["service"])
	assert.Equal(t, float64(7), line["event_id"])
	assert.Equal(t, "debug", line["level"])
}

func TestSetupUnknownLevel(t *testing.T) {
	restoreStd(t)
	var buf bytes.Buffer
	log := Setup("chatty", false, &buf)
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
	assert.Contains(t, buf.String(), "unknown log level")

	buf.Reset()
	log.Debug("hidden")
	assert.Empty(t, buf.String())
}
