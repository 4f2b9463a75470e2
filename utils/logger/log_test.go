package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationAndFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, SetFormat(FormatJSON))
	defer func() {
		_ = SetFormat(FormatText)
		SetLevel(logrus.InfoLevel)
	}()

	Infof("hello %d", 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello 1", entry["msg"])
	assert.Contains(t, entry["location"], "log_test.go")
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetLevel(logrus.InfoLevel)

	require.NoError(t, SetLevelString("warn"))
	assert.Equal(t, logrus.WarnLevel, GetLevel())

	Info("hidden")
	assert.Zero(t, buf.Len())
	Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	assert.Error(t, SetLevelString("loud"))
	assert.Error(t, SetFormat("xml"))
}
