package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{" WARN ", logrus.WarnLevel},
		{"", logrus.InfoLevel},
		{"loud", logrus.InfoLevel},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Setup(tc.in, "text").GetLevel(), tc.in)
	}
}

func TestSetupTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := SetupTo(&buf, "info", "json")
	log.WithField("run_id", "abc").Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "abc", entry["run_id"])
}

func TestSetupTo_Text(t *testing.T) {
	var buf bytes.Buffer
	SetupTo(&buf, "info", "text").Debug("hidden")
	assert.Empty(t, buf.String())
}
