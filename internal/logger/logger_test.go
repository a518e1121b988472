package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepguard/stepguard/internal/config"
)

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		level string
		want  hclog.Level
	}{
		{name: "Default", want: hclog.Info},
		{name: "From config", level: "debug", want: hclog.Debug},
		{name: "Env wins", env: "error", level: "debug", want: hclog.Error},
		{name: "Unknown falls back", level: "loud", want: hclog.Info},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(LogLevelEnv, tc.env)
			var buf bytes.Buffer
			cfg := &config.Config{Logger: config.Logger{Level: tc.level}}
			assert.Equal(t, tc.want, determineLogLevel(cfg, &buf))
		})
	}
}

func TestDetermineLogLevelNilConfig(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	assert.Equal(t, hclog.Info, determineLogLevel(nil, &bytes.Buffer{}))
}

func TestNewLoggerJSON(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	yes := true
	cfg := &config.Config{Logger: config.Logger{Level: "info", JSONFormat: &yes}}

	var buf bytes.Buffer
	log := newLogger(cfg, "core-analyse", &buf)
	log.Debug("hidden")
	log.Info("workflow analysed", "steps", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "workflow analysed", entry["@message"])
	assert.Equal(t, "core-analyse", entry["@module"])
	assert.Equal(t, float64(3), entry["steps"])
}
