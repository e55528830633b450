package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/librarian/pkg/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logging.ParseLevel(tt.in))
		})
	}
}

func TestNewLoggerFromConfigDiscard(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.Output = "discard"
	cfg.Level = "error"
	logger := logging.NewLoggerFromConfig(cfg)
	assert.Equal(t, zerolog.ErrorLevel, logger.GetLevel())
}

func TestWithRunAddsFields(t *testing.T) {
	buf := &bytes.Buffer{}
	base := zerolog.New(buf)
	ctx := logging.WithLogger(context.Background(), &base)
	ctx = logging.WithRun(ctx, "01HRUN", "sweep", "dry-run")

	logging.FromContext(ctx).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "01HRUN", line["run_id"])
	assert.Equal(t, "sweep", line["stage"])
	assert.Equal(t, "dry-run", line["mode"])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	assert.Equal(t, logging.Default(), logging.FromContext(nil))
	assert.Equal(t, logging.Default(), logging.FromContext(context.Background()))
}

func TestTestLoggerRecords(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithRun(logging.WithLogger(context.Background(), tl.Logger), "01HRUN", "junk", "apply")
	logging.FromContext(ctx).Warn().Str("document", "New Page").Msg("kept non-empty placeholder")

	assert.True(t, tl.Contains("kept non-empty placeholder"))
	assert.True(t, tl.Contains(`"stage":"junk"`))
}

func TestSetDefault(t *testing.T) {
	original := *logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	buf := &bytes.Buffer{}
	logging.SetDefault(zerolog.New(buf))
	logging.FromContext(context.Background()).Info().Msg("via default")
	assert.Contains(t, buf.String(), "via default")
}
