package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{in: "", want: zerolog.WarnLevel},
		{in: "debug", want: zerolog.DebugLevel},
		{in: "INFO", want: zerolog.InfoLevel},
		{in: "trace", want: zerolog.TraceLevel},
		{in: "shout", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_JSONForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("info", &buf)
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("patch", "p1.patch").Msg("applied")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "p1.patch", entry["patch"])
	assert.Equal(t, "applied", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", &buf)
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), logger)
	zerolog.Ctx(ctx).Debug().Msg("from context")
	assert.Contains(t, buf.String(), "from context")
}
