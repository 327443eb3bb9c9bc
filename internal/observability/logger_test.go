package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/snap2pdf/internal/domain"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "snap2pdf"})

	ctx := ContextWithTraceID(context.Background(), "req-1")
	log.WithContext(ctx).WithWorkflow(domain.WorkflowSplit).Error().
		Err(domain.PageOutOfRange(9, 3)).
		Int("page", 9).
		Msg("split failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "snap2pdf", entry["service"])
	assert.Equal(t, "req-1", entry["trace_id"])
	assert.Equal(t, "split", entry["workflow"])
	assert.Equal(t, "page_out_of_range", entry["error_type"])
	assert.Equal(t, float64(9), entry["page"])
	assert.Equal(t, "split failed", entry["message"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "warn", Output: &buf})

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_ErrWithoutDomainType(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "info", Output: &buf})

	log.Error().Err(errors.New("plain")).Msg("x")
	assert.NotContains(t, buf.String(), "error_type")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().WithOperation("x").Info().Str("a", "b").Msg("discarded")
	})
}
