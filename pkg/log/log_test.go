package log

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInitMapsLevels(t *testing.T) {
	cases := map[Level]zerolog.Level{
		TraceLevel: zerolog.TraceLevel,
		DebugLevel: zerolog.DebugLevel,
		InfoLevel:  zerolog.InfoLevel,
		WarnLevel:  zerolog.WarnLevel,
		ErrorLevel: zerolog.ErrorLevel,
		OffLevel:   zerolog.Disabled,
	}
	for level, want := range cases {
		assert.Equal(t, want, level.zerologLevel(), "level %q", level)
	}
}

func TestInitWritesJSONWhenConfigured(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})
	Logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"message":"hello"`)
	assert.Contains(t, buf.String(), `"service":"stratakv-server"`)
}

func TestWithStoreIDTagsStoreID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithStoreID(7).Info().Msg("store event")
	assert.Contains(t, buf.String(), `"store_id":7`)
}
