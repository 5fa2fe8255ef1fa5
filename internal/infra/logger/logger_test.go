package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: "INFO", want: zerolog.InfoLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "verbose", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestShortCaller(t *testing.T) {
	file := filepath.Join("root", "internal", "app", "player", "player.go")
	assert.Equal(t, filepath.Join("player", "player.go")+":42", shortCaller(0, file, 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, false, zerolog.InfoLevel)
	l.Info().Msg("player: created")
	assert.Contains(t, buf.String(), `"message":"player: created"`)
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, Init(Config{Output: "file", File: path, Level: "info"}))
	t.Cleanup(func() { _ = Init(Config{Output: "stderr"}) })

	_, err := os.Stat(path)
	assert.NoError(t, err)

	assert.Error(t, Init(Config{Output: "file"}))
}
