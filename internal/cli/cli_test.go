package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/devfn/internal/app"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
		want *app.Config
	}{
		{
			name: "defaults",
			args: nil,
			want: &app.Config{Dir: ".", Port: app.DefaultPort, LogFormat: "text", LogLevel: "info", PollInterval: 500 * time.Millisecond},
		},
		{
			name: "positional dir",
			args: []string{"-port", "8080", "examples/hello"},
			want: &app.Config{Dir: "examples/hello", Port: 8080, LogFormat: "text", LogLevel: "info", PollInterval: 500 * time.Millisecond},
		},
		{
			name: "all flags",
			args: []string{"-dir", "fn", "-log-format", "JSON", "-log-level", "debug", "-poll-interval", "2s"},
			want: &app.Config{Dir: "fn", Port: app.DefaultPort, LogFormat: "json", LogLevel: "debug", PollInterval: 2 * time.Second},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, exit, err := Parse(tc.args, &bytes.Buffer{})

			require.NoError(t, err)
			assert.False(t, exit)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	testCases := map[string][]string{
		"unknown flag": {"-nope"},
		"bad format":   {"-log-format", "xml"},
		"bad level":    {"-log-level", "loud"},
		"bad port":     {"-port", "-1"},
		"tiny poll":    {"-poll-interval", "1ms"},
		"two dirs":     {"a", "b"},
	}
	for name, args := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, exit, err := Parse(args, &bytes.Buffer{})

			require.Error(t, err)
			assert.False(t, exit)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestParse_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, exit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}
