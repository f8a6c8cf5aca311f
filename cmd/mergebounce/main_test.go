package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(input)
	app.Writer = &out
	app.ErrWriter = io.Discard

	err := app.Run(append([]string{"mergebounce"}, args...))

	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mergebounce.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestApp(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		args    []string
		input   string
		want    string
		wantErr string
	}{
		{
			name: "version",
			args: []string{"version"},
			want: "mergebounce dev\n",
		},
		{
			name:  "stream with flags",
			args:  []string{"--wait", "1h", "--concat", "stream"},
			input: "{\"ids\":[1]}\n{\"ids\":[2]}\n",
			want:  "{\"ids\":[1,2]}\n",
		},
		{
			name:   "stream with config file",
			config: "wait_ms = 3600000\ndedupe_arrays = true\n",
			args:   []string{"stream"},
			input:  "[\"a\"]\n[\"a\",\"b\"]\n",
			want:   "[\"a\",\"b\"]\n",
		},
		{
			name:   "flags override config file",
			config: "wait_ms = 3600000\nconcat_arrays = true\n",
			args:   []string{"--concat=false", "stream"},
			input:  "[1,2]\n[3]\n",
			want:   "[3,2]\n",
		},
		{
			name:    "invalid config file",
			config:  "wait_ms = -1\n",
			args:    []string{"stream"},
			wantErr: "WaitMs",
		},
		{
			name:    "sub-millisecond wait is rejected",
			args:    []string{"--wait", "500us", "stream"},
			wantErr: "--wait: 500µs is not a whole number of milliseconds",
		},
		{
			name:    "sub-millisecond max wait is rejected",
			args:    []string{"--wait", "1ms", "--max-wait", "1.5ms", "stream"},
			wantErr: "--max-wait: 1.5ms is not a whole number of milliseconds",
		},
		{
			name:  "whole millisecond wait is accepted",
			args:  []string{"--wait", "2ms", "stream"},
			input: "{\"a\":1}\n",
			want:  "{\"a\":1}\n",
		},
		{
			name:    "missing explicit config file",
			args:    []string{"--config", "does-not-exist.toml", "stream"},
			wantErr: "read config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args
			if tt.config != "" {
				args = append([]string{"--config", writeConfig(t, tt.config)}, args...)
			}

			got, err := runApp(t, tt.input, args...)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
