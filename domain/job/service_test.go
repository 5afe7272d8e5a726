package job

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		keyPath string
		want    string
	}{
		{
			name:    "empty path returns whole input",
			input:   `{"a":1}`,
			keyPath: "",
			want:    `{"a":1}`,
		},
		{
			name:    "top level key",
			input:   `{"id":"abc"}`,
			keyPath: "id",
			want:    `"abc"`,
		},
		{
			name:    "nested path",
			input:   `{"input":{"id":"abc"}}`,
			keyPath: "input.id",
			want:    `"abc"`,
		},
		{
			name:    "missing path",
			input:   `{"input":{}}`,
			keyPath: "input.id",
			want:    "",
		},
		{
			name:    "non object input",
			input:   `"just a string"`,
			keyPath: "id",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractPath(json.RawMessage(tt.input), tt.keyPath)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeCacheKey_DeterministicAndDistinct(t *testing.T) {
	a := computeCacheKey("search", json.RawMessage(`{"id":"1"}`), "id")
	b := computeCacheKey("search", json.RawMessage(`{"id":"1"}`), "id")
	c := computeCacheKey("search", json.RawMessage(`{"id":"2"}`), "id")
	d := computeCacheKey("other", json.RawMessage(`{"id":"1"}`), "id")

	assert.Equal(t, a, b, "same tool+value must hash identically")
	assert.NotEqual(t, a, c, "different extracted value must hash differently")
	assert.NotEqual(t, a, d, "different tool name must hash differently")
}

func TestJob_IsTerminal(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusSuccess, true},
		{StatusFailure, true},
		{StatusStalled, false},
		{StatusInterrupted, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			j := &Job{Status: tt.status}
			assert.Equal(t, tt.want, j.IsTerminal())
		})
	}
}
