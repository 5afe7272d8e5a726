package machine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolConfig_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cfg  ToolConfig
	}{
		{
			name: "empty config",
			cfg:  ToolConfig{},
		},
		{
			name: "private tool with cache",
			cfg: ToolConfig{
				Cache:             &ToolCacheConfig{KeyPath: "input.id", TTLSeconds: 300},
				RetryCountOnStall: 2,
				TimeoutSeconds:    30,
				Private:           true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.cfg)
			assert.NoError(t, err)

			var got ToolConfig
			assert.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.cfg, got)
		})
	}
}

func TestRegisterRequest_Fields(t *testing.T) {
	req := RegisterRequest{
		ID:          "machine-1",
		IP:          "10.0.0.1",
		SDKVersion:  "1.2.3",
		SDKLanguage: "go",
		Tools: []ToolDeclaration{
			{Name: "search", Description: "web search"},
		},
	}

	assert.Equal(t, "machine-1", req.ID)
	assert.Len(t, req.Tools, 1)
	assert.Equal(t, "search", req.Tools[0].Name)
}
