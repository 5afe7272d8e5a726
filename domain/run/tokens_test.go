package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"under one token boundary", "abc", 1},
		{"exact multiple", "abcd", 1},
		{"rounds up remainder", "abcde", 2},
		{"longer text", "0123456789", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimateTokens(tt.text))
		})
	}
}

func TestEstimateMessageTokens(t *testing.T) {
	msgs := []Message{
		{Data: []byte(`{"a":1}`)},  // 7 chars -> 2 tokens
		{Data: []byte(`{"bb":22}`)}, // 9 chars -> 3 tokens
	}

	assert.Equal(t, estimateTokens(`{"a":1}`)+estimateTokens(`{"bb":22}`), estimateMessageTokens(msgs))
}
