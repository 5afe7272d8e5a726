package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"alnum", "run-1", false},
		{"underscores and dots", "run_1.2", false},
		{"too short", "abc", true},
		{"empty", "", true},
		{"contains space", "run 1", true},
		{"contains slash", "run/1", true},
		{"exactly minimum length", "abcd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateID_UniqueAndValid(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	assert.NotEqual(t, a, b)
	assert.NoError(t, ValidateID(a))
	assert.Contains(t, a, "run_")
}

func TestNewMessageID_Orderable(t *testing.T) {
	a := NewMessageID()
	b := NewMessageID()

	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "later ids should sort after earlier ones")
}
