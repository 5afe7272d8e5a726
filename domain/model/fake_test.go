package model

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeModel_ReturnsResponsesInOrder(t *testing.T) {
	f := NewFakeModel(0, json.RawMessage(`{"done":true}`), json.RawMessage(`{"done":false}`))

	r1, err := f.Structured(context.Background(), Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"done":true}`, string(r1.Raw))

	r2, err := f.Structured(context.Background(), Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"done":false}`, string(r2.Raw))

	assert.Equal(t, 2, f.Calls())
}

func TestFakeModel_ErrorsWhenExhausted(t *testing.T) {
	f := NewFakeModel(0)

	_, err := f.Structured(context.Background(), Request{})
	assert.Error(t, err)
}

func TestFakeModel_DefaultContextWindow(t *testing.T) {
	f := NewFakeModel(0)
	assert.Equal(t, 200_000, f.ContextWindow())

	f2 := NewFakeModel(1000)
	assert.Equal(t, 1000, f2.ContextWindow())
}
