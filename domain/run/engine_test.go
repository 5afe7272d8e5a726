package run

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentcp/controlplane/domain/machine"
	"github.com/agentcp/controlplane/domain/model"
)

func TestTailHasHumanOrInvocationResult(t *testing.T) {
	tests := []struct {
		name string
		tail []Message
		want bool
	}{
		{"contains human", []Message{msg(MessageTypeAgent, "{}"), msg(MessageTypeHuman, "{}")}, true},
		{"contains invocation result", []Message{msg(MessageTypeInvocationResult, "{}")}, true},
		{"agent only", []Message{msg(MessageTypeAgent, "{}"), msg(MessageTypeAgentInvalid, "{}")}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tailHasHumanOrInvocationResult(tt.tail))
		})
	}
}

func TestDiffTools(t *testing.T) {
	all := []machine.Tool{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	subset := []machine.Tool{{Name: "b"}}

	got := diffTools(all, subset)

	names := make([]string, len(got))
	for i, tl := range got {
		names[i] = tl.Name
	}
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestRenderMessages_MapsRoleByType(t *testing.T) {
	msgs := []Message{
		msg(MessageTypeHuman, `{"message":"hi"}`),
		msg(MessageTypeAgent, `{"done":true}`),
		msg(MessageTypeInvocationResult, `{"invocationId":"x"}`),
	}

	got := renderMessages(msgs)

	assert.Equal(t, []model.Message{
		{Role: "user", Content: `{"message":"hi"}`},
		{Role: "assistant", Content: `{"done":true}`},
		{Role: "user", Content: `{"invocationId":"x"}`},
	}, got)
}

func TestReconcileFlags(t *testing.T) {
	t.Run("done with pending invocations is silently cleared", func(t *testing.T) {
		data := &AgentMessageData{
			Done:        true,
			Result:      []byte(`{"x":1}`),
			Message:     "wrapping up",
			Invocations: []Invocation{{ID: "i1", ToolName: "search"}},
		}

		text := reconcileFlags(data)

		assert.Empty(t, text)
		assert.False(t, data.Done)
		assert.Nil(t, data.Result)
		assert.Empty(t, data.Message)
	})

	t.Run("not done with no invocations needs correction", func(t *testing.T) {
		data := &AgentMessageData{Done: false}

		text := reconcileFlags(data)

		assert.NotEmpty(t, text)
	})

	t.Run("done with no result or message needs correction", func(t *testing.T) {
		data := &AgentMessageData{Done: true}

		text := reconcileFlags(data)

		assert.NotEmpty(t, text)
	})

	t.Run("done with a message and no result proceeds", func(t *testing.T) {
		data := &AgentMessageData{Done: true, Message: "all set"}

		text := reconcileFlags(data)

		assert.Empty(t, text)
	})

	t.Run("not done with invocations proceeds", func(t *testing.T) {
		data := &AgentMessageData{Invocations: []Invocation{{ID: "i1", ToolName: "search"}}}

		text := reconcileFlags(data)

		assert.Empty(t, text)
	})
}
