package run

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckSystemPromptBudget(t *testing.T) {
	assert.NoError(t, checkSystemPromptBudget(700, 1000))
	err := checkSystemPromptBudget(701, 1000)
	assert.Error(t, err)
	ae, ok := err.(*AgentError)
	assert.True(t, ok)
	assert.Contains(t, ae.Reason, "0.7")
}

func msg(typ, data string) Message {
	return Message{Type: typ, Data: []byte(data)}
}

func TestTrimForContextWindow_NoTrimNeeded(t *testing.T) {
	msgs := []Message{
		msg(MessageTypeHuman, `{"message":"hi"}`),
		msg(MessageTypeAgent, `{"done":false}`),
	}
	got := trimForContextWindow(msgs, 0, 200_000)
	assert.Equal(t, msgs, got)
}

func TestTrimForContextWindow_DropsOldestNonHumanFirst(t *testing.T) {
	big := strings.Repeat("x", 400)
	msgs := []Message{
		msg(MessageTypeHuman, `{"m":"keep-me"}`),
		msg(MessageTypeAgent, `{"m":"`+big+`"}`),
		msg(MessageTypeInvocationResult, `{"m":"`+big+`"}`),
		msg(MessageTypeAgent, `{"m":"`+big+`"}`),
	}

	// window small enough that the two oldest non-human entries must go.
	got := trimForContextWindow(msgs, 0, 150)

	assert.True(t, len(got) < len(msgs))
	assert.Equal(t, MessageTypeHuman, got[0].Type, "retained head must stay human")
}

func TestTrimForContextWindow_NeverDropsBelowOneMessage(t *testing.T) {
	huge := strings.Repeat("x", 10_000)
	msgs := []Message{
		msg(MessageTypeAgent, `{"m":"`+huge+`"}`),
	}

	got := trimForContextWindow(msgs, 0, 10)

	assert.Len(t, got, 1)
}

func TestTrimForContextWindow_DropsLeadingNonHumanHead(t *testing.T) {
	msgs := []Message{
		msg(MessageTypeAgent, `{"m":"stale"}`),
		msg(MessageTypeHuman, `{"m":"keep"}`),
		msg(MessageTypeAgent, `{"m":"latest"}`),
	}

	got := trimForContextWindow(msgs, 0, 200_000)

	assert.Equal(t, MessageTypeHuman, got[0].Type)
	assert.Len(t, got, 2)
}
