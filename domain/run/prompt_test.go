package run

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentcp/controlplane/domain/machine"
)

func TestBuildSystemPrompt_SectionOrder(t *testing.T) {
	relevant := []machine.Tool{{Name: "search", Description: "web search"}}
	other := []machine.Tool{{Name: "archived-tool"}}

	prompt := buildSystemPrompt("org-specific context", relevant, other, false)

	rulesIdx := strings.Index(prompt, behaviorRules[0])
	ctxIdx := strings.Index(prompt, "org-specific context")
	toolsIdx := strings.Index(prompt, "<TOOLS_SCHEMAS>")
	otherIdx := strings.Index(prompt, "<OTHER_AVAILABLE_TOOLS>")

	assert.True(t, rulesIdx >= 0 && ctxIdx > rulesIdx, "rules must precede additional context")
	assert.True(t, ctxIdx < toolsIdx, "additional context must precede tool schemas")
	assert.True(t, toolsIdx < otherIdx, "tool schemas must precede other available tools")
	assert.Contains(t, prompt, "search")
	assert.Contains(t, prompt, "archived-tool")
}

func TestBuildSystemPrompt_ResultGroundingRuleOptIn(t *testing.T) {
	without := buildSystemPrompt("", nil, nil, false)
	with := buildSystemPrompt("", nil, nil, true)

	assert.NotContains(t, without, resultGroundingRule)
	assert.Contains(t, with, resultGroundingRule)
}

func TestBuildSystemPrompt_OmitsEmptyAdditionalContext(t *testing.T) {
	prompt := buildSystemPrompt("", nil, nil, false)
	assert.NotContains(t, prompt, "\n\n\n")
}

func TestRenderToolSchemas_IncludesNameDescriptionSchema(t *testing.T) {
	tools := []machine.Tool{{
		Name:        "search",
		Description: "web search",
		Schema:      []byte(`{"type":"object"}`),
	}}

	out := renderToolSchemas(tools)

	assert.Contains(t, out, "search")
	assert.Contains(t, out, "web search")
	assert.Contains(t, out, `"type":"object"`)
}
