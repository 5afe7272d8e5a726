package run

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcp/controlplane/domain/machine"
)

func searchTool() machine.Tool {
	return machine.Tool{
		Name:        "search",
		Description: "web search",
		Schema:      json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
	}
}

func TestBuildStepSchema_ConstrainsInputPerTool(t *testing.T) {
	schema, err := buildStepSchema(nil, []machine.Tool{searchTool()})
	require.NoError(t, err)

	valid := json.RawMessage(`{"done":false,"invocations":[{"toolName":"search","input":{"query":"weather"}}]}`)
	assert.NoError(t, validateAgainstSchema(schema, valid))

	invalid := json.RawMessage(`{"done":false,"invocations":[{"toolName":"search","input":{"wrongField":1}}]}`)
	assert.Error(t, validateAgainstSchema(schema, invalid))
}

func TestBuildStepSchema_RejectsUnknownToolName(t *testing.T) {
	schema, err := buildStepSchema(nil, []machine.Tool{searchTool()})
	require.NoError(t, err)

	doc := json.RawMessage(`{"done":false,"invocations":[{"toolName":"not-a-tool","input":{}}]}`)
	assert.Error(t, validateAgainstSchema(schema, doc))
}

func TestBuildStepSchema_IncludesResultSchema(t *testing.T) {
	resultSchema := json.RawMessage(`{"type":"object","properties":{"answer":{"type":"string"}},"required":["answer"]}`)
	schema, err := buildStepSchema(resultSchema, nil)
	require.NoError(t, err)

	valid := json.RawMessage(`{"done":true,"result":{"answer":"42"}}`)
	assert.NoError(t, validateAgainstSchema(schema, valid))

	invalid := json.RawMessage(`{"done":true,"result":{"answer":42}}`)
	assert.Error(t, validateAgainstSchema(schema, invalid))
}

func TestValidateAgainstSchema_EmptySchemaAlwaysPasses(t *testing.T) {
	assert.NoError(t, validateAgainstSchema(nil, json.RawMessage(`{"anything":true}`)))
}

func TestValidateAgainstSchema_InvalidSchemaDocument(t *testing.T) {
	err := validateAgainstSchema(json.RawMessage(`not json`), json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestToolNames(t *testing.T) {
	got := toolNames([]machine.Tool{searchTool(), {Name: "other"}})
	assert.Equal(t, []string{"search", "other"}, got)
}
