package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeAgentRunID_Deterministic(t *testing.T) {
	id1 := computeAgentRunID("exec1", "scorer", "records", 1, "be precise", json.RawMessage(`{"type":"object"}`), json.RawMessage(`{"n":7}`))
	id2 := computeAgentRunID("exec1", "scorer", "records", 1, "be precise", json.RawMessage(`{"type":"object"}`), json.RawMessage(`{"n":7}`))
	assert.Equal(t, id1, id2)
	assert.Contains(t, id1, "exec1_scorer_")
}

func TestComputeAgentRunID_InputOrderIndependent(t *testing.T) {
	id1 := computeAgentRunID("exec1", "scorer", "records", 1, "p", nil, json.RawMessage(`{"a":1,"b":2}`))
	id2 := computeAgentRunID("exec1", "scorer", "records", 1, "p", nil, json.RawMessage(`{"b":2,"a":1}`))
	assert.Equal(t, id1, id2)
}

func TestComputeAgentRunID_DiffersByInput(t *testing.T) {
	id1 := computeAgentRunID("exec1", "scorer", "records", 1, "p", nil, json.RawMessage(`{"n":7}`))
	id2 := computeAgentRunID("exec1", "scorer", "records", 1, "p", nil, json.RawMessage(`{"n":8}`))
	assert.NotEqual(t, id1, id2)
}

func TestComputeAgentRunID_DiffersByVersion(t *testing.T) {
	id1 := computeAgentRunID("exec1", "scorer", "records", 1, "p", nil, json.RawMessage(`{"n":7}`))
	id2 := computeAgentRunID("exec1", "scorer", "records", 2, "p", nil, json.RawMessage(`{"n":7}`))
	assert.NotEqual(t, id1, id2)
}

func TestWorkflowToolName(t *testing.T) {
	assert.Equal(t, "workflows_records_1", workflowToolName("records", 1))
}
