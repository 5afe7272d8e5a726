package workflow

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// computeAgentRunID implements agent(name, …).trigger(input)'s deterministic
// id: executionId + "_" + name + "_" + H(systemPrompt, resultSchema,
// wfName, version, input). H is a 64-bit xxhash over a canonical
// (sorted-key) JSON encoding — never raw JSON key order, which callers
// don't control.
func computeAgentRunID(executionID, agentName, wfName string, version int, systemPrompt string, resultSchema, input json.RawMessage) string {
	return executionID + "_" + agentName + "_" + strconv.FormatUint(hashTriggerInput(wfName, version, systemPrompt, resultSchema, input), 16)
}

func hashTriggerInput(wfName string, version int, systemPrompt string, resultSchema, input json.RawMessage) uint64 {
	payload := map[string]any{
		"systemPrompt": systemPrompt,
		"resultSchema": canonicalize(resultSchema),
		"workflow":     wfName,
		"version":      version,
		"input":        canonicalize(input),
	}
	// encoding/json sorts map[string]any keys when marshaling, giving a
	// canonical encoding regardless of the caller-supplied field order.
	data, _ := json.Marshal(payload)
	h := xxhash.New()
	_, _ = h.Write(data)
	return h.Sum64()
}

// canonicalize round-trips raw into a generic any so that nested object
// keys are re-marshaled in sorted order.
func canonicalize(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
