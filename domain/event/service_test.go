package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildEvent_OmitsEmptyCorrelatingIDs(t *testing.T) {
	ev := buildEvent("cluster-1", TypeJobResult, EmitOptions{})

	assert.Equal(t, "cluster-1", ev.ClusterID)
	assert.Equal(t, TypeJobResult, ev.Type)
	assert.Nil(t, ev.JobID)
	assert.Nil(t, ev.MachineID)
	assert.Nil(t, ev.RunID)
	assert.Nil(t, ev.TargetFn)
	assert.Nil(t, ev.Status)
}

func TestBuildEvent_SetsProvidedFields(t *testing.T) {
	payload := json.RawMessage(`{"ok":true}`)
	ev := buildEvent("cluster-1", TypeStatusChangeDelivered, EmitOptions{
		JobID:     "job-1",
		MachineID: "machine-1",
		RunID:     "run-1",
		TargetFn:  "search",
		Status:    "success",
		Payload:   payload,
	})

	assert.Equal(t, "job-1", *ev.JobID)
	assert.Equal(t, "machine-1", *ev.MachineID)
	assert.Equal(t, "run-1", *ev.RunID)
	assert.Equal(t, "search", *ev.TargetFn)
	assert.Equal(t, "success", *ev.Status)
	assert.Equal(t, payload, ev.Payload)
}
