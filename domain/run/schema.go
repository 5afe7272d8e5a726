package run

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentcp/controlplane/domain/machine"
)

// structuredEnvelope is the schema the model must conform to for one step:
// an optional result (shaped by resultSchema, if any) plus zero or more
// invocations, each constrained to its tool's own input schema. A single
// canonical schema IR (jsonschema/v6) validates tool input schemas, this
// envelope, and resultSchema alike.
func buildStepSchema(resultSchema json.RawMessage, tools []machine.Tool) (json.RawMessage, error) {
	// Each invocation's input is constrained to its own tool's schema via an
	// if/then per tool name, so the model output is rejected unless the
	// input actually matches the tool it names.
	var perTool []any
	for _, t := range tools {
		var inputSchema any = map[string]any{}
		if len(t.Schema) > 0 {
			if err := json.Unmarshal(t.Schema, &inputSchema); err != nil {
				return nil, fmt.Errorf("tool %s has invalid schema: %w", t.Name, err)
			}
		}
		perTool = append(perTool, map[string]any{
			"if":   map[string]any{"properties": map[string]any{"toolName": map[string]any{"const": t.Name}}},
			"then": map[string]any{"properties": map[string]any{"input": inputSchema}},
		})
	}

	invocationSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"toolName":  map[string]any{"type": "string", "enum": toolNames(tools)},
			"input":     map[string]any{},
			"reasoning": map[string]any{"type": "string"},
		},
		"required": []string{"toolName", "input"},
		"allOf":    perTool,
	}

	envelope := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"done":        map[string]any{"type": "boolean"},
			"message":     map[string]any{"type": "string"},
			"issue":       map[string]any{"type": "string"},
			"invocations": map[string]any{"type": "array", "items": invocationSchema},
		},
		"required": []string{"done"},
	}

	if len(resultSchema) > 0 {
		var rs any
		if err := json.Unmarshal(resultSchema, &rs); err != nil {
			return nil, fmt.Errorf("invalid resultSchema: %w", err)
		}
		envelope["properties"].(map[string]any)["result"] = rs
	}

	return json.Marshal(envelope)
}

func toolNames(tools []machine.Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

// validateAgainstSchema compiles schema and validates doc against it,
// grounded on goadesign-goa-ai's validatePayloadJSONAgainstSchema
// (registry/service.go): unmarshal both, AddResource, Compile, Validate.
func validateAgainstSchema(schema json.RawMessage, doc json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}

	var schemaDoc any
	if err := json.Unmarshal(schema, &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal schema: %w", err)
	}
	var payloadDoc any
	if err := json.Unmarshal(doc, &payloadDoc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("step.json", schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("step.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return compiled.Validate(payloadDoc)
}
