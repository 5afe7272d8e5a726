package run

import (
	"encoding/json"
	"strings"

	"github.com/agentcp/controlplane/domain/machine"
)

// behaviorRules is the fixed ordered list of instructions prepended to every
// system prompt. The literal wording matters only insofar as later parts of
// the assembled prompt section it off correctly.
var behaviorRules = []string{
	"You are a helpful assistant that can use tools to complete tasks.",
	"You do not respond to greetings or small talk with tool calls.",
	"Use the tools at your disposal to make progress on the task before responding.",
	"If you cannot complete a task with the tools available, say so clearly.",
	"If there is nothing left to do, set done to true and provide a result or message.",
	"If you encounter invocation errors, adjust your approach rather than repeating the same call.",
	"When possible, return multiple invocations in a single step rather than one at a time.",
}

const resultGroundingRule = "When referring to tool results, reference json object path as {{id}} rather than quoting values directly."

// buildSystemPrompt assembles the prompt from (a) the fixed rules, (b)
// additionalContext, (c) TOOLS_SCHEMAS, (d) OTHER_AVAILABLE_TOOLS, in that
// exact order.
func buildSystemPrompt(additionalContext string, relevant, other []machine.Tool, resultGrounding bool) string {
	var b strings.Builder

	for _, rule := range behaviorRules {
		b.WriteString(rule)
		b.WriteString("\n")
	}
	if resultGrounding {
		b.WriteString(resultGroundingRule)
		b.WriteString("\n")
	}

	if additionalContext != "" {
		b.WriteString("\n")
		b.WriteString(additionalContext)
		b.WriteString("\n")
	}

	b.WriteString("\n<TOOLS_SCHEMAS>\n")
	b.WriteString(renderToolSchemas(relevant))
	b.WriteString("</TOOLS_SCHEMAS>\n")

	b.WriteString("\n<OTHER_AVAILABLE_TOOLS>\n")
	for _, t := range other {
		b.WriteString(t.Name)
		b.WriteString("\n")
	}
	b.WriteString("</OTHER_AVAILABLE_TOOLS>\n")

	return b.String()
}

func renderToolSchemas(tools []machine.Tool) string {
	var b strings.Builder
	for _, t := range tools {
		entry := map[string]any{
			"name":        t.Name,
			"description": t.Description,
		}
		if len(t.Schema) > 0 {
			var s any
			_ = json.Unmarshal(t.Schema, &s)
			entry["schema"] = s
		}
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String()
}
