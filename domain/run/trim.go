package run

// systemPromptBudget and totalBudget are the fractions of the model's
// context window the engine enforces before and after trimming.
const (
	systemPromptBudget = 0.7
	totalBudget        = 0.95
)

// checkSystemPromptBudget rejects a system prompt that alone exceeds its
// share of the window with an AgentError,
func checkSystemPromptBudget(systemTokens, window int) error {
	if float64(systemTokens) > systemPromptBudget*float64(window) {
		return newAgentError("System prompt can not exceed 0.7 of the model context window")
	}
	return nil
}

// trimForContextWindow drops the oldest non-human messages until
// systemTokens + tokens(messages) fits within totalBudget·window, never
// dropping below a single message, and never leaving a non-human message
// as the retained head.
func trimForContextWindow(messages []Message, systemTokens, window int) []Message {
	limit := int(totalBudget * float64(window))
	trimmed := messages

	for len(trimmed) > 1 && systemTokens+estimateMessageTokens(trimmed) > limit {
		idx := -1
		for i, m := range trimmed {
			if m.Type != MessageTypeHuman {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		trimmed = append(append([]Message{}, trimmed[:idx]...), trimmed[idx+1:]...)
	}

	for len(trimmed) > 1 && trimmed[0].Type != MessageTypeHuman {
		trimmed = trimmed[1:]
	}

	return trimmed
}
