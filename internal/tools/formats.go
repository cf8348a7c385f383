package tools

// Provider-facing renderings of the tool definitions. Both are pure
// transforms of the same registry; the OpenAI function format is the
// canonical one that provider adapters receive (the Anthropic adapter
// converts it again at its own boundary, keeping one source of truth
// here and one wire conversion there).

// OpenAITools renders the definitions in OpenAI function format.
func (r *Registry) OpenAITools() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, t := range r.Definitions() {
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// AnthropicTools renders the definitions in Anthropic input_schema
// format. Useful for direct inspection and tests; the adapter itself
// works from OpenAITools.
func (r *Registry) AnthropicTools() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, t := range r.Definitions() {
		result = append(result, map[string]any{
			"name":         t.Name,
			"description":  t.Description,
			"input_schema": t.Parameters,
		})
	}
	return result
}
