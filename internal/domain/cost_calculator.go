package domain

// UsageCost prices token usage with the model's per-token catalog prices.
// Free models and missing usage cost nothing.
func UsageCost(model ModelMetadata, usage *Usage) float64 {
	if usage == nil || model.IsFree {
		return 0
	}

	inputCost := float64(usage.PromptTokens) * model.PricingPrompt
	outputCost := float64(usage.CompletionTokens) * model.PricingCompletion

	return inputCost + outputCost
}
