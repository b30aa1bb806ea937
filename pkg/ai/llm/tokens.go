package llm

// EstimateTokens approximates a token count from raw text length using
// the cheap len(text)/4 proxy (the original clients use the same
// shortcut rather than running a real tokenizer on the hot path).
func EstimateTokens(text string) int {
	return len(text) / 4
}

// BudgetConfig bounds how many output tokens a single Generate call may
// request, derived from the backend's context window.
type BudgetConfig struct {
	ContextWindow int
	OutputReserve int
	SafetyMargin  int
	MinOutputHard int
}

// SafeMaxTokens computes the output token budget for a prompt of the
// given estimated input size:
//
//	available = ContextWindow - inputTokens - SafetyMargin
//	safe      = min(available, OutputReserve)
//
// clamped to MinOutputHard when the computed value would be smaller,
// mirroring vllm_client.py's _calculate_safe_max_tokens. clamped reports
// whether the hard minimum had to override the computed budget, so the
// caller can log a warning the way the original does.
func SafeMaxTokens(cfg BudgetConfig, inputTokens int) (safe int, clamped bool) {
	available := cfg.ContextWindow - inputTokens - cfg.SafetyMargin
	safe = available
	if cfg.OutputReserve < safe {
		safe = cfg.OutputReserve
	}
	if safe < cfg.MinOutputHard {
		return cfg.MinOutputHard, true
	}
	return safe, false
}
