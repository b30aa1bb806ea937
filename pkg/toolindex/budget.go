package toolindex

// BudgetConfig bounds how many candidate rows Retrieve may send to the
// selector's prompt.
type BudgetConfig struct {
	ContextWindow int
	BaseTokens    int
	OutputReserve int
	TokensPerRow  int
}

// MaxRows computes floor((CTX - BASE_TOKENS - reserve) / TOKENS_PER_ROW_EST),
// per §4.6's token-budget formula. A non-positive result means no rows fit.
func (b BudgetConfig) MaxRows() int {
	available := b.ContextWindow - b.BaseTokens - b.OutputReserve
	if available <= 0 || b.TokensPerRow <= 0 {
		return 0
	}
	return available / b.TokensPerRow
}
