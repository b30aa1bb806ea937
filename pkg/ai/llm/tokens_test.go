package llm

import "testing"

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcdefgh", 2},
		{"abcdefghi", 2},
	}
	for _, c := range cases {
		if got := EstimateTokens(c.text); got != c.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestSafeMaxTokens(t *testing.T) {
	cfg := BudgetConfig{
		ContextWindow: 8192,
		OutputReserve: 1500,
		SafetyMargin:  40,
		MinOutputHard: 256,
	}

	safe, clamped := SafeMaxTokens(cfg, 100)
	if clamped {
		t.Fatalf("expected no clamp for small input, got clamped=%v safe=%d", clamped, safe)
	}
	if safe != cfg.OutputReserve {
		t.Errorf("safe = %d, want OutputReserve %d", safe, cfg.OutputReserve)
	}

	// Large input eats into the available budget below the output reserve,
	// but still above the hard minimum.
	safe, clamped = SafeMaxTokens(cfg, 7000)
	if clamped {
		t.Fatalf("unexpected clamp: safe=%d", safe)
	}
	wantAvailable := cfg.ContextWindow - 7000 - cfg.SafetyMargin
	if safe != wantAvailable {
		t.Errorf("safe = %d, want %d", safe, wantAvailable)
	}

	// Input so large the available budget falls below MinOutputHard.
	safe, clamped = SafeMaxTokens(cfg, 8100)
	if !clamped {
		t.Fatalf("expected clamp, got safe=%d clamped=%v", safe, clamped)
	}
	if safe != cfg.MinOutputHard {
		t.Errorf("safe = %d, want MinOutputHard %d", safe, cfg.MinOutputHard)
	}
}
