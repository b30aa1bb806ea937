package planner

import "sync"

// stats mirrors get_health_status's thread-safe statistics dict:
// observational counters guarded by a single mutex, never read by the
// plan-construction path itself.
type stats struct {
	mu           sync.Mutex
	plansCreated int64
	errors       int64
	llmCalls     int64
}

type statsSnapshot struct {
	plansCreated int64
	errors       int64
	llmCalls     int64
}

func (s *stats) incPlans() {
	s.mu.Lock()
	s.plansCreated++
	s.mu.Unlock()
}

func (s *stats) incErrors() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

func (s *stats) incLLMCalls() {
	s.mu.Lock()
	s.llmCalls++
	s.mu.Unlock()
}

func (s *stats) snapshot() statsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsSnapshot{plansCreated: s.plansCreated, errors: s.errors, llmCalls: s.llmCalls}
}
