package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opsconductor/decisionpipeline/pkg/records"
)

// depGraph is the directed graph used by dependency resolution: forward
// maps a step id to the ids that depend on it, reverse maps a step id to
// the ids it depends on. Grounded on dependency_resolver.go's
// DependencyResolver (dependency_graph/reverse_graph/step_map).
type depGraph struct {
	forward map[string][]string
	reverse map[string][]string
	stepMap map[string]records.ExecutionStep
	order   []string // step ids in original arrival order
}

func buildDepGraph(steps []records.ExecutionStep) depGraph {
	g := depGraph{
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
		stepMap: make(map[string]records.ExecutionStep, len(steps)),
		order:   make([]string, 0, len(steps)),
	}
	for _, s := range steps {
		g.stepMap[s.ID] = s
		g.order = append(g.order, s.ID)
		if _, ok := g.forward[s.ID]; !ok {
			g.forward[s.ID] = nil
		}
	}
	for _, s := range steps {
		for _, pattern := range s.DependsOn {
			if strings.Contains(pattern, "*") {
				for _, depID := range resolveWildcardDependency(pattern, steps) {
					if depID == s.ID {
						continue
					}
					g.forward[depID] = append(g.forward[depID], s.ID)
					g.reverse[s.ID] = append(g.reverse[s.ID], depID)
				}
				continue
			}
			if _, ok := g.stepMap[pattern]; ok {
				g.forward[pattern] = append(g.forward[pattern], s.ID)
				g.reverse[s.ID] = append(g.reverse[s.ID], pattern)
			}
		}
	}
	return g
}

// resolveWildcardDependency matches a shell-style `*` pattern against
// every step id, anchoring the first fragment to the start and the last
// fragment to the end — a direct port of
// DependencyResolver._resolve_wildcard_dependency's positional
// substring-matching algorithm.
func resolveWildcardDependency(pattern string, steps []records.ExecutionStep) []string {
	parts := strings.Split(pattern, "*")
	var matches []string

	for _, s := range steps {
		id := s.ID
		ok := true
		pos := 0
		for i, part := range parts {
			if part == "" {
				continue
			}
			idx := strings.Index(id[pos:], part)
			if idx == -1 {
				ok = false
				break
			}
			idx += pos
			if i == 0 && idx != 0 {
				ok = false
				break
			}
			if i == len(parts)-1 && !strings.HasSuffix(id, part) {
				ok = false
				break
			}
			pos = idx + len(part)
		}
		if ok {
			matches = append(matches, id)
		}
	}
	return matches
}

// detectCycle runs DFS over g.forward, returning the first step id found
// on a cycle, or "" if the graph is acyclic.
func detectCycle(g depGraph) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make(map[string]int, len(g.stepMap))

	var visit func(node string) bool
	visit = func(node string) bool {
		switch state[node] {
		case gray:
			return true
		case black:
			return false
		}
		state[node] = gray
		for _, next := range g.forward[node] {
			if visit(next) {
				return true
			}
		}
		state[node] = black
		return false
	}

	for _, id := range g.order {
		if state[id] == white {
			if visit(id) {
				return id
			}
		}
	}
	return ""
}

// topologicalSort orders g's steps via Kahn's algorithm, matching
// DependencyResolver._topological_sort.
func topologicalSort(g depGraph) ([]records.ExecutionStep, error) {
	inDegree := make(map[string]int, len(g.stepMap))
	for _, id := range g.order {
		inDegree[id] = 0
	}
	for _, id := range g.order {
		for _, next := range g.forward[id] {
			inDegree[next]++
		}
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]records.ExecutionStep, 0, len(g.order))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, g.stepMap[node])
		for _, next := range g.forward[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(result) != len(g.stepMap) {
		return nil, fmt.Errorf("unable to resolve dependencies for all steps (%d of %d ordered)", len(result), len(g.stepMap))
	}
	return result, nil
}

// calculateLevels computes each step's parallel level: the length of its
// longest dependency path from any root, via memoized recursion over the
// reverse graph (DependencyResolver._calculate_dependency_levels).
func calculateLevels(g depGraph) map[string]int {
	levels := make(map[string]int, len(g.stepMap))
	visiting := make(map[string]bool, len(g.stepMap))

	var level func(node string) int
	level = func(node string) int {
		if v, ok := levels[node]; ok {
			return v
		}
		if visiting[node] {
			return 0
		}
		visiting[node] = true
		maxDep := -1
		for _, dep := range g.reverse[node] {
			if l := level(dep); l > maxDep {
				maxDep = l
			}
		}
		levels[node] = maxDep + 1
		visiting[node] = false
		return levels[node]
	}

	for _, id := range g.order {
		level(id)
	}
	return levels
}

// fixDependencyIssues strips self-dependencies and unresolved wildcard
// patterns, the one repair pass §4.8.2 allows before a second
// DependencyError is fatal (_fix_dependency_issues).
func fixDependencyIssues(steps []records.ExecutionStep) []records.ExecutionStep {
	fixed := make([]records.ExecutionStep, len(steps))
	copy(fixed, steps)

	for i, s := range fixed {
		valid := make([]string, 0, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				continue
			}
			if strings.Contains(dep, "*") {
				if len(resolveWildcardDependency(dep, steps)) == 0 {
					continue
				}
			}
			valid = append(valid, dep)
		}
		fixed[i].DependsOn = valid
	}
	return fixed
}

// resolveDependencies implements §4.8.2 end to end: build the graph,
// detect cycles (repairing once and retrying on failure), topologically
// sort into execution_order, and annotate each step's parallel_level.
func resolveDependencies(steps []records.ExecutionStep) ([]records.ExecutionStep, error) {
	ordered, err := resolveDependenciesOnce(steps)
	if err == nil {
		return ordered, nil
	}

	repaired := fixDependencyIssues(steps)
	ordered, retryErr := resolveDependenciesOnce(repaired)
	if retryErr != nil {
		return nil, fmt.Errorf("dependency repair failed after initial error %q: %w", err, retryErr)
	}
	return ordered, nil
}

func resolveDependenciesOnce(steps []records.ExecutionStep) ([]records.ExecutionStep, error) {
	g := buildDepGraph(steps)
	if cyclic := detectCycle(g); cyclic != "" {
		return nil, fmt.Errorf("circular dependency detected involving step %q", cyclic)
	}

	ordered, err := topologicalSort(g)
	if err != nil {
		return nil, err
	}

	levels := calculateLevels(g)
	for i := range ordered {
		ordered[i].ExecutionOrder = i + 1
		ordered[i].ParallelLevel = levels[ordered[i].ID]
		// g.reverse already holds each step's depends_on rewritten to
		// concrete step ids (wildcard patterns resolved in buildDepGraph);
		// steps themselves carry that rewrite forward so Plan.Validate's
		// exact-id lookup sees a resolvable reference, per §4.8.5.
		if resolved := g.reverse[ordered[i].ID]; resolved != nil {
			ordered[i].DependsOn = dedupStrings(resolved)
		}
	}
	return ordered, nil
}

// dedupStrings removes duplicate entries while preserving first-seen
// order, needed because a step may list the same wildcard pattern
// alongside a literal id that the pattern also matches.
func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// parallelGroups groups dependency-resolved steps by parallel_level, in
// increasing level order, mirroring identify_parallel_groups.
func parallelGroups(steps []records.ExecutionStep) [][]records.ExecutionStep {
	byLevel := make(map[int][]records.ExecutionStep)
	maxLevel := 0
	for _, s := range steps {
		byLevel[s.ParallelLevel] = append(byLevel[s.ParallelLevel], s)
		if s.ParallelLevel > maxLevel {
			maxLevel = s.ParallelLevel
		}
	}

	groups := make([][]records.ExecutionStep, 0, maxLevel+1)
	for level := 0; level <= maxLevel; level++ {
		group, ok := byLevel[level]
		if !ok {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		groups = append(groups, group)
	}
	return groups
}
