package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsconductor/decisionpipeline/pkg/records"
)

func step(id string, dependsOn ...string) records.ExecutionStep {
	return records.ExecutionStep{ID: id, Tool: "ps", DependsOn: dependsOn}
}

func TestResolveWildcardDependencyAnchorsFirstAndLastFragment(t *testing.T) {
	steps := []records.ExecutionStep{
		step("step_aaaa1111_systemctl"),
		step("step_bbbb2222_docker"),
		step("step_cccc3333_systemctl"),
	}
	matches := resolveWildcardDependency("step_*_systemctl", steps)
	require.ElementsMatch(t, []string{"step_aaaa1111_systemctl", "step_cccc3333_systemctl"}, matches)
}

func TestResolveWildcardDependencyNoMatch(t *testing.T) {
	steps := []records.ExecutionStep{step("step_aaaa1111_systemctl")}
	require.Empty(t, resolveWildcardDependency("step_*_docker", steps))
}

func TestBuildDepGraphResolvesDirectAndWildcardDeps(t *testing.T) {
	steps := []records.ExecutionStep{
		step("step_1_systemctl"),
		step("step_2_docker", "step_1_systemctl"),
		step("step_3_ps", "step_*_docker"),
	}
	g := buildDepGraph(steps)
	require.ElementsMatch(t, []string{"step_2_docker"}, g.forward["step_1_systemctl"])
	require.ElementsMatch(t, []string{"step_3_ps"}, g.forward["step_2_docker"])
	require.ElementsMatch(t, []string{"step_1_systemctl"}, g.reverse["step_2_docker"])
}

func TestDetectCycleFindsCycle(t *testing.T) {
	steps := []records.ExecutionStep{
		step("a", "b"),
		step("b", "c"),
		step("c", "a"),
	}
	g := buildDepGraph(steps)
	cyclic := detectCycle(g)
	require.NotEmpty(t, cyclic)
}

func TestDetectCycleAcyclicGraph(t *testing.T) {
	steps := []records.ExecutionStep{
		step("a"),
		step("b", "a"),
		step("c", "b"),
	}
	g := buildDepGraph(steps)
	require.Empty(t, detectCycle(g))
}

func TestTopologicalSortOrdersDependenciesFirst(t *testing.T) {
	steps := []records.ExecutionStep{
		step("c", "b"),
		step("b", "a"),
		step("a"),
	}
	g := buildDepGraph(steps)
	ordered, err := topologicalSort(g)
	require.NoError(t, err)
	require.Len(t, ordered, 3)

	pos := make(map[string]int, len(ordered))
	for i, s := range ordered {
		pos[s.ID] = i
	}
	require.Less(t, pos["a"], pos["b"])
	require.Less(t, pos["b"], pos["c"])
}

func TestCalculateLevelsComputesLongestPath(t *testing.T) {
	steps := []records.ExecutionStep{
		step("a"),
		step("b", "a"),
		step("c", "a"),
		step("d", "b", "c"),
	}
	g := buildDepGraph(steps)
	levels := calculateLevels(g)
	require.Equal(t, 0, levels["a"])
	require.Equal(t, 1, levels["b"])
	require.Equal(t, 1, levels["c"])
	require.Equal(t, 2, levels["d"])
}

func TestFixDependencyIssuesStripsSelfDepsAndDeadWildcards(t *testing.T) {
	steps := []records.ExecutionStep{
		step("a", "a", "step_*_nonexistent"),
		step("b"),
	}
	fixed := fixDependencyIssues(steps)
	require.Empty(t, fixed[0].DependsOn)
}

func TestResolveDependenciesRepairsOnceThenSucceeds(t *testing.T) {
	steps := []records.ExecutionStep{
		step("a", "a"),
		step("b", "a"),
	}
	ordered, err := resolveDependencies(steps)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
}

func TestResolveDependenciesFailsOnGenuineCycle(t *testing.T) {
	steps := []records.ExecutionStep{
		step("a", "b"),
		step("b", "a"),
	}
	_, err := resolveDependencies(steps)
	require.Error(t, err)
}

func TestResolveDependenciesAssignsExecutionOrderAndParallelLevel(t *testing.T) {
	steps := []records.ExecutionStep{
		step("b", "a"),
		step("a"),
	}
	ordered, err := resolveDependencies(steps)
	require.NoError(t, err)
	require.Equal(t, "a", ordered[0].ID)
	require.Equal(t, 1, ordered[0].ExecutionOrder)
	require.Equal(t, 0, ordered[0].ParallelLevel)
	require.Equal(t, "b", ordered[1].ID)
	require.Equal(t, 1, ordered[1].ParallelLevel)
}

func TestResolveDependenciesRewritesWildcardToConcreteStepID(t *testing.T) {
	steps := []records.ExecutionStep{
		step("step_1_systemctl"),
		step("step_2_ps", "step_*_systemctl"),
	}
	ordered, err := resolveDependencies(steps)
	require.NoError(t, err)

	byID := make(map[string]records.ExecutionStep, len(ordered))
	for _, s := range ordered {
		byID[s.ID] = s
	}
	require.Equal(t, []string{"step_1_systemctl"}, byID["step_2_ps"].DependsOn,
		"a resolved wildcard must be rewritten to the concrete step id it matched")
}

func TestParallelGroupsGroupsByLevelInIncreasingOrder(t *testing.T) {
	steps := []records.ExecutionStep{
		{ID: "a", ParallelLevel: 0},
		{ID: "b", ParallelLevel: 1},
		{ID: "c", ParallelLevel: 1},
	}
	groups := parallelGroups(steps)
	require.Len(t, groups, 2)
	require.Len(t, groups[0], 1)
	require.Len(t, groups[1], 2)
}
