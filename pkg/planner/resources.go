package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/opsconductor/decisionpipeline/pkg/records"
)

// toolBaselineResources are per-tool baseline CPU/memory/disk/network
// estimates, summed across the distinct tools used in a plan to produce
// a resource-requirements summary. Grounded on
// ResourcePlanner.tool_resources.
var toolBaselineResources = map[string]struct {
	cpu      float64
	memoryMB int
	diskMB   int
	needsNet bool
}{
	"systemctl":      {cpu: 0.1, memoryMB: 10, diskMB: 1, needsNet: false},
	"ps":             {cpu: 0.2, memoryMB: 20, diskMB: 1, needsNet: false},
	"journalctl":     {cpu: 0.3, memoryMB: 50, diskMB: 10, needsNet: false},
	"file_manager":   {cpu: 0.2, memoryMB: 30, diskMB: 100, needsNet: false},
	"network_tools":  {cpu: 0.1, memoryMB: 15, diskMB: 1, needsNet: true},
	"docker":         {cpu: 0.5, memoryMB: 100, diskMB: 50, needsNet: true},
	"config_manager": {cpu: 0.2, memoryMB: 40, diskMB: 20, needsNet: false},
	"info_display":   {cpu: 0.1, memoryMB: 10, diskMB: 1, needsNet: false},
}

// ResourceRequirements summarizes a plan's resource footprint, treating
// steps at the same parallel level as running concurrently for the peak
// estimate (§4.8.4's resource-estimation rule).
type ResourceRequirements struct {
	CPUCores        float64
	MemoryMB        int
	DiskMB          int
	NetworkRequired bool
	PeakCPUPercent  float64
	PeakMemoryMB    int
}

// CalculateResourceRequirements sums the baseline resources of every
// distinct tool used and reports the peak concurrent usage at the
// busiest parallel level.
func CalculateResourceRequirements(steps []records.ExecutionStep) ResourceRequirements {
	tools := make(map[string]struct{})
	for _, s := range steps {
		tools[s.Tool] = struct{}{}
	}

	var req ResourceRequirements
	for tool := range tools {
		if res, ok := toolBaselineResources[tool]; ok {
			req.CPUCores += res.cpu
			req.MemoryMB += res.memoryMB
			req.DiskMB += res.diskMB
			if res.needsNet {
				req.NetworkRequired = true
			}
		}
	}

	peakCPU, peakMemory := peakAtParallelLevel(steps)
	req.PeakCPUPercent = min(peakCPU*100, 100)
	req.PeakMemoryMB = peakMemory

	return req
}

func peakAtParallelLevel(steps []records.ExecutionStep) (cpu float64, memoryMB int) {
	byLevel := make(map[int][]records.ExecutionStep)
	for _, s := range steps {
		byLevel[s.ParallelLevel] = append(byLevel[s.ParallelLevel], s)
	}

	for _, group := range byLevel {
		var levelCPU float64
		var levelMemory int
		for _, s := range group {
			if res, ok := toolBaselineResources[s.Tool]; ok {
				levelCPU += res.cpu
				levelMemory += res.memoryMB
			}
		}
		if levelCPU > cpu {
			cpu = levelCPU
		}
		if levelMemory > memoryMB {
			memoryMB = levelMemory
		}
	}
	return cpu, memoryMB
}

// createObservabilityConfig builds the base metrics/logs plus
// tool-specific, risk-based, and production additions, per §4.8.4.
// Grounded on ResourcePlanner._create_observability_config.
func createObservabilityConfig(steps []records.ExecutionStep, decision *records.Decision, selection *records.Selection) records.ObservabilityConfig {
	metrics := newStringSet("cpu_usage_percent", "memory_usage_mb", "disk_usage_percent", "execution_time_seconds")
	logs := newStringSet("/var/log/syslog", "/var/log/messages")
	alerts := newStringSet()

	for _, s := range steps {
		m, l, a := toolObservability(s)
		metrics.addAll(m)
		logs.addAll(l)
		alerts.addAll(a)
	}

	if decision.RiskLevel == records.RiskHigh || decision.RiskLevel == records.RiskCritical {
		metrics.addAll([]string{"system_load_average", "network_connections_count", "process_count", "file_descriptor_count"})
		alerts.addAll([]string{"cpu_usage > 80%", "memory_usage > 85%", "disk_usage > 90%"})
	}

	if selection.Policy.ProductionEnvironment {
		metrics.addAll([]string{"service_availability_percent", "response_time_ms", "error_rate_percent"})
		alerts.addAll([]string{"service_down", "response_time > 5000ms", "error_rate > 5%"})
	}

	return records.ObservabilityConfig{
		Metrics: metrics.sorted(),
		Logs:    logs.sorted(),
		Alerts:  alerts.sorted(),
	}
}

func toolObservability(step records.ExecutionStep) (metrics, logs, alerts []string) {
	switch step.Tool {
	case "systemctl":
		service := orDefault(step.Inputs["service"], "unknown")
		return []string{
				fmt.Sprintf("service_%s_status", service),
				fmt.Sprintf("service_%s_memory_usage", service),
				fmt.Sprintf("service_%s_cpu_usage", service),
				"systemctl_execution_time",
			},
			[]string{"/var/log/syslog", fmt.Sprintf("/var/log/%s.log", service), "/var/log/systemd.log"},
			[]string{fmt.Sprintf("service_%s_failed", service), fmt.Sprintf("service_%s_restart_count > 3", service), "systemctl_command_timeout"}
	case "ps":
		return []string{"process_count", "zombie_process_count", "high_cpu_process_count", "ps_execution_time"},
			[]string{"/var/log/syslog"},
			[]string{"zombie_processes > 10", "process_count > 1000", "ps_command_timeout"}
	case "journalctl":
		return []string{"journal_size_mb", "journal_entries_count", "journal_error_count", "journalctl_execution_time"},
			[]string{"/var/log/journal/*"},
			[]string{"journal_size > 1000MB", "journal_errors > 100", "journalctl_command_timeout"}
	case "file_manager":
		path := orDefault(step.Inputs["path"], "unknown")
		return []string{"file_operation_duration", "file_size_bytes", "disk_io_operations", "file_permissions_changes"},
			[]string{"/var/log/syslog", "/var/log/audit/audit.log"},
			[]string{"file_operation_timeout", "file_permission_denied", fmt.Sprintf("file_size_changed_%s", path)}
	case "network_tools":
		toolType := orDefault(step.Inputs["tool"], "ping")
		target := orDefault(step.Inputs["target"], "unknown")
		return []string{fmt.Sprintf("%s_response_time_ms", toolType), fmt.Sprintf("%s_success_rate", toolType), "network_packet_loss_percent", "network_bandwidth_usage"},
			[]string{"/var/log/syslog", "/var/log/network.log"},
			[]string{fmt.Sprintf("%s_timeout", toolType), "packet_loss > 10%", fmt.Sprintf("target_%s_unreachable", target)}
	case "docker":
		container := orDefault(step.Inputs["container"], "unknown")
		return []string{fmt.Sprintf("container_%s_cpu_usage", container), fmt.Sprintf("container_%s_memory_usage", container), fmt.Sprintf("container_%s_status", container), "docker_operation_duration"},
			[]string{"/var/log/docker.log", fmt.Sprintf("/var/lib/docker/containers/%s/*.log", container)},
			[]string{fmt.Sprintf("container_%s_unhealthy", container), fmt.Sprintf("container_%s_high_memory", container), "docker_daemon_error"}
	case "config_manager":
		configFile := orDefault(step.Inputs["config_file"], "unknown")
		return []string{"config_validation_time", "config_file_size_bytes", "config_syntax_errors", "config_backup_count"},
			[]string{"/var/log/syslog", "/var/log/config-manager.log"},
			[]string{"config_validation_failed", "config_syntax_error", fmt.Sprintf("config_file_modified_%s", configFile)}
	case "info_display":
		return []string{"info_collection_time", "info_data_size_bytes", "info_sources_available"},
			[]string{"/var/log/syslog"},
			[]string{"info_collection_timeout", "info_source_unavailable"}
	default:
		return nil, nil, nil
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// createExecutionMetadata computes total_estimated_time_s, risk_factors,
// approval_points, and checkpoint_steps exactly per §4.8.4's formulas.
// Grounded on ResourcePlanner._create_execution_metadata.
func createExecutionMetadata(steps []records.ExecutionStep, decision *records.Decision, selection *records.Selection) records.ExecutionMetadata {
	var totalDuration time.Duration
	for _, s := range steps {
		totalDuration += s.EstimatedDuration
	}
	total := totalDuration.Seconds()

	riskFactors := newStringSet(fmt.Sprintf("risk_level_%s", decision.RiskLevel))
	for _, s := range steps {
		if isDestructiveOperation(s) {
			riskFactors.add(fmt.Sprintf("uses_destructive_tool_%s", s.Tool))
		}
	}
	if selection.Policy.ProductionEnvironment {
		riskFactors.add("production_environment")
	}

	approvalPoints := newStringSet()
	if selection.Policy.RequiresApproval {
		for _, s := range steps {
			if isDestructiveOperation(s) {
				approvalPoints.add(s.ID)
			}
		}
	}
	if decision.RiskLevel == records.RiskCritical {
		for _, s := range steps {
			approvalPoints.add(s.ID)
		}
	}

	checkpoints := newStringSet()
	for _, s := range steps {
		if isDestructiveOperation(s) {
			checkpoints.add(s.ID)
		}
		if s.EstimatedDuration.Seconds() > 60 {
			checkpoints.add(s.ID)
		}
	}
	if len(steps) > 0 {
		checkpoints.add(steps[len(steps)-1].ID)
	}

	return records.ExecutionMetadata{
		TotalEstimatedTimeS: total,
		RiskFactors:         riskFactors.sorted(),
		ApprovalPoints:      approvalPoints.sorted(),
		CheckpointSteps:     checkpoints.sorted(),
	}
}

// stringSet is a small sorted-unique-string accumulator, standing in for
// the original's set()-then-sorted(list(...)) pattern.
type stringSet struct {
	values map[string]struct{}
}

func newStringSet(initial ...string) *stringSet {
	s := &stringSet{values: make(map[string]struct{})}
	s.addAll(initial)
	return s
}

func (s *stringSet) add(v string) { s.values[v] = struct{}{} }
func (s *stringSet) addAll(vs []string) {
	for _, v := range vs {
		s.values[v] = struct{}{}
	}
}
func (s *stringSet) sorted() []string {
	out := make([]string, 0, len(s.values))
	for v := range s.values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
