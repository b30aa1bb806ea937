package planner

import (
	"fmt"

	"github.com/opsconductor/decisionpipeline/pkg/records"
)

// createSafetyPlan unions the risk-based, tool-specific, and
// environment-specific safety-check generators plus the pre-execution
// validation checks, per §4.8.3. Grounded on SafetyPlanner.create_safety_plan.
func createSafetyPlan(steps []records.ExecutionStep, decision *records.Decision, selection *records.Selection) []records.SafetyCheck {
	var checks []records.SafetyCheck

	checks = append(checks, riskBasedChecks(decision.RiskLevel)...)
	checks = append(checks, selectionRiskChecks(selection)...)

	for _, step := range steps {
		checks = append(checks, toolSpecificChecks(step)...)
	}

	checks = append(checks, environmentChecks(selection)...)
	checks = append(checks, validationChecks(steps)...)

	return checks
}

func riskBasedChecks(risk records.RiskLevel) []records.SafetyCheck {
	switch risk {
	case records.RiskLow:
		return []records.SafetyCheck{
			{Description: "basic system health check", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn},
			{Description: "monitor operation completion", Stage: records.SafetyStageDuring, FailureAction: records.FailureActionWarn},
		}
	case records.RiskMedium:
		return []records.SafetyCheck{
			{Description: "comprehensive system health validation", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
			{Description: "verify backup systems are operational", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn},
			{Description: "monitor system resources during execution", Stage: records.SafetyStageDuring, FailureAction: records.FailureActionWarn},
			{Description: "validate operation completed successfully", Stage: records.SafetyStageAfter, FailureAction: records.FailureActionWarn},
		}
	case records.RiskHigh:
		return []records.SafetyCheck{
			{Description: "complete system state backup created", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
			{Description: "emergency rollback procedures validated", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
			{Description: "real-time monitoring systems active", Stage: records.SafetyStageDuring, FailureAction: records.FailureActionAbort},
			{Description: "system integrity verification completed", Stage: records.SafetyStageAfter, FailureAction: records.FailureActionAbort},
		}
	case records.RiskCritical:
		return []records.SafetyCheck{
			{Description: "full system backup and disaster recovery plan activated", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
			{Description: "secondary approval from senior administrator obtained", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
			{Description: "maintenance window scheduled and stakeholders notified", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
			{Description: "real-time system monitoring with automatic rollback triggers", Stage: records.SafetyStageDuring, FailureAction: records.FailureActionAbort},
			{Description: "complete system validation and performance baseline comparison", Stage: records.SafetyStageAfter, FailureAction: records.FailureActionAbort},
		}
	default:
		return nil
	}
}

func selectionRiskChecks(selection *records.Selection) []records.SafetyCheck {
	var checks []records.SafetyCheck
	if selection.Policy.RequiresApproval {
		checks = append(checks, records.SafetyCheck{
			Description:   "manual approval obtained for high-risk operation",
			Stage:         records.SafetyStageBefore,
			FailureAction: records.FailureActionAbort,
		})
	}
	if !selection.Policy.ParallelExecution {
		checks = append(checks, records.SafetyCheck{
			Description:   "ensure sequential execution for safety-critical operations",
			Stage:         records.SafetyStageBefore,
			FailureAction: records.FailureActionAbort,
		})
	}
	return checks
}

// toolSpecificChecks keys off the step's tool and its inputs["action"],
// e.g. systemctl restart requires a dependency check before and a
// reached-expected-state check after.
func toolSpecificChecks(step records.ExecutionStep) []records.SafetyCheck {
	applies := []string{step.ID}
	action := step.Inputs["action"]

	switch step.Tool {
	case "systemctl":
		checks := []records.SafetyCheck{
			{Description: "verify systemd service exists and is manageable", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort, AppliesTo: applies},
		}
		if action == "restart" || action == "stop" || action == "start" {
			checks = append(checks,
				records.SafetyCheck{Description: "check service dependencies before modification", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn, AppliesTo: applies},
				records.SafetyCheck{Description: "monitor service status during operation", Stage: records.SafetyStageDuring, FailureAction: records.FailureActionWarn, AppliesTo: applies},
				records.SafetyCheck{Description: "verify service reached expected state", Stage: records.SafetyStageAfter, FailureAction: records.FailureActionWarn, AppliesTo: applies},
			)
		}
		return checks
	case "file_manager":
		checks := []records.SafetyCheck{
			{Description: "verify file path exists and is accessible", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort, AppliesTo: applies},
			{Description: "check file permissions and ownership", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort, AppliesTo: applies},
		}
		op := step.Inputs["operation"]
		if op == "write" || op == "backup" || op == "restore" {
			checks = append(checks,
				records.SafetyCheck{Description: "create backup before file modification", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort, AppliesTo: applies},
				records.SafetyCheck{Description: "verify sufficient disk space for operation", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort, AppliesTo: applies},
				records.SafetyCheck{Description: "validate file integrity after modification", Stage: records.SafetyStageAfter, FailureAction: records.FailureActionWarn, AppliesTo: applies},
			)
		}
		return checks
	case "config_manager":
		return []records.SafetyCheck{
			{Description: "validate configuration file syntax before modification", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort, AppliesTo: applies},
			{Description: "create configuration backup with timestamp", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort, AppliesTo: applies},
			{Description: "test configuration validity after changes", Stage: records.SafetyStageAfter, FailureAction: records.FailureActionAbort, AppliesTo: applies},
		}
	case "docker":
		checks := []records.SafetyCheck{
			{Description: "verify Docker daemon is running and accessible", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort, AppliesTo: applies},
		}
		if action == "restart" || action == "stop" || action == "start" {
			checks = append(checks,
				records.SafetyCheck{Description: "check container dependencies and linked services", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn, AppliesTo: applies},
				records.SafetyCheck{Description: "monitor container health during operation", Stage: records.SafetyStageDuring, FailureAction: records.FailureActionWarn, AppliesTo: applies},
			)
		}
		return checks
	case "network_tools":
		return []records.SafetyCheck{
			{Description: "verify network interface is available", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn, AppliesTo: applies},
			{Description: "check network connectivity before testing", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn, AppliesTo: applies},
		}
	case "journalctl":
		return []records.SafetyCheck{
			{Description: "verify systemd journal is accessible", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn, AppliesTo: applies},
			{Description: "check log rotation and disk space", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn, AppliesTo: applies},
		}
	case "ps":
		return []records.SafetyCheck{
			{Description: "verify ps command is available", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn, AppliesTo: applies},
		}
	case "info_display":
		return []records.SafetyCheck{
			{Description: "verify system information sources are accessible", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn, AppliesTo: applies},
		}
	default:
		return []records.SafetyCheck{
			{Description: fmt.Sprintf("verify %s tool is available and accessible", step.Tool), Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort, AppliesTo: applies},
			{Description: fmt.Sprintf("monitor %s execution for errors", step.Tool), Stage: records.SafetyStageDuring, FailureAction: records.FailureActionWarn, AppliesTo: applies},
		}
	}
}

func environmentChecks(selection *records.Selection) []records.SafetyCheck {
	var checks []records.SafetyCheck
	if selection.Policy.ProductionEnvironment {
		checks = append(checks,
			records.SafetyCheck{Description: "verify operation is approved for production environment", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
			records.SafetyCheck{Description: "confirm backup procedures are in place", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
			records.SafetyCheck{Description: "validate rollback procedures are tested and ready", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
		)
	}
	return checks
}

func validationChecks(steps []records.ExecutionStep) []records.SafetyCheck {
	checks := []records.SafetyCheck{
		{Description: "validate all required tools are available on the system", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
		{Description: "verify user has sufficient permissions for all operations", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
		{Description: "confirm system is in stable state before execution", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionAbort},
	}

	for _, s := range steps {
		if isDestructiveOperation(s) {
			checks = append(checks, records.SafetyCheck{
				Description:   "create system checkpoint before destructive operations",
				Stage:         records.SafetyStageBefore,
				FailureAction: records.FailureActionAbort,
			})
			break
		}
	}
	return checks
}

// createRollbackSteps generates a RollbackStep for every destructive
// step when the selection's policy requires rollback, satisfying
// §4.8.3's invariant that the original leaves unimplemented
// (rollback_plan=[]) — see DESIGN.md's resolved Open Question.
func createRollbackSteps(steps []records.ExecutionStep, selection *records.Selection) []records.RollbackStep {
	if !selection.Policy.RollbackRequired {
		return nil
	}

	var rollbacks []records.RollbackStep
	for _, s := range steps {
		if !isDestructiveOperation(s) {
			continue
		}
		rollbacks = append(rollbacks, rollbackForStep(s))
	}
	return rollbacks
}

func rollbackForStep(step records.ExecutionStep) records.RollbackStep {
	switch step.Tool {
	case "systemctl":
		service := step.Inputs["service"]
		return records.RollbackStep{
			ForStepID:   step.ID,
			Tool:        "systemctl",
			Description: fmt.Sprintf("restore %s service to its pre-execution state", service),
			Inputs:      map[string]string{"action": "restore_previous_state", "service": service},
		}
	case "docker":
		container := step.Inputs["container"]
		return records.RollbackStep{
			ForStepID:   step.ID,
			Tool:        "docker",
			Description: fmt.Sprintf("restore %s container to its pre-execution state", container),
			Inputs:      map[string]string{"action": "restore_previous_state", "container": container},
		}
	case "file_manager":
		path := step.Inputs["path"]
		return records.RollbackStep{
			ForStepID:   step.ID,
			Tool:        "file_manager",
			Description: fmt.Sprintf("restore %s from its pre-execution backup", path),
			Inputs:      map[string]string{"operation": "restore", "path": path},
		}
	case "config_manager":
		configFile := step.Inputs["config_file"]
		return records.RollbackStep{
			ForStepID:   step.ID,
			Tool:        "config_manager",
			Description: fmt.Sprintf("restore configuration file %s from its pre-change backup", configFile),
			Inputs:      map[string]string{"operation": "restore", "config_file": configFile},
		}
	default:
		return records.RollbackStep{
			ForStepID:   step.ID,
			Tool:        step.Tool,
			Description: fmt.Sprintf("undo the effects of step %s", step.ID),
		}
	}
}
