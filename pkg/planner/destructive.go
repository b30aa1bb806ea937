package planner

import "github.com/opsconductor/decisionpipeline/pkg/records"

// destructiveActions is the closed tool+action table from §4.8.3: a
// step is destructive when its tool+action pair appears here, with a
// few tools (file_manager, config_manager) always destructive and a
// few (ps, journalctl, info_display) never destructive. Any other tool
// defaults to destructive, matching the original's conservative
// fallback (_is_destructive_operation).
var destructiveActions = map[string]map[string]bool{
	"systemctl": {
		"start":   true,
		"stop":    true,
		"restart": true,
		"enable":  true,
		"disable": true,
		"reload":  true,
	},
	"docker": {
		"start":   true,
		"stop":    true,
		"restart": true,
		"remove":  true,
		"create":  true,
		"build":   true,
	},
	"network_tools": {
		"configure": true,
		"restart":   true,
		"modify":    true,
	},
}

var alwaysDestructiveTools = map[string]bool{
	"file_manager":   true,
	"config_manager": true,
}

var neverDestructiveTools = map[string]bool{
	"ps":           true,
	"journalctl":   true,
	"info_display": true,
}

// isDestructiveOperation reports whether step represents a destructive
// operation that needs a before-stage safety check and, when required,
// a matching rollback step.
func isDestructiveOperation(step records.ExecutionStep) bool {
	if alwaysDestructiveTools[step.Tool] {
		return true
	}
	if neverDestructiveTools[step.Tool] {
		return false
	}
	if actions, ok := destructiveActions[step.Tool]; ok {
		action := step.Inputs["action"]
		if action == "" {
			action = "status"
		}
		return actions[action]
	}
	return true
}
