package records

import (
	"fmt"
	"time"
)

// PermissionLevel is a tool's required execution privilege.
type PermissionLevel string

const (
	PermissionReadOnly  PermissionLevel = "read_only"
	PermissionStandard  PermissionLevel = "standard"
	PermissionElevated  PermissionLevel = "elevated"
	PermissionSuperuser PermissionLevel = "superuser"
)

// ToolCapability documents one thing a tool can do, used by Stage AB's
// retrieval prompt to describe a candidate to the LLM.
type ToolCapability struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// Tool is a catalog entry: an executable capability the pipeline can
// select for a plan.
type Tool struct {
	ID          string           `json:"id" validate:"required"`
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description"`
	Platform    string           `json:"platform"` // "linux", "windows", or "" for platform-agnostic
	Permission  PermissionLevel  `json:"permission_level"`
	Capabilities []ToolCapability `json:"capabilities,omitempty"`
}

// SelectedTool is one tool chosen by Stage AB for inclusion in the plan,
// along with the inputs it needs and its place in the dependency order.
type SelectedTool struct {
	ToolName        string   `json:"tool_name" validate:"required"`
	Justification   string   `json:"justification"`
	InputsNeeded    []string `json:"inputs_needed,omitempty"`
	ExecutionOrder  int      `json:"execution_order"`
	DependsOn       []string `json:"depends_on,omitempty"`
}

// ExecutionPolicy is the policy Stage AB synthesizes for the selected
// tool set: approval/rollback requirements and execution constraints.
type ExecutionPolicy struct {
	RequiresApproval      bool      `json:"requires_approval"`
	ProductionEnvironment bool      `json:"production_environment"`
	RiskLevel             RiskLevel `json:"risk_level" validate:"required"`
	MaxExecutionTimeS     int       `json:"max_execution_time_s" validate:"gt=0"`
	ParallelExecution     bool      `json:"parallel_execution"`
	RollbackRequired      bool      `json:"rollback_required"`
}

// Selection is Stage AB's output record.
type Selection struct {
	ID                      string                 `json:"id" validate:"required"`
	SchemaVersion           string                 `json:"schema_version" validate:"required"`
	DecisionID              string                 `json:"decision_id" validate:"required"`
	Intent                  Intent                 `json:"intent"`
	Entities                []Entity               `json:"entities"`
	SelectedTools           []SelectedTool         `json:"selected_tools"`
	TotalTools              int                    `json:"total_tools"`
	Policy                  ExecutionPolicy        `json:"policy" validate:"required"`
	AdditionalInputsNeeded  []string               `json:"additional_inputs_needed,omitempty"`
	EnvironmentRequirements map[string]interface{} `json:"environment_requirements,omitempty"`
	ReadyForExecution       bool                   `json:"ready_for_execution"`
	Confidence              float64                `json:"confidence" validate:"gte=0,lte=1"`
	NextStage               string                 `json:"next_stage" validate:"required"`
	CreatedAt               time.Time              `json:"created_at"`
}

// dependenciesResolved reports whether every selected tool's depends_on
// entries name another selected tool, per the shared loop in
// _is_ready_for_execution and Validate's own unknown-dependency check.
func dependenciesResolved(tools []SelectedTool) bool {
	names := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		names[t.ToolName] = struct{}{}
	}
	for _, t := range tools {
		for _, dep := range t.DependsOn {
			if _, ok := names[dep]; !ok {
				return false
			}
		}
	}
	return true
}

// ReadyForExecutionFor computes §3's ready_for_execution invariant,
// mirroring _is_ready_for_execution: not ready if additional inputs are
// still needed, not ready if no tools were selected, not ready if any
// selected tool depends on a tool outside the selection.
func ReadyForExecutionFor(selectedTools []SelectedTool, additionalInputsNeeded []string) bool {
	if len(additionalInputsNeeded) > 0 {
		return false
	}
	if len(selectedTools) == 0 {
		return false
	}
	return dependenciesResolved(selectedTools)
}

// NewSelectionID generates a selection id of the form
// sel_<YYYYMMDD_HHMMSS>_<uuid8>.
func NewSelectionID(now time.Time) string {
	return fmt.Sprintf("sel_%s_%s", now.UTC().Format("20060102_150405"), shortUUID())
}

// Validate checks Selection's struct-tag constraints plus the
// risk-implies-approval/rollback invariant: whenever risk is high or
// critical, both requires_approval and rollback_required must be true.
func (s *Selection) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}

	if s.Policy.RiskLevel == RiskHigh || s.Policy.RiskLevel == RiskCritical {
		if !s.Policy.RequiresApproval {
			return fmt.Errorf("policy.requires_approval must be true when risk_level is %s", s.Policy.RiskLevel)
		}
		if !s.Policy.RollbackRequired {
			return fmt.Errorf("policy.rollback_required must be true when risk_level is %s", s.Policy.RiskLevel)
		}
	}

	if s.Policy.ParallelExecution && len(s.SelectedTools) <= 1 {
		return fmt.Errorf("policy.parallel_execution requires more than one selected tool")
	}

	ids := make(map[string]struct{}, len(s.SelectedTools))
	for _, t := range s.SelectedTools {
		ids[t.ToolName] = struct{}{}
	}
	for _, t := range s.SelectedTools {
		for _, dep := range t.DependsOn {
			if _, ok := ids[dep]; !ok {
				return fmt.Errorf("selected tool %q depends on unknown tool %q", t.ToolName, dep)
			}
		}
	}

	if s.TotalTools != len(s.SelectedTools) {
		return fmt.Errorf("total_tools %d inconsistent with %d selected tools", s.TotalTools, len(s.SelectedTools))
	}

	if want := ReadyForExecutionFor(s.SelectedTools, s.AdditionalInputsNeeded); s.ReadyForExecution != want {
		return fmt.Errorf("ready_for_execution %v inconsistent with selected_tools/additional_inputs_needed (want %v)",
			s.ReadyForExecution, want)
	}

	return nil
}

// DeepCopy returns an independent copy of s.
func (s *Selection) DeepCopy() *Selection {
	cp := *s
	cp.Entities = append([]Entity(nil), s.Entities...)
	cp.SelectedTools = append([]SelectedTool(nil), s.SelectedTools...)
	cp.AdditionalInputsNeeded = append([]string(nil), s.AdditionalInputsNeeded...)
	if s.EnvironmentRequirements != nil {
		cp.EnvironmentRequirements = make(map[string]interface{}, len(s.EnvironmentRequirements))
		for k, v := range s.EnvironmentRequirements {
			cp.EnvironmentRequirements[k] = v
		}
	}
	return &cp
}
