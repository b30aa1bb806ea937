package toolindex

import (
	"context"

	"github.com/opsconductor/decisionpipeline/pkg/records"
)

// StaticCatalog is an in-memory ToolCatalog seeded from a fixed tool
// list, mirroring tool_registry.py's _load_default_tools fallback: a
// config-free default registry covering the system-administration tool
// set the rest of this pipeline already knows how to plan and gate
// safety checks around (systemctl, ps, journalctl, file_manager,
// network_tools, docker, config_manager).
type StaticCatalog struct {
	tools map[string]records.Tool
}

// NewStaticCatalog builds a StaticCatalog from an explicit tool list,
// keyed by Tool.ID.
func NewStaticCatalog(tools []records.Tool) *StaticCatalog {
	c := &StaticCatalog{tools: make(map[string]records.Tool, len(tools))}
	for _, t := range tools {
		c.tools[t.ID] = t
	}
	return c
}

// Lookup implements ToolCatalog.
func (c *StaticCatalog) Lookup(ctx context.Context, id string) (records.Tool, bool, error) {
	t, ok := c.tools[id]
	return t, ok, nil
}

// Rows projects the catalog's tools into ToolIndex rows, for seeding a
// MemoryIndex or RedisIndex without maintaining two separate lists.
func (c *StaticCatalog) Rows() []IndexRow {
	rows := make([]IndexRow, 0, len(c.tools))
	for _, t := range c.tools {
		tags := make([]string, 0, len(t.Capabilities))
		for _, capability := range t.Capabilities {
			tags = append(tags, capability.Name)
		}
		rows = append(rows, IndexRow{
			ID:       t.ID,
			Name:     t.Name,
			Desc:     t.Description,
			Tags:     tags,
			Platform: t.Platform,
		})
	}
	return rows
}

// DefaultTools returns the built-in system-administration tool set.
func DefaultTools() []records.Tool {
	return []records.Tool{
		{
			ID:          "systemctl",
			Name:        "systemctl",
			Description: "System service control utility: start, stop, restart, and inspect systemd units",
			Platform:    "linux",
			Permission:  records.PermissionElevated,
			Capabilities: []records.ToolCapability{
				{Name: "service_control", Description: "Start, stop, restart, and manage system services"},
				{Name: "service_status", Description: "Check service status and health"},
			},
		},
		{
			ID:          "ps",
			Name:        "ps",
			Description: "Process status and monitoring",
			Platform:    "",
			Permission:  records.PermissionReadOnly,
			Capabilities: []records.ToolCapability{
				{Name: "process_monitoring", Description: "List and monitor running processes"},
				{Name: "system_info", Description: "Get system process information"},
			},
		},
		{
			ID:          "journalctl",
			Name:        "journalctl",
			Description: "System journal and log access",
			Platform:    "linux",
			Permission:  records.PermissionReadOnly,
			Capabilities: []records.ToolCapability{
				{Name: "log_access", Description: "Access system and service logs"},
				{Name: "log_analysis", Description: "Analyze log patterns and errors"},
			},
		},
		{
			ID:          "file_manager",
			Name:        "file_manager",
			Description: "File and directory operations",
			Platform:    "",
			Permission:  records.PermissionStandard,
			Capabilities: []records.ToolCapability{
				{Name: "file_management", Description: "Create, modify, delete files and directories"},
				{Name: "file_access", Description: "Read and access file contents"},
			},
		},
		{
			ID:          "network_tools",
			Name:        "network_tools",
			Description: "Network connectivity and testing",
			Platform:    "",
			Permission:  records.PermissionReadOnly,
			Capabilities: []records.ToolCapability{
				{Name: "network_testing", Description: "Test network connectivity and performance"},
				{Name: "connectivity", Description: "Check network connectivity status"},
			},
		},
		{
			ID:          "docker",
			Name:        "docker",
			Description: "Container management and operations",
			Platform:    "",
			Permission:  records.PermissionElevated,
			Capabilities: []records.ToolCapability{
				{Name: "container_management", Description: "Manage Docker containers"},
				{Name: "image_management", Description: "Manage Docker images"},
			},
		},
		{
			ID:          "config_manager",
			Name:        "config_manager",
			Description: "Application and system configuration management",
			Platform:    "",
			Permission:  records.PermissionStandard,
			Capabilities: []records.ToolCapability{
				{Name: "configuration_management", Description: "Read and update configuration files"},
			},
		},
	}
}
