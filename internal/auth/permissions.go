package auth

import "approvalflow/backend/internal/domain"

// Permission tokens gating the administrative surface. Participation-based
// rules (who may decide, comment, resubmit) live in the engine and are not
// expressed as tokens.
const (
	PermissionDefinitionRead   domain.Permission = "workflow_definition:read"
	PermissionDefinitionManage domain.Permission = "workflow_definition:manage"
	PermissionInstanceRead     domain.Permission = "workflow_instance:read"
	PermissionInstanceWrite    domain.Permission = "workflow_instance:write"
)
