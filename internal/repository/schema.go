package repository

// Schema is the DDL for all workflow tables. Tests and the seed command apply
// it against a fresh database.
const Schema = `
CREATE TABLE IF NOT EXISTS workflow_definitions (
	id          UUID PRIMARY KEY,
	tenant_id   UUID NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	definition  JSONB NOT NULL,
	version     INTEGER NOT NULL,
	status      TEXT NOT NULL,
	created_by  UUID NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_definitions_tenant
	ON workflow_definitions (tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS workflow_instances (
	id                 UUID PRIMARY KEY,
	tenant_id          UUID NOT NULL,
	definition_id      UUID NOT NULL REFERENCES workflow_definitions (id),
	definition_version INTEGER NOT NULL,
	display_number     BIGINT NOT NULL,
	title              TEXT NOT NULL,
	form_data          JSONB,
	status             TEXT NOT NULL,
	version            INTEGER NOT NULL,
	current_step_id    TEXT,
	initiated_by       UUID NOT NULL,
	submitted_at       TIMESTAMPTZ,
	completed_at       TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	UNIQUE (tenant_id, display_number)
);
CREATE INDEX IF NOT EXISTS idx_workflow_instances_initiator
	ON workflow_instances (tenant_id, initiated_by);

CREATE TABLE IF NOT EXISTS workflow_steps (
	id             UUID PRIMARY KEY,
	instance_id    UUID NOT NULL REFERENCES workflow_instances (id),
	tenant_id      UUID NOT NULL,
	display_number BIGINT NOT NULL,
	node_id        TEXT NOT NULL,
	node_name      TEXT NOT NULL,
	node_type      TEXT NOT NULL,
	status         TEXT NOT NULL,
	version        INTEGER NOT NULL,
	assigned_to    UUID NOT NULL,
	decision       TEXT,
	comment        TEXT,
	due_date       TIMESTAMPTZ,
	started_at     TIMESTAMPTZ,
	completed_at   TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	UNIQUE (tenant_id, display_number)
);
CREATE INDEX IF NOT EXISTS idx_workflow_steps_instance
	ON workflow_steps (instance_id, tenant_id);
CREATE INDEX IF NOT EXISTS idx_workflow_steps_assignee
	ON workflow_steps (tenant_id, assigned_to);

CREATE TABLE IF NOT EXISTS workflow_comments (
	id          UUID PRIMARY KEY,
	tenant_id   UUID NOT NULL,
	instance_id UUID NOT NULL REFERENCES workflow_instances (id),
	posted_by   UUID NOT NULL,
	body        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_comments_instance
	ON workflow_comments (instance_id, tenant_id);

CREATE TABLE IF NOT EXISTS display_number_counters (
	tenant_id   UUID NOT NULL,
	entity_type TEXT NOT NULL,
	last_number BIGINT NOT NULL,
	PRIMARY KEY (tenant_id, entity_type)
);
`
