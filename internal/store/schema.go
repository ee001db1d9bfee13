package store

// Schema is applied on every open. Statements are idempotent so an
// existing database is left intact.
const Schema = `
CREATE TABLE IF NOT EXISTS ai_orgs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	org_id TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	status TEXT DEFAULT 'draft',
	config TEXT DEFAULT '{}',
	created_by TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ai_nodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	node_id TEXT UNIQUE NOT NULL,
	org_id TEXT NOT NULL,
	parent_node_id TEXT,
	role_name TEXT NOT NULL,
	role_type TEXT DEFAULT 'analyst',
	description TEXT,
	agent_id TEXT,
	agent_config TEXT DEFAULT '{}',
	human_name TEXT,
	human_email TEXT,
	human_teams_id TEXT,
	human_slack_id TEXT,
	hitl_enabled INTEGER DEFAULT 0,
	hitl_approval_required INTEGER DEFAULT 0,
	hitl_review_delegation INTEGER DEFAULT 0,
	hitl_timeout_hours INTEGER DEFAULT 24,
	hitl_auto_proceed INTEGER DEFAULT 1,
	notification_channels TEXT DEFAULT '["email"]',
	position_x INTEGER DEFAULT 0,
	position_y INTEGER DEFAULT 0,
	status TEXT DEFAULT 'active',
	current_task_id TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (org_id) REFERENCES ai_orgs(org_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_ai_nodes_org ON ai_nodes(org_id);
CREATE INDEX IF NOT EXISTS idx_ai_nodes_parent ON ai_nodes(parent_node_id);
CREATE INDEX IF NOT EXISTS idx_ai_nodes_email ON ai_nodes(human_email);

CREATE TABLE IF NOT EXISTS ai_tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT UNIQUE NOT NULL,
	org_id TEXT NOT NULL,
	parent_task_id TEXT,
	assigned_node_id TEXT,
	title TEXT NOT NULL,
	description TEXT,
	input_data TEXT DEFAULT '{}',
	output_data TEXT DEFAULT '{}',
	context TEXT DEFAULT '{}',
	status TEXT DEFAULT 'pending',
	delegation_strategy TEXT,
	expected_responses INTEGER DEFAULT 0,
	received_responses INTEGER DEFAULT 0,
	priority TEXT DEFAULT 'medium',
	deadline TIMESTAMP,
	started_at TIMESTAMP,
	completed_at TIMESTAMP,
	error_message TEXT,
	retry_count INTEGER DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (org_id) REFERENCES ai_orgs(org_id) ON DELETE CASCADE,
	FOREIGN KEY (assigned_node_id) REFERENCES ai_nodes(node_id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_tasks_org ON ai_tasks(org_id);
CREATE INDEX IF NOT EXISTS idx_ai_tasks_parent ON ai_tasks(parent_task_id);
CREATE INDEX IF NOT EXISTS idx_ai_tasks_node_status ON ai_tasks(assigned_node_id, status);

CREATE TABLE IF NOT EXISTS ai_task_completions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_task_id TEXT NOT NULL,
	child_task_id TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (parent_task_id, child_task_id)
);

CREATE TABLE IF NOT EXISTS ai_responses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	response_id TEXT UNIQUE NOT NULL,
	task_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	response_type TEXT NOT NULL,
	content TEXT DEFAULT '{}',
	summary TEXT,
	reasoning TEXT,
	confidence_score REAL DEFAULT 0,
	quality_score REAL DEFAULT 0,
	is_human_modified INTEGER DEFAULT 0,
	original_ai_content TEXT,
	modification_reason TEXT,
	modified_by TEXT,
	modified_at TIMESTAMP,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (task_id) REFERENCES ai_tasks(task_id) ON DELETE CASCADE,
	FOREIGN KEY (node_id) REFERENCES ai_nodes(node_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_ai_responses_task ON ai_responses(task_id);

CREATE TABLE IF NOT EXISTS ai_hitl_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id TEXT UNIQUE NOT NULL,
	org_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	review_type TEXT NOT NULL,
	content TEXT,
	status TEXT DEFAULT 'pending',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	expires_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_ai_hitl_queue_org ON ai_hitl_queue(org_id);
CREATE INDEX IF NOT EXISTS idx_ai_hitl_queue_node ON ai_hitl_queue(node_id);
CREATE INDEX IF NOT EXISTS idx_ai_hitl_queue_expiry ON ai_hitl_queue(status, expires_at);

CREATE TABLE IF NOT EXISTS ai_hitl_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_id TEXT UNIQUE NOT NULL,
	org_id TEXT NOT NULL,
	node_id TEXT,
	task_id TEXT,
	response_id TEXT,
	user_id TEXT NOT NULL,
	action_type TEXT NOT NULL,
	original_content TEXT,
	modified_content TEXT,
	reason TEXT,
	message TEXT,
	ip_address TEXT,
	user_agent TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (org_id) REFERENCES ai_orgs(org_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_ai_hitl_actions_org ON ai_hitl_actions(org_id);
CREATE INDEX IF NOT EXISTS idx_ai_hitl_actions_task ON ai_hitl_actions(task_id);

CREATE TABLE IF NOT EXISTS ai_event_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT UNIQUE NOT NULL,
	org_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	source_node_id TEXT,
	target_node_id TEXT,
	task_id TEXT,
	payload TEXT DEFAULT '{}',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (org_id) REFERENCES ai_orgs(org_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_ai_event_logs_org_time ON ai_event_logs(org_id, created_at);
`
