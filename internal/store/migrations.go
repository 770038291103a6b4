package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version     int
	description string
	sql         string
}

// CurrentSchemaVersion is the version stamped by the last migration.
const CurrentSchemaVersion = 1

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version:     1,
		description: "folders, actions and schema info",
		sql: `
CREATE TABLE IF NOT EXISTS schema_info (
	version     INTEGER PRIMARY KEY,
	applied_at  DATETIME NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS folders (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	closed      INTEGER NOT NULL DEFAULT 0 CHECK(closed IN (0, 1)),
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	modified_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS actions (
	id          INTEGER PRIMARY KEY,
	folder_id   INTEGER NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	modified_at DATETIME NOT NULL,
	resolved_at DATETIME,
	start_at    DATETIME,
	remind_at   DATETIME,
	due_at      DATETIME,
	project_id  INTEGER,
	queued      INTEGER NOT NULL DEFAULT 0 CHECK(queued IN (0, 1)),
	resolution  TEXT NOT NULL DEFAULT 'open' CHECK(resolution IN ('open', 'resolved', 'deleted')),
	type        TEXT,
	priority    TEXT NOT NULL DEFAULT 'none',
	url         TEXT
);

CREATE INDEX IF NOT EXISTS idx_actions_folder_id ON actions(folder_id);
CREATE INDEX IF NOT EXISTS idx_actions_folder_position ON actions(folder_id, position);
CREATE INDEX IF NOT EXISTS idx_actions_resolution ON actions(resolution);
CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions(created_at);
CREATE INDEX IF NOT EXISTS idx_actions_due_at ON actions(due_at);
CREATE INDEX IF NOT EXISTS idx_actions_remind_at ON actions(remind_at);
CREATE INDEX IF NOT EXISTS idx_folders_type ON folders(type);
`,
	},
}
