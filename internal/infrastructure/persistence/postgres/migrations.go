package postgres

// Embedded schema migrations. Nested collections (assigned students,
// submissions, objectives, notification data) are stored as JSONB so the
// row layout stays close to the snapshot wire format.

const migration001Up = `
CREATE TABLE IF NOT EXISTS people (
	id                 TEXT PRIMARY KEY,
	role               TEXT NOT NULL,
	name               TEXT NOT NULL,
	email              TEXT NOT NULL DEFAULT '',
	teacher_id         TEXT NOT NULL DEFAULT '',
	psychopedagogue_id TEXT NOT NULL DEFAULT '',
	parent_id          TEXT NOT NULL DEFAULT '',
	grade              TEXT NOT NULL DEFAULT '',
	assigned_students  JSONB NOT NULL DEFAULT '[]',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	version            BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_people_role ON people (role);
CREATE INDEX IF NOT EXISTS idx_people_teacher ON people (teacher_id) WHERE teacher_id <> '';
CREATE INDEX IF NOT EXISTS idx_people_psycho ON people (psychopedagogue_id) WHERE psychopedagogue_id <> '';
CREATE INDEX IF NOT EXISTS idx_people_parent ON people (parent_id) WHERE parent_id <> '';
`

const migration001Down = `
DROP TABLE IF EXISTS people;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS activity_templates (
	id                   TEXT PRIMARY KEY,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	subject              TEXT NOT NULL DEFAULT '',
	grade                TEXT NOT NULL DEFAULT '',
	category             TEXT NOT NULL DEFAULT '',
	due_date             TIMESTAMPTZ,
	created_by           TEXT NOT NULL,
	assigned_student_ids JSONB NOT NULL DEFAULT '[]',
	status               TEXT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	version              BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_templates_created_by ON activity_templates (created_by);

CREATE TABLE IF NOT EXISTS assignments (
	id                 TEXT PRIMARY KEY,
	parent_activity_id TEXT NOT NULL,
	assigned_to        TEXT NOT NULL,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	subject            TEXT NOT NULL DEFAULT '',
	grade              TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT '',
	due_date           TIMESTAMPTZ,
	created_by         TEXT NOT NULL,
	progress           INTEGER NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	submissions        JSONB NOT NULL DEFAULT '[]',
	feedback           JSONB,
	assigned_at        TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	completed_at       TIMESTAMPTZ,
	version            BIGINT NOT NULL DEFAULT 1,
	UNIQUE (parent_activity_id, assigned_to)
);

CREATE INDEX IF NOT EXISTS idx_assignments_student ON assignments (assigned_to);
CREATE INDEX IF NOT EXISTS idx_assignments_template ON assignments (parent_activity_id);
`

const migration002Down = `
DROP TABLE IF EXISTS assignments;
DROP TABLE IF EXISTS activity_templates;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS cases (
	id                 TEXT PRIMARY KEY,
	student_id         TEXT NOT NULL,
	psychopedagogue_id TEXT NOT NULL,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	version            BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_cases_student ON cases (student_id);

CREATE TABLE IF NOT EXISTS support_plans (
	id           TEXT PRIMARY KEY,
	student_id   TEXT NOT NULL,
	case_id      TEXT NOT NULL DEFAULT '',
	author_id    TEXT NOT NULL,
	title        TEXT NOT NULL,
	objectives   JSONB NOT NULL DEFAULT '[]',
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	version      BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_plans_student ON support_plans (student_id);
`

const migration003Down = `
DROP TABLE IF EXISTS support_plans;
DROP TABLE IF EXISTS cases;
`

const migration004Up = `
CREATE TABLE IF NOT EXISTS notifications (
	id             TEXT PRIMARY KEY,
	recipient_key  TEXT NOT NULL,
	recipient_role TEXT NOT NULL DEFAULT '',
	type           TEXT NOT NULL,
	title          TEXT NOT NULL,
	message        TEXT NOT NULL DEFAULT '',
	data           JSONB NOT NULL DEFAULT '{}',
	priority       TEXT NOT NULL,
	read           BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL,
	read_at        TIMESTAMPTZ,
	version        BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications (recipient_key, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications (recipient_key) WHERE NOT read;
`

const migration004Down = `
DROP TABLE IF EXISTS notifications;
`

const migration005Up = `
CREATE TABLE IF NOT EXISTS link_requests (
	id                TEXT PRIMARY KEY,
	parent_id         TEXT NOT NULL,
	student_id        TEXT NOT NULL,
	relationship      TEXT NOT NULL DEFAULT '',
	verification_code TEXT NOT NULL,
	status            TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	approved_at       TIMESTAMPTZ,
	approved_by       TEXT NOT NULL DEFAULT '',
	rejected_at       TIMESTAMPTZ,
	rejected_by       TEXT NOT NULL DEFAULT '',
	reject_reason     TEXT NOT NULL DEFAULT '',
	expired_at        TIMESTAMPTZ,
	version           BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_link_requests_status ON link_requests (status);
CREATE INDEX IF NOT EXISTS idx_link_requests_parent ON link_requests (parent_id);

CREATE TABLE IF NOT EXISTS active_links (
	id           TEXT PRIMARY KEY,
	request_id   TEXT NOT NULL,
	parent_id    TEXT NOT NULL,
	student_id   TEXT NOT NULL,
	relationship TEXT NOT NULL DEFAULT '',
	linked_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (parent_id, student_id)
);
`

const migration005Down = `
DROP TABLE IF EXISTS active_links;
DROP TABLE IF EXISTS link_requests;
`
