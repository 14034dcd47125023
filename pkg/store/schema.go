package store

// Live tables hold the current merged view of every entity. Snapshot tables
// are append-only copies tagged with the scrape run that produced them;
// downstream analysis reads only snapshots, filtered to a single run_id.
const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS agents (
	name            TEXT PRIMARY KEY,
	description     TEXT,
	karma           INTEGER,
	follower_count  INTEGER,
	created_at      TEXT,
	raw_json        TEXT,
	first_seen_at   TEXT NOT NULL,
	last_updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS submolts (
	name             TEXT PRIMARY KEY,
	display_name     TEXT,
	description      TEXT,
	subscriber_count INTEGER,
	created_at       TEXT,
	raw_json         TEXT,
	first_seen_at    TEXT NOT NULL,
	last_updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id              TEXT PRIMARY KEY,
	submolt         TEXT,
	author          TEXT,
	title           TEXT,
	content         TEXT,
	upvote_count    INTEGER,
	comment_count   INTEGER,
	created_at      TEXT,
	raw_json        TEXT,
	first_seen_at   TEXT NOT NULL,
	last_updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
	id              TEXT PRIMARY KEY,
	post_id         TEXT NOT NULL,
	author          TEXT,
	content         TEXT,
	parent_id       TEXT,
	upvote_count    INTEGER,
	created_at      TEXT,
	raw_json        TEXT,
	first_seen_at   TEXT NOT NULL,
	last_updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS moderators (
	submolt         TEXT NOT NULL,
	agent_name      TEXT NOT NULL,
	role            TEXT,
	raw_json        TEXT,
	first_seen_at   TEXT NOT NULL,
	last_updated_at TEXT NOT NULL,
	PRIMARY KEY (submolt, agent_name)
);

CREATE TABLE IF NOT EXISTS scrape_runs (
	run_id             INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at         TEXT NOT NULL,
	completed_at       TEXT,
	status             TEXT NOT NULL,
	submolts_scraped   INTEGER NOT NULL DEFAULT 0,
	posts_scraped      INTEGER NOT NULL DEFAULT 0,
	comments_scraped   INTEGER NOT NULL DEFAULT 0,
	agents_scraped     INTEGER NOT NULL DEFAULT 0,
	moderators_scraped INTEGER NOT NULL DEFAULT 0,
	error              TEXT
);

CREATE TABLE IF NOT EXISTS agent_snapshots (
	name            TEXT NOT NULL,
	description     TEXT,
	karma           INTEGER,
	follower_count  INTEGER,
	created_at      TEXT,
	raw_json        TEXT,
	first_seen_at   TEXT NOT NULL,
	last_updated_at TEXT NOT NULL,
	run_id          INTEGER NOT NULL REFERENCES scrape_runs(run_id),
	scraped_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_snapshots_run ON agent_snapshots(run_id);

CREATE TABLE IF NOT EXISTS submolt_snapshots (
	name             TEXT NOT NULL,
	display_name     TEXT,
	description      TEXT,
	subscriber_count INTEGER,
	created_at       TEXT,
	raw_json         TEXT,
	first_seen_at    TEXT NOT NULL,
	last_updated_at  TEXT NOT NULL,
	run_id           INTEGER NOT NULL REFERENCES scrape_runs(run_id),
	scraped_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submolt_snapshots_run ON submolt_snapshots(run_id);

CREATE TABLE IF NOT EXISTS post_snapshots (
	id              TEXT NOT NULL,
	submolt         TEXT,
	author          TEXT,
	title           TEXT,
	content         TEXT,
	upvote_count    INTEGER,
	comment_count   INTEGER,
	created_at      TEXT,
	raw_json        TEXT,
	first_seen_at   TEXT NOT NULL,
	last_updated_at TEXT NOT NULL,
	run_id          INTEGER NOT NULL REFERENCES scrape_runs(run_id),
	scraped_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_post_snapshots_run ON post_snapshots(run_id);

CREATE TABLE IF NOT EXISTS comment_snapshots (
	id              TEXT NOT NULL,
	post_id         TEXT NOT NULL,
	author          TEXT,
	content         TEXT,
	parent_id       TEXT,
	upvote_count    INTEGER,
	created_at      TEXT,
	raw_json        TEXT,
	first_seen_at   TEXT NOT NULL,
	last_updated_at TEXT NOT NULL,
	run_id          INTEGER NOT NULL REFERENCES scrape_runs(run_id),
	scraped_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comment_snapshots_run ON comment_snapshots(run_id);

CREATE TABLE IF NOT EXISTS moderator_snapshots (
	submolt         TEXT NOT NULL,
	agent_name      TEXT NOT NULL,
	role            TEXT,
	raw_json        TEXT,
	first_seen_at   TEXT NOT NULL,
	last_updated_at TEXT NOT NULL,
	run_id          INTEGER NOT NULL REFERENCES scrape_runs(run_id),
	scraped_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_moderator_snapshots_run ON moderator_snapshots(run_id);

CREATE INDEX IF NOT EXISTS idx_posts_submolt ON posts(submolt);
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);
`
