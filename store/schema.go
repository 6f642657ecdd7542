package store

// Child tables cascade with their parent event, mirroring the
// object-relation layout the app shell expects.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id                TEXT PRIMARY KEY,
		title             TEXT NOT NULL DEFAULT '',
		summary           TEXT NOT NULL DEFAULT '',
		description       TEXT NOT NULL DEFAULT '',
		location          TEXT NOT NULL DEFAULT '',
		category          TEXT NOT NULL DEFAULT '',
		image_url         TEXT NOT NULL DEFAULT '',
		link              TEXT NOT NULL DEFAULT '',
		starts_at         TEXT,
		uses_panthi       INTEGER NOT NULL DEFAULT 0,
		tickets_open      INTEGER,
		registration_open INTEGER,
		updated_at        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_types (
		id               TEXT PRIMARY KEY,
		event_id         TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		name             TEXT NOT NULL DEFAULT '',
		price            TEXT NOT NULL DEFAULT '0',
		early_bird_price TEXT,
		early_bird_until TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS panthis (
		id       TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		name     TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS programs (
		id        TEXT PRIMARY KEY,
		event_id  TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		name      TEXT NOT NULL DEFAULT '',
		category  TEXT NOT NULL DEFAULT '',
		starts_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL DEFAULT 'ticket',
		status     TEXT NOT NULL DEFAULT '',
		event_id   TEXT NOT NULL DEFAULT '',
		event_name TEXT NOT NULL DEFAULT '',
		quantity   INTEGER NOT NULL DEFAULT 0,
		amount     TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL DEFAULT '',
		date_of_birth     TEXT NOT NULL DEFAULT '',
		address           TEXT NOT NULL DEFAULT '',
		phone             TEXT NOT NULL DEFAULT '',
		email             TEXT NOT NULL DEFAULT '',
		comments          TEXT NOT NULL DEFAULT '',
		membership_expiry TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS family_members (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL DEFAULT '',
		name         TEXT NOT NULL DEFAULT '',
		relationship TEXT NOT NULL DEFAULT '',
		phone        TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		entity TEXT PRIMARY KEY,
		cursor TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_starts_at ON events(starts_at)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_event ON purchases(event_id, event_name)`,
}
