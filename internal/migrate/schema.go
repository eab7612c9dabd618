package migrate

// ExpectedVersion is the schema version this build of the engine requires.
// Bumping it without a migration step intentionally invalidates snapshots
// stored under the old version key.
const ExpectedVersion = 3

// step is one versioned, strictly additive schema change. Steps apply in
// ascending version order, each inside its own transaction, and each applies
// exactly once (tracked via PRAGMA user_version).
type step struct {
	version    int
	statements []string
}

// Schema version history:
//  1 - Base schema: books, verses, categories, verse_categories, vb_meta
//  2 - verses.word_count; reading plans
//  3 - devotionals; index on verses(book_id, chapter)
var steps = []step{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS books (
				id        INTEGER PRIMARY KEY,
				name      TEXT NOT NULL UNIQUE,
				testament TEXT NOT NULL CHECK(testament IN ('OT','NT')),
				position  INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS verses (
				id          INTEGER PRIMARY KEY,
				book_id     INTEGER NOT NULL REFERENCES books(id),
				chapter     INTEGER NOT NULL,
				verse       INTEGER NOT NULL,
				body        TEXT NOT NULL,
				translation TEXT NOT NULL DEFAULT 'kjv'
			)`,
			`CREATE TABLE IF NOT EXISTS categories (
				id   INTEGER PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				kind TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS verse_categories (
				verse_id    INTEGER NOT NULL REFERENCES verses(id),
				category_id INTEGER NOT NULL REFERENCES categories(id),
				PRIMARY KEY (verse_id, category_id)
			)`,
			`CREATE TABLE IF NOT EXISTS vb_meta (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_verses_ref
				ON verses(book_id, chapter, verse, translation)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`ALTER TABLE verses ADD COLUMN word_count INTEGER NOT NULL DEFAULT 0`,
			`CREATE TABLE IF NOT EXISTS reading_plans (
				id        INTEGER PRIMARY KEY,
				name      TEXT NOT NULL UNIQUE,
				day_count INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS reading_plan_days (
				plan_id   INTEGER NOT NULL REFERENCES reading_plans(id),
				day       INTEGER NOT NULL,
				verse_ref TEXT NOT NULL,
				PRIMARY KEY (plan_id, day)
			)`,
		},
	},
	{
		version: 3,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS devotionals (
				id           INTEGER PRIMARY KEY,
				title        TEXT NOT NULL,
				body         TEXT NOT NULL,
				published_on TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_verses_book_chapter
				ON verses(book_id, chapter)`,
		},
	},
}

// column describes one expected column for the repair pass: its name and the
// DDL fragment used when appending it to a pre-existing table.
type column struct {
	name string
	ddl  string
}

// expectedColumns is the declarative column set per table at
// ExpectedVersion. The repair pass diffs a live table against this and
// appends whatever is missing; defaults make the append safe on populated
// tables.
var expectedColumns = map[string][]column{
	"books": {
		{"id", "INTEGER"},
		{"name", "TEXT NOT NULL DEFAULT ''"},
		{"testament", "TEXT NOT NULL DEFAULT 'OT'"},
		{"position", "INTEGER NOT NULL DEFAULT 0"},
	},
	"verses": {
		{"id", "INTEGER"},
		{"book_id", "INTEGER NOT NULL DEFAULT 0"},
		{"chapter", "INTEGER NOT NULL DEFAULT 0"},
		{"verse", "INTEGER NOT NULL DEFAULT 0"},
		{"body", "TEXT NOT NULL DEFAULT ''"},
		{"translation", "TEXT NOT NULL DEFAULT 'kjv'"},
		{"word_count", "INTEGER NOT NULL DEFAULT 0"},
	},
	"categories": {
		{"id", "INTEGER"},
		{"name", "TEXT NOT NULL DEFAULT ''"},
		{"kind", "TEXT NOT NULL DEFAULT 'topic'"},
	},
	"devotionals": {
		{"id", "INTEGER"},
		{"title", "TEXT NOT NULL DEFAULT ''"},
		{"body", "TEXT NOT NULL DEFAULT ''"},
		{"published_on", "TEXT"},
	},
}
