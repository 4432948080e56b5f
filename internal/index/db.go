package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Zuo-Peng/readaloud/internal/session"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS sources (
    source_key    TEXT PRIMARY KEY,
    file_path     TEXT NOT NULL,
    date_token    TEXT NOT NULL,
    column_name   TEXT NOT NULL DEFAULT '',
    recording_dir TEXT NOT NULL DEFAULT '',
    extension     TEXT NOT NULL DEFAULT '',
    prompt_count  INTEGER NOT NULL DEFAULT 0,
    mtime         INTEGER NOT NULL DEFAULT 0,
    size          INTEGER NOT NULL DEFAULT 0,
    indexed_at    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS prompts (
    source_key TEXT NOT NULL,
    position   INTEGER NOT NULL,
    row_index  INTEGER NOT NULL,
    text       TEXT NOT NULL,
    PRIMARY KEY (source_key, position)
);

CREATE VIRTUAL TABLE IF NOT EXISTS prompts_fts USING fts5(
    text,
    content=prompts,
    content_rowid=rowid,
    tokenize='unicode61'
);

-- triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS prompts_ai AFTER INSERT ON prompts BEGIN
    INSERT INTO prompts_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS prompts_ad AFTER DELETE ON prompts BEGIN
    INSERT INTO prompts_fts(prompts_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS prompts_au AFTER UPDATE ON prompts BEGIN
    INSERT INTO prompts_fts(prompts_fts, rowid, text) VALUES('delete', old.rowid, old.text);
    INSERT INTO prompts_fts(rowid, text) VALUES (new.rowid, new.text);
END;

-- takes and edits are history: they survive re-indexing and pruning
CREATE TABLE IF NOT EXISTS takes (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL,
    source_key TEXT NOT NULL,
    number     INTEGER NOT NULL,
    path       TEXT NOT NULL,
    size       INTEGER NOT NULL DEFAULT 0,
    saved_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS takes_by_source ON takes(source_key, number);

CREATE TABLE IF NOT EXISTS edits (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    source_key TEXT NOT NULL,
    position   INTEGER NOT NULL,
    row_index  INTEGER NOT NULL,
    old_text   TEXT NOT NULL,
    new_text   TEXT NOT NULL,
    edited_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

const timeLayout = "2006-01-02T15:04:05Z"

type DB struct {
	db *sql.DB
}

func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	d := &DB{db: db}
	d.migrateSchemaVersion()

	return d, nil
}

// schemaVersion should be bumped whenever prompt extraction changes to
// force a full re-index.
const schemaVersion = "1"

func (d *DB) migrateSchemaVersion() {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err != nil || ver != schemaVersion {
		// force re-index by resetting all source mtime/size to 0
		d.db.Exec("UPDATE sources SET mtime = 0, size = 0")
		d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

type SourceInfo struct {
	Mtime int64
	Size  int64
}

func (d *DB) GetSourceInfo(sourceKey string) (*SourceInfo, error) {
	var info SourceInfo
	err := d.db.QueryRow(
		"SELECT mtime, size FROM sources WHERE source_key = ?",
		sourceKey,
	).Scan(&info.Mtime, &info.Size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (d *DB) AllSourceKeys() (map[string]struct{}, error) {
	rows, err := d.db.Query("SELECT source_key FROM sources")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

// DeleteSource removes a source and its prompts. Takes and edits stay.
func (d *DB) DeleteSource(sourceKey string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM prompts WHERE source_key = ?", sourceKey); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM sources WHERE source_key = ?", sourceKey); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) count(table string) (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	return n, err
}

func (d *DB) SourceCount() (int, error) { return d.count("sources") }
func (d *DB) PromptCount() (int, error) { return d.count("prompts") }
func (d *DB) TakeCount() (int, error)   { return d.count("takes") }
func (d *DB) FTSCount() (int, error)    { return d.count("prompts_fts") }

type SourceRow struct {
	SourceKey    string
	FilePath     string
	DateToken    string
	ColumnName   string
	RecordingDir string
	Extension    string
	PromptCount  int
	IndexedAt    string
}

// RecordingPath is where the recording for 1-based number n lives.
func (s SourceRow) RecordingPath(n int) string {
	return filepath.Join(s.RecordingDir, fmt.Sprintf("%d.%s", n, s.Extension))
}

func (d *DB) GetSourceByKey(sourceKey string) (*SourceRow, error) {
	var s SourceRow
	err := d.db.QueryRow(
		`SELECT source_key, file_path, date_token, column_name, recording_dir, extension, prompt_count, indexed_at
		 FROM sources WHERE source_key = ?`,
		sourceKey,
	).Scan(&s.SourceKey, &s.FilePath, &s.DateToken, &s.ColumnName, &s.RecordingDir, &s.Extension, &s.PromptCount, &s.IndexedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type PromptRow struct {
	SourceKey string
	Position  int
	Row       int
	Text      string
}

const promptColumns = "source_key, position, row_index, text"

func scanPrompts(rows *sql.Rows) ([]PromptRow, error) {
	var prompts []PromptRow
	for rows.Next() {
		var p PromptRow
		if err := rows.Scan(&p.SourceKey, &p.Position, &p.Row, &p.Text); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

func (d *DB) GetPrompts(sourceKey string) ([]PromptRow, error) {
	rows, err := d.db.Query(
		"SELECT "+promptColumns+" FROM prompts WHERE source_key = ? ORDER BY position",
		sourceKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPrompts(rows)
}

// GetPromptsWindow returns up to context prompts either side of the 0-based
// hit position. hitIdx is the hit's index within the returned slice (-1 when
// absent), startPos the position of the first returned prompt.
func (d *DB) GetPromptsWindow(sourceKey string, hitPos, context int) (prompts []PromptRow, hitIdx int, startPos int, totalCount int, err error) {
	err = d.db.QueryRow(
		"SELECT COUNT(*) FROM prompts WHERE source_key = ?", sourceKey,
	).Scan(&totalCount)
	if err != nil {
		return nil, -1, 0, 0, err
	}

	startPos = 0
	limit := totalCount
	if hitPos >= 0 && hitPos < totalCount {
		startPos = hitPos - context
		if startPos < 0 {
			startPos = 0
		}
		endPos := hitPos + context + 1
		if endPos > totalCount {
			endPos = totalCount
		}
		limit = endPos - startPos
	}

	rows, err := d.db.Query(
		"SELECT "+promptColumns+" FROM prompts WHERE source_key = ? ORDER BY position LIMIT ? OFFSET ?",
		sourceKey, limit, startPos,
	)
	if err != nil {
		return nil, -1, 0, 0, err
	}
	defer rows.Close()

	result, err := scanPrompts(rows)
	if err != nil {
		return nil, -1, 0, 0, err
	}
	hitIdx = -1
	for i, p := range result {
		if p.Position == hitPos {
			hitIdx = i
		}
	}
	return result, hitIdx, startPos, totalCount, nil
}

// RecordTake appends a saved recording to the history.
func (d *DB) RecordTake(t session.Take) error {
	_, err := d.db.Exec(
		`INSERT INTO takes (run_id, source_key, number, path, size, saved_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Source, t.Number, t.Path, t.Size, t.SavedAt.UTC().Format(timeLayout),
	)
	return err
}

// RecordEdit appends an edit to the history and updates the indexed prompt
// text so search sees it before the next re-index.
func (d *DB) RecordEdit(e session.Edit) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO edits (source_key, position, row_index, old_text, new_text, edited_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Source, e.Position, e.Row, e.Old, e.New, e.EditedAt.UTC().Format(timeLayout),
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"UPDATE prompts SET text = ? WHERE source_key = ? AND row_index = ?",
		e.New, e.Source, e.Row,
	); err != nil {
		return err
	}
	return tx.Commit()
}

type TakeRow struct {
	RunID   string
	Number  int
	Path    string
	Size    int64
	SavedAt time.Time
}

// LatestTakes returns the most recent take per recording number.
func (d *DB) LatestTakes(sourceKey string) (map[int]TakeRow, error) {
	rows, err := d.db.Query(
		`SELECT run_id, number, path, size, saved_at FROM takes
		 WHERE source_key = ? ORDER BY id`,
		sourceKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	takes := make(map[int]TakeRow)
	for rows.Next() {
		var t TakeRow
		var savedAt string
		if err := rows.Scan(&t.RunID, &t.Number, &t.Path, &t.Size, &savedAt); err != nil {
			return nil, err
		}
		t.SavedAt, _ = time.Parse(timeLayout, savedAt)
		takes[t.Number] = t
	}
	return takes, rows.Err()
}
