package index

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zuo-Peng/readaloud/internal/scan"
	"github.com/Zuo-Peng/readaloud/internal/session"
)

type Stats struct {
	Scanned int
	Updated int
	Skipped int
	Invalid int
	Pruned  int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d invalid=%d pruned=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Invalid, s.Pruned, s.Errors)
}

type sourceMeta struct {
	key     string
	path    string
	date    string
	column  string
	dir     string
	ext     string
	mtime   int64
	size    int64
	prompts []session.Prompt
	indexed time.Time
}

// IndexAll brings the prompt index in line with the CSV files in csvDir.
// Sources that do not load (bad filename, missing column) are counted and
// left out of the index.
func IndexAll(db *DB, csvDir string, layout session.Layout, logger *slog.Logger) (Stats, error) {
	var stats Stats

	files, err := scan.ListSources(csvDir)
	if err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}
	stats.Scanned = len(files)

	// track which files we see, for pruning
	seenKeys := make(map[string]struct{})

	for _, fi := range files {
		date, err := session.DateToken(fi.Name)
		if err != nil {
			stats.Invalid++
			continue
		}
		seenKeys[fi.Name] = struct{}{}

		needs, err := needsUpdate(db, fi.Name, fi.Mtime, fi.Size)
		if err != nil {
			stats.Errors++
			continue
		}
		if !needs {
			stats.Skipped++
			continue
		}

		column, prompts, err := session.ReadPrompts(fi.Path, layout.Columns)
		if err != nil {
			if errors.Is(err, session.ErrMissingColumn) {
				stats.Invalid++
			} else {
				stats.Errors++
			}
			delete(seenKeys, fi.Name)
			logger.Warn("source not indexed", slog.String("source", fi.Name), slog.Any("error", err))
			continue
		}

		meta := sourceMeta{
			key:     fi.Name,
			path:    fi.Path,
			date:    date,
			column:  column,
			dir:     layout.Dir(date),
			ext:     layout.Extension(),
			mtime:   fi.Mtime,
			size:    fi.Size,
			prompts: prompts,
			indexed: time.Now(),
		}
		if err := indexSource(db, meta); err != nil {
			stats.Errors++
			logger.Warn("index source failed", slog.String("source", fi.Name), slog.Any("error", err))
			continue
		}
		stats.Updated++
	}

	// prune sources whose files no longer exist
	pruned, err := pruneSources(db, seenKeys)
	if err != nil {
		return stats, fmt.Errorf("prune: %w", err)
	}
	stats.Pruned = pruned

	return stats, nil
}

func needsUpdate(db *DB, sourceKey string, mtime, size int64) (bool, error) {
	info, err := db.GetSourceInfo(sourceKey)
	if err != nil {
		return false, err
	}
	if info == nil {
		return true, nil // new source
	}
	return info.Mtime != mtime || info.Size != size, nil
}

func indexSource(db *DB, meta sourceMeta) error {
	// delete old data first
	if err := db.DeleteSource(meta.key); err != nil {
		return err
	}

	tx, err := db.Raw().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sources (source_key, file_path, date_token, column_name, recording_dir, extension, prompt_count, mtime, size, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.key,
		meta.path,
		meta.date,
		meta.column,
		meta.dir,
		meta.ext,
		len(meta.prompts),
		meta.mtime,
		meta.size,
		meta.indexed.UTC().Format(timeLayout),
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO prompts (source_key, position, row_index, text) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for pos, p := range meta.prompts {
		if _, err := stmt.Exec(meta.key, pos, p.Row, p.Text); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func pruneSources(db *DB, seenKeys map[string]struct{}) (int, error) {
	allKeys, err := db.AllSourceKeys()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for key := range allKeys {
		if _, ok := seenKeys[key]; !ok {
			if err := db.DeleteSource(key); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}
