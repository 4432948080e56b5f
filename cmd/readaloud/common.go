package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/Zuo-Peng/readaloud/internal/config"
	"github.com/Zuo-Peng/readaloud/internal/index"
	"github.com/Zuo-Peng/readaloud/internal/logging"
	"github.com/Zuo-Peng/readaloud/internal/session"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func layoutFor(cfg *config.Config) session.Layout {
	return session.Layout{
		Root:    cfg.RecordingsRoot,
		Suffix:  cfg.FolderSuffix,
		Ext:     cfg.Extension,
		Columns: cfg.Columns,
	}
}

func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logging.Options{
		Level: cfg.LogLevel,
		Path:  cfg.LogPath,
		JSON:  cfg.LogFormat == "json",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return logger, closer, nil
}

// openIndex opens the history DB and brings it up to date with csv_dir.
// Indexing problems are logged, not fatal.
func openIndex(cfg *config.Config, logger *slog.Logger) (*index.DB, error) {
	db, err := index.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := index.IndexAll(db, cfg.CSVDir, layoutFor(cfg), logger); err != nil {
		logger.Warn("auto index failed", "error", err)
	}
	return db, nil
}

// resolveSource accepts a path or a bare file name inside csv_dir.
func resolveSource(csvDir, arg string) string {
	if strings.ContainsRune(arg, filepath.Separator) {
		return arg
	}
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	return filepath.Join(csvDir, arg)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
