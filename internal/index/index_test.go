package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zuo-Peng/readaloud/internal/logging"
	"github.com/Zuo-Peng/readaloud/internal/session"
)

type env struct {
	db     *DB
	csvDir string
	layout session.Layout
}

func newEnv(t *testing.T) env {
	t.Helper()
	base := t.TempDir()
	db, err := OpenDB(filepath.Join(base, "state", "readaloud.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	csvDir := filepath.Join(base, "csvs")
	if err := os.MkdirAll(csvDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return env{
		db:     db,
		csvDir: csvDir,
		layout: session.Layout{Root: filepath.Join(base, "audio_recordings"), Ext: "wav"},
	}
}

func (e env) write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(e.csvDir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func (e env) index(t *testing.T) Stats {
	t.Helper()
	stats, err := IndexAll(e.db, e.csvDir, e.layout, logging.Discard())
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	return stats
}

func TestIndexAllLifecycle(t *testing.T) {
	e := newEnv(t)
	e.write(t, "11_08_2025_akbar.csv", "id,transcription\n1,good morning\n2,\n3,how are you\n")
	e.write(t, "12_08_2025_sara.csv", "transcriptions\nthe weather is nice\n")
	e.write(t, "notes.csv", "transcription\nignored\n")
	e.write(t, "13_08_2025_bad.csv", "text\nno prompt column\n")

	stats := e.index(t)
	if stats.Scanned != 4 || stats.Updated != 2 || stats.Invalid != 2 {
		t.Fatalf("first pass: %s", stats)
	}

	src, err := e.db.GetSourceByKey("11_08_2025_akbar.csv")
	if err != nil || src == nil {
		t.Fatalf("get source: %v %v", src, err)
	}
	if src.DateToken != "11_08_2025" || src.ColumnName != "transcription" || src.PromptCount != 2 {
		t.Fatalf("source row = %+v", src)
	}
	if got := src.RecordingPath(2); got != filepath.Join(e.layout.Root, "11_08_2025", "2.wav") {
		t.Fatalf("recording path = %s", got)
	}

	prompts, err := e.db.GetPrompts("11_08_2025_akbar.csv")
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	if len(prompts) != 2 || prompts[1].Text != "how are you" || prompts[1].Row != 2 || prompts[1].Position != 1 {
		t.Fatalf("prompts = %+v", prompts)
	}

	if n, _ := e.db.FTSCount(); n != 3 {
		t.Fatalf("fts rows = %d, want 3", n)
	}

	stats = e.index(t)
	if stats.Updated != 0 || stats.Skipped != 2 {
		t.Fatalf("second pass: %s", stats)
	}

	e.write(t, "12_08_2025_sara.csv", "transcriptions\nthe weather is nice\nit may rain later\n")
	if err := os.Remove(filepath.Join(e.csvDir, "11_08_2025_akbar.csv")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	stats = e.index(t)
	if stats.Updated != 1 || stats.Pruned != 1 {
		t.Fatalf("third pass: %s", stats)
	}
	if n, _ := e.db.SourceCount(); n != 1 {
		t.Fatalf("sources = %d", n)
	}
	if n, _ := e.db.PromptCount(); n != 2 {
		t.Fatalf("prompts = %d", n)
	}
	if n, _ := e.db.FTSCount(); n != 2 {
		t.Fatalf("fts out of sync: %d", n)
	}
}

func TestGetPromptsWindow(t *testing.T) {
	e := newEnv(t)
	e.write(t, "11_08_2025_a.csv", "transcription\np0\np1\np2\np3\np4\np5\n")
	e.index(t)

	prompts, hitIdx, start, total, err := e.db.GetPromptsWindow("11_08_2025_a.csv", 4, 1)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if total != 6 || start != 3 || len(prompts) != 3 || hitIdx != 1 || prompts[hitIdx].Text != "p4" {
		t.Fatalf("window = %+v hit=%d start=%d total=%d", prompts, hitIdx, start, total)
	}

	prompts, hitIdx, start, _, err = e.db.GetPromptsWindow("11_08_2025_a.csv", -1, 1)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(prompts) != 6 || hitIdx != -1 || start != 0 {
		t.Fatalf("full window = %d hit=%d start=%d", len(prompts), hitIdx, start)
	}
}

func TestJournalThroughWorkflow(t *testing.T) {
	e := newEnv(t)
	path := e.write(t, "11_08_2025_a.csv", "transcription\nfirst line\n\nsecond line\n")
	e.index(t)

	w := session.New(e.layout, session.WithJournal(e.db))
	if _, err := w.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := w.Save([]byte("one")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := w.Edit("second line, revised"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	if n, _ := e.db.TakeCount(); n != 1 {
		t.Fatalf("takes = %d", n)
	}
	takes, err := e.db.LatestTakes("11_08_2025_a.csv")
	if err != nil {
		t.Fatalf("latest takes: %v", err)
	}
	take, ok := takes[1]
	if !ok || take.Size != 3 || take.RunID != w.RunID() || take.SavedAt.IsZero() {
		t.Fatalf("take = %+v", takes)
	}

	prompts, err := e.db.GetPrompts("11_08_2025_a.csv")
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	if prompts[1].Text != "second line, revised" {
		t.Fatalf("indexed prompt not updated: %q", prompts[1].Text)
	}

	var edits int
	if err := e.db.Raw().QueryRow("SELECT COUNT(*) FROM edits").Scan(&edits); err != nil || edits != 1 {
		t.Fatalf("edits = %d, %v", edits, err)
	}
}

func TestLatestTakesKeepsNewest(t *testing.T) {
	e := newEnv(t)
	base := time.Date(2025, 8, 11, 10, 0, 0, 0, time.UTC)
	for i, size := range []int64{10, 20} {
		err := e.db.RecordTake(session.Take{
			RunID:   "run",
			Source:  "11_08_2025_a.csv",
			Number:  1,
			Path:    "audio_recordings/11_08_2025/1.wav",
			Size:    size,
			SavedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record take: %v", err)
		}
	}
	takes, err := e.db.LatestTakes("11_08_2025_a.csv")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if takes[1].Size != 20 || !takes[1].SavedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("latest take = %+v", takes[1])
	}
}
