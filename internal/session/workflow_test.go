package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Zuo-Peng/readaloud/internal/sheet"
)

type fakeJournal struct {
	takes   []Take
	edits   []Edit
	failing bool
}

func (f *fakeJournal) RecordTake(t Take) error {
	if f.failing {
		return errors.New("journal down")
	}
	f.takes = append(f.takes, t)
	return nil
}

func (f *fakeJournal) RecordEdit(e Edit) error {
	if f.failing {
		return errors.New("journal down")
	}
	f.edits = append(f.edits, e)
	return nil
}

type fixture struct {
	csvDir string
	root   string
	layout Layout
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	f := fixture{
		csvDir: filepath.Join(base, "csvs"),
		root:   filepath.Join(base, "audio_recordings"),
	}
	if err := os.MkdirAll(f.csvDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f.layout = Layout{Root: f.root, Ext: "wav"}
	return f
}

func (f fixture) writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(f.csvDir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func texts(prompts []Prompt) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p.Text
	}
	return out
}

func TestLoadSkipsBlankCellsInRowOrder(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_akbar_transcriptions.csv",
		"id,transcription\n1,first\n2,\n3,second\n4,   \n5,third\n")

	w := New(f.layout)
	s, err := w.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := strings.Join(texts(s.Prompts), "|"); got != "first|second|third" {
		t.Fatalf("prompts = %q", got)
	}
	if s.Prompts[1].Row != 2 || s.Prompts[2].Row != 4 {
		t.Fatalf("rows not tracked: %+v", s.Prompts)
	}
	if s.Date != "11_08_2025" || s.Column != "transcription" {
		t.Fatalf("date %q column %q", s.Date, s.Column)
	}
	if s.Dir != filepath.Join(f.root, "11_08_2025") {
		t.Fatalf("dir = %s", s.Dir)
	}
	if info, err := os.Stat(s.Dir); err != nil || !info.IsDir() {
		t.Fatalf("recording folder not created: %v", err)
	}
	if s.Cursor != 0 || w.State() != StateInSession {
		t.Fatalf("cursor %d state %v", s.Cursor, w.State())
	}
	if w.RunID() == "" {
		t.Fatalf("run id not assigned")
	}
}

func TestLoadPrefersPluralColumnAndSuffix(t *testing.T) {
	f := newFixture(t)
	f.layout.Suffix = "akbar"
	path := f.writeCSV(t, "12_08_2025_x.csv", "transcription,transcriptions\nsingular,plural\n")

	s, err := New(f.layout).Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Column != "transcriptions" || s.Prompts[0].Text != "plural" {
		t.Fatalf("column %q prompts %v", s.Column, texts(s.Prompts))
	}
	if s.Dir != filepath.Join(f.root, "12_08_2025", "akbar") {
		t.Fatalf("dir = %s", s.Dir)
	}
}

func TestLoadErrorsKeepExistingSession(t *testing.T) {
	f := newFixture(t)
	good := f.writeCSV(t, "11_08_2025_ok.csv", "transcription\none\ntwo\n")
	badName := f.writeCSV(t, "akbar.csv", "transcription\none\n")
	noColumn := f.writeCSV(t, "13_08_2025_nocol.csv", "Transcription,text\none,two\n")
	empty := f.writeCSV(t, "14_08_2025_empty.csv", "")

	w := New(f.layout)
	if _, err := w.Load(good); err != nil {
		t.Fatalf("load good: %v", err)
	}
	w.Skip()

	cases := []struct {
		path string
		want error
	}{
		{badName, ErrInvalidFilenameFormat},
		{noColumn, ErrMissingColumn},
		{empty, ErrSourceRead},
		{filepath.Join(f.csvDir, "15_08_2025_missing.csv"), ErrSourceRead},
	}
	for _, tc := range cases {
		if _, err := w.Load(tc.path); !errors.Is(err, tc.want) {
			t.Fatalf("Load(%s) err = %v, want %v", filepath.Base(tc.path), err, tc.want)
		}
		s := w.Session()
		if s == nil || s.Source != "11_08_2025_ok.csv" || s.Cursor != 1 {
			t.Fatalf("session changed after failed load of %s: %+v", filepath.Base(tc.path), s)
		}
	}

	if _, err := os.Stat(filepath.Join(f.root, "13_08_2025")); !os.IsNotExist(err) {
		t.Fatalf("folder created for invalid source: %v", err)
	}
}

func TestSaveAdvancesAndWritesNumberedFiles(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\ntwo\nthree\n")
	journal := &fakeJournal{}
	clock := time.Date(2025, 8, 11, 9, 30, 0, 0, time.UTC)
	w := New(f.layout, WithJournal(journal), WithClock(func() time.Time { return clock }))

	s, err := w.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	p1, err := w.Save([]byte("audio-one"))
	if err != nil {
		t.Fatalf("save 1: %v", err)
	}
	p2, err := w.Save([]byte("audio-two"))
	if err != nil {
		t.Fatalf("save 2: %v", err)
	}
	if filepath.Base(p1) != "1.wav" || filepath.Base(p2) != "2.wav" {
		t.Fatalf("paths %s %s", p1, p2)
	}
	if s.Cursor != 2 {
		t.Fatalf("cursor = %d, want 2", s.Cursor)
	}
	data, _ := os.ReadFile(p2)
	if string(data) != "audio-two" {
		t.Fatalf("2.wav = %q", data)
	}

	if len(journal.takes) != 2 || journal.takes[1].Number != 2 || journal.takes[1].Size != 9 {
		t.Fatalf("journal takes = %+v", journal.takes)
	}
	if journal.takes[0].RunID != w.RunID() || !journal.takes[0].SavedAt.Equal(clock) {
		t.Fatalf("take metadata = %+v", journal.takes[0])
	}

	if _, err := w.Save(nil); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("empty audio err = %v", err)
	}
	if s.Cursor != 2 {
		t.Fatalf("cursor moved on empty save")
	}

	if _, err := w.Save([]byte("audio-three")); err != nil {
		t.Fatalf("save 3: %v", err)
	}
	if w.State() != StateComplete {
		t.Fatalf("state = %v, want complete", w.State())
	}
	if _, err := w.Save([]byte("extra")); !errors.Is(err, ErrComplete) {
		t.Fatalf("save after complete err = %v", err)
	}
}

func TestSaveOverwritesExistingFile(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\ntwo\n")
	w := New(f.layout)
	if _, err := w.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := w.Save([]byte("first take")); err != nil {
		t.Fatalf("save: %v", err)
	}
	w.Previous()
	out, err := w.Save([]byte("retake"))
	if err != nil {
		t.Fatalf("re-save: %v", err)
	}
	data, _ := os.ReadFile(out)
	if filepath.Base(out) != "1.wav" || string(data) != "retake" {
		t.Fatalf("%s = %q", out, data)
	}
}

func TestSaveFailureLeavesCursor(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\n")
	// a directory named like the first recording makes the write fail
	if err := os.MkdirAll(filepath.Join(f.root, "11_08_2025", "1.wav"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	journal := &fakeJournal{}
	w := New(f.layout, WithJournal(journal))
	s, err := w.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Cursor != 0 {
		t.Fatalf("directories must not count as recordings, cursor = %d", s.Cursor)
	}
	if _, err := w.Save([]byte("audio")); !errors.Is(err, ErrRecordingWrite) {
		t.Fatalf("err = %v, want ErrRecordingWrite", err)
	}
	if s.Cursor != 0 || len(journal.takes) != 0 {
		t.Fatalf("cursor %d takes %d after failed save", s.Cursor, len(journal.takes))
	}
}

func TestJournalFailureDoesNotFailSave(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\ntwo\n")
	w := New(f.layout, WithJournal(&fakeJournal{failing: true}))
	if _, err := w.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := w.Save([]byte("audio")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if w.Session().Cursor != 1 {
		t.Fatalf("cursor = %d", w.Session().Cursor)
	}
}

func TestNavigationBounds(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\ntwo\nthree\n")
	w := New(f.layout)

	if w.Previous() || w.Skip() {
		t.Fatalf("navigation without a session must be a no-op")
	}

	s, err := w.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if w.Previous() || s.Cursor != 0 {
		t.Fatalf("previous at 0 moved cursor to %d", s.Cursor)
	}
	if !w.Skip() || !w.Skip() {
		t.Fatalf("skip should move to the last prompt")
	}
	if w.Skip() || s.Cursor != 2 {
		t.Fatalf("skip at last index moved cursor to %d", s.Cursor)
	}
	if !w.Previous() || s.Cursor != 1 {
		t.Fatalf("previous = %d", s.Cursor)
	}
}

func TestEditWritesBackToOriginalRow(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv",
		"id,transcription,speaker\n1,first,ali\n2,,ali\n3,second,sara\n4,third,sara\n5,,x\n")
	journal := &fakeJournal{}
	w := New(f.layout, WithJournal(journal))
	if _, err := w.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	w.Skip() // "second", row 2

	changed, err := w.Edit("second, corrected")
	if err != nil || !changed {
		t.Fatalf("edit: %v %v", changed, err)
	}

	tbl, err := sheet.ReadFile(path)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if len(tbl.Rows) != 5 || len(tbl.Header) != 3 {
		t.Fatalf("shape changed: %d rows %d cols", len(tbl.Rows), len(tbl.Header))
	}
	want := []string{"first", "", "second, corrected", "third", ""}
	for i, v := range want {
		if got := tbl.Cell(i, 1); got != v {
			t.Fatalf("row %d = %q, want %q", i, got, v)
		}
	}
	if tbl.Cell(3, 2) != "sara" || tbl.Cell(4, 0) != "5" {
		t.Fatalf("unrelated columns changed: %q", tbl.Rows)
	}
	if len(journal.edits) != 1 || journal.edits[0].Old != "second" || journal.edits[0].Row != 2 {
		t.Fatalf("journal edits = %+v", journal.edits)
	}

	// reload yields the edited text at the same position
	s, err := New(f.layout).Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if s.Prompts[1].Text != "second, corrected" {
		t.Fatalf("reloaded prompt = %q", s.Prompts[1].Text)
	}
}

func TestEditRoundTripWithBareQuotes(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "id,transcription\n1,He said \"hi\" to me\n2,plain\n")

	w := New(f.layout)
	s, err := w.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Total() != 2 || s.Prompts[0].Text != `He said "hi" to me` {
		t.Fatalf("prompts = %q", texts(s.Prompts))
	}

	w.Skip()
	if _, err := w.Edit(`plain "edited"`); err != nil {
		t.Fatalf("edit: %v", err)
	}

	s, err = New(f.layout).Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	want := []string{`He said "hi" to me`, `plain "edited"`}
	for i, v := range want {
		if s.Prompts[i].Text != v {
			t.Fatalf("prompt %d = %q, want %q", i, s.Prompts[i].Text, v)
		}
	}
}

func TestEditUnchangedIsNoop(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\n")
	before, _ := os.Stat(path)

	w := New(f.layout)
	if _, err := w.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	changed, err := w.Edit("one")
	if err != nil || changed {
		t.Fatalf("edit: %v %v", changed, err)
	}
	after, _ := os.Stat(path)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatalf("source rewritten for unchanged text")
	}
}

func TestEditPersistFailureKeepsMemory(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\n")
	w := New(f.layout)
	if _, err := w.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	changed, err := w.Edit("uno")
	if !changed || !errors.Is(err, ErrSourceRead) {
		t.Fatalf("edit = %v, %v", changed, err)
	}
	if p, _ := w.Session().Current(); p.Text != "uno" {
		t.Fatalf("in-memory edit rolled back: %q", p.Text)
	}
}

func TestEditRequiresSession(t *testing.T) {
	w := New(Layout{Root: t.TempDir(), Ext: "wav"})
	if _, err := w.Edit("x"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v", err)
	}
	if _, err := w.Save([]byte("x")); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v", err)
	}
}

func TestEmptySourceIsComplete(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription,id\n,1\n,2\n")
	w := New(f.layout)
	s, err := w.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Total() != 0 || w.State() != StateComplete || s.Progress() != 1 {
		t.Fatalf("total %d state %v progress %v", s.Total(), w.State(), s.Progress())
	}
	if w.Skip() || w.Previous() {
		t.Fatalf("navigation must be a no-op on an empty session")
	}
}

func TestResetReturnsToNoSession(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\n")
	w := New(f.layout)
	if _, err := w.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	w.Reset()
	if w.State() != StateNoSession || w.Session() != nil || w.RunID() != "" {
		t.Fatalf("reset left state %v", w.State())
	}
}

func TestResumeAfterRestart(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\n\ntwo\nthree\n")

	w := New(f.layout)
	s, err := w.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Cursor != 0 || s.Total() != 3 {
		t.Fatalf("cursor %d total %d", s.Cursor, s.Total())
	}
	if _, err := w.Save([]byte("take")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir, "1.wav")); err != nil {
		t.Fatalf("1.wav missing: %v", err)
	}
	if s.Cursor != 1 {
		t.Fatalf("cursor = %d", s.Cursor)
	}

	// fresh process
	restarted, err := New(f.layout).Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if restarted.Cursor != 1 {
		t.Fatalf("resumed cursor = %d, want 1", restarted.Cursor)
	}
	if p, _ := restarted.Current(); p.Text != "two" {
		t.Fatalf("resumed prompt = %q", p.Text)
	}
}

func TestDirLockExcludesSecondWorkflow(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\n")
	other := f.writeCSV(t, "12_08_2025_b.csv", "transcription\nuno\n")

	first := New(f.layout, WithDirLock())
	if _, err := first.Load(path); err != nil {
		t.Fatalf("first load: %v", err)
	}
	// reloading the same folder keeps the lock it already holds
	if _, err := first.Load(path); err != nil {
		t.Fatalf("first reload: %v", err)
	}

	second := New(f.layout, WithDirLock())
	if _, err := second.Load(path); !errors.Is(err, ErrDirLocked) {
		t.Fatalf("second load err = %v, want ErrDirLocked", err)
	}

	// moving the first workflow to another folder frees the original
	if _, err := first.Load(other); err != nil {
		t.Fatalf("first load other: %v", err)
	}
	if _, err := second.Load(path); err != nil {
		t.Fatalf("second load after release: %v", err)
	}
	second.Reset()
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	next, err := New(f.layout, WithDirLock()).Load(other)
	if err != nil {
		t.Fatalf("load after close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(next.Dir, LockFileName)); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
}

func TestInspectHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "11_08_2025_a.csv", "transcription\none\ntwo\nthree\n")

	s, err := f.layout.Inspect(path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if s.Cursor != 0 || s.Total() != 3 {
		t.Fatalf("cursor %d total %d", s.Cursor, s.Total())
	}
	if _, err := os.Stat(s.Dir); !os.IsNotExist(err) {
		t.Fatalf("inspect created %s", s.Dir)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"1.wav", "2.wav"} {
		if err := os.WriteFile(filepath.Join(s.Dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	s, err = f.layout.Inspect(path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if s.Completed() != 2 || s.Remaining() != 1 {
		t.Fatalf("completed %d remaining %d", s.Completed(), s.Remaining())
	}

	if _, err := f.layout.Inspect(f.writeCSV(t, "notes.csv", "transcription\nx\n")); !errors.Is(err, ErrInvalidFilenameFormat) {
		t.Fatalf("err = %v", err)
	}
}
