package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Zuo-Peng/readaloud/internal/logging"
	"github.com/Zuo-Peng/readaloud/internal/scan"
	"github.com/Zuo-Peng/readaloud/internal/sheet"
)

// DefaultColumns are the accepted prompt column headers, in order of
// preference.
var DefaultColumns = []string{"transcriptions", "transcription"}

// Layout decides where recordings go and which column holds the prompts.
type Layout struct {
	Root    string
	Suffix  string // optional extra folder below the date
	Ext     string
	Columns []string
}

// Dir returns <root>/<date>[/<suffix>].
func (l Layout) Dir(date string) string {
	if l.Suffix == "" {
		return filepath.Join(l.Root, date)
	}
	return filepath.Join(l.Root, date, l.Suffix)
}

// Extension is Ext without a leading dot.
func (l Layout) Extension() string {
	return strings.TrimPrefix(l.Ext, ".")
}

func (l Layout) columns() []string {
	if len(l.Columns) == 0 {
		return DefaultColumns
	}
	return l.Columns
}

type State int

const (
	StateNoSession State = iota
	StateInSession
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateInSession:
		return "in-session"
	case StateComplete:
		return "complete"
	default:
		return "no-session"
	}
}

type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithJournal(j Journal) Option {
	return func(w *Workflow) { w.journal = j }
}

// WithDirLock makes Load hold an advisory lock on the date folder until
// Reset or Close, so a second process cannot record into it.
func WithDirLock() Option {
	return func(w *Workflow) { w.lockDirs = true }
}

func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// Workflow drives one reader through a prompt source. It is not safe for
// concurrent use.
type Workflow struct {
	layout   Layout
	logger   *slog.Logger
	journal  Journal
	lockDirs bool
	now      func() time.Time

	sess  *Session
	lock  *dirLock
	runID string
}

func New(layout Layout, opts ...Option) *Workflow {
	w := &Workflow{
		layout: layout,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Session returns the loaded session, or nil.
func (w *Workflow) Session() *Session {
	return w.sess
}

// RunID identifies the current load in the journal.
func (w *Workflow) RunID() string {
	return w.runID
}

func (w *Workflow) State() State {
	switch {
	case w.sess == nil:
		return StateNoSession
	case w.sess.Complete():
		return StateComplete
	default:
		return StateInSession
	}
}

// Load validates and reads the source at path, prepares its recording
// folder and positions the cursor after the last recording on disk. On
// failure the previously loaded session, if any, is kept as it was.
func (w *Workflow) Load(path string) (*Session, error) {
	name := filepath.Base(path)
	date, err := DateToken(name)
	if err != nil {
		return nil, err
	}

	colName, prompts, err := ReadPrompts(path, w.layout.columns())
	if err != nil {
		return nil, err
	}

	dir := w.layout.Dir(date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create folder: %w", ErrRecordingWrite, err)
	}

	lock := w.lock
	if w.lockDirs && (lock == nil || lock.dir != dir) {
		lock, err = acquireDirLock(dir)
		if err != nil {
			return nil, err
		}
	}
	fresh := lock != w.lock

	next, err := scan.NextNumber(dir, w.layout.Extension())
	if err != nil {
		if fresh {
			_ = lock.release()
		}
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sess := &Session{
		Source:     name,
		SourcePath: path,
		Date:       date,
		Column:     colName,
		Prompts:    prompts,
		Dir:        dir,
		Ext:        w.layout.Extension(),
		Cursor:     next - 1,
	}

	if fresh {
		w.releaseLock()
		w.lock = lock
	}
	w.sess = sess
	w.runID = uuid.NewString()

	w.logger.Info("session loaded",
		slog.String("source", sess.Source),
		slog.String("date", sess.Date),
		slog.String("column", sess.Column),
		slog.String("dir", sess.Dir),
		slog.Int("prompts", sess.Total()),
		slog.Int("resume_at", next),
	)
	return sess, nil
}

// ReadPrompts loads the first matching column of the CSV at path. Blank
// cells are skipped; each prompt keeps the row it came from.
func ReadPrompts(path string, columns []string) (string, []Prompt, error) {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	tbl, err := sheet.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
	col, name, ok := tbl.ColumnIndex(columns...)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s needs a %q column", ErrMissingColumn, filepath.Base(path), strings.Join(columns, `" or "`))
	}
	return name, promptsFromColumn(tbl, col), nil
}

// Inspect reads the source at path and reports where a session would
// resume, without creating folders or taking locks.
func (l Layout) Inspect(path string) (*Session, error) {
	name := filepath.Base(path)
	date, err := DateToken(name)
	if err != nil {
		return nil, err
	}
	colName, prompts, err := ReadPrompts(path, l.columns())
	if err != nil {
		return nil, err
	}
	dir := l.Dir(date)
	next, err := scan.NextNumber(dir, l.Extension())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return &Session{
		Source:     name,
		SourcePath: path,
		Date:       date,
		Column:     colName,
		Prompts:    prompts,
		Dir:        dir,
		Ext:        l.Extension(),
		Cursor:     next - 1,
	}, nil
}

func promptsFromColumn(tbl *sheet.Table, col int) []Prompt {
	prompts := make([]Prompt, 0, len(tbl.Rows))
	for row := range tbl.Rows {
		text := tbl.Cell(row, col)
		if strings.TrimSpace(text) == "" {
			continue
		}
		prompts = append(prompts, Prompt{Text: text, Row: row})
	}
	return prompts
}

// Save writes audio as the recording for the current prompt, replacing any
// file already at that path, and advances the cursor. The cursor only moves
// when the write succeeded.
func (w *Workflow) Save(audio []byte) (string, error) {
	s := w.sess
	switch {
	case s == nil:
		return "", ErrNoSession
	case s.Complete():
		return "", ErrComplete
	case len(audio) == 0:
		return "", ErrNoAudio
	}

	n := s.Number()
	path := s.RecordingPath(n)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrRecordingWrite, path, err)
	}
	s.Cursor++

	w.logger.Info("recording saved", slog.String("path", path), slog.Int("number", n), slog.Int("bytes", len(audio)))
	if w.journal != nil {
		take := Take{
			RunID:   w.runID,
			Source:  s.Source,
			Number:  n,
			Path:    path,
			Size:    int64(len(audio)),
			SavedAt: w.now(),
		}
		if err := w.journal.RecordTake(take); err != nil {
			w.logger.Warn("journal take failed", slog.String("path", path), slog.Any("error", err))
		}
	}
	return path, nil
}

// Previous moves back one prompt. It reports whether the cursor moved.
func (w *Workflow) Previous() bool {
	if w.State() != StateInSession || w.sess.Cursor <= 0 {
		return false
	}
	w.sess.Cursor--
	return true
}

// Skip moves forward one prompt without recording. The last prompt cannot
// be skipped; it has to be saved to finish the session.
func (w *Workflow) Skip() bool {
	if w.State() != StateInSession || w.sess.Cursor >= w.sess.Total()-1 {
		return false
	}
	w.sess.Cursor++
	return true
}

// Edit replaces the current prompt's text and writes the prompt list back to
// the source file. changed is false when text equals the current prompt. A
// failed write leaves the in-memory edit in place.
func (w *Workflow) Edit(text string) (changed bool, err error) {
	s := w.sess
	if s == nil {
		return false, ErrNoSession
	}
	if s.Complete() {
		return false, ErrComplete
	}

	cur := &s.Prompts[s.Cursor]
	if cur.Text == text {
		return false, nil
	}
	old := cur.Text
	cur.Text = text

	if err := w.persist(); err != nil {
		w.logger.Error("prompt edit not saved", slog.String("source", s.Source), slog.Int("position", s.Cursor), slog.Any("error", err))
		return true, err
	}

	w.logger.Info("prompt edited", slog.String("source", s.Source), slog.Int("position", s.Cursor), slog.Int("row", cur.Row))
	if w.journal != nil {
		edit := Edit{
			Source:   s.Source,
			Position: s.Cursor,
			Row:      cur.Row,
			Old:      old,
			New:      text,
			EditedAt: w.now(),
		}
		if err := w.journal.RecordEdit(edit); err != nil {
			w.logger.Warn("journal edit failed", slog.String("source", s.Source), slog.Any("error", err))
		}
	}
	return true, nil
}

// persist re-reads the source so unrelated columns and rows survive, then
// writes every prompt back to its original row.
func (w *Workflow) persist() error {
	s := w.sess
	tbl, err := sheet.ReadFile(s.SourcePath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
	col, _, ok := tbl.ColumnIndex(s.Column)
	if !ok {
		return fmt.Errorf("%w: %w: %q no longer in %s", ErrSourceWrite, ErrMissingColumn, s.Column, s.Source)
	}
	for _, p := range s.Prompts {
		tbl.SetCell(p.Row, col, p.Text)
	}
	if err := sheet.WriteFile(s.SourcePath, tbl); err != nil {
		return fmt.Errorf("%w: %w", ErrSourceWrite, err)
	}
	return nil
}

// Reset forgets the session and releases its folder lock.
func (w *Workflow) Reset() {
	if w.sess != nil {
		w.logger.Info("session reset", slog.String("source", w.sess.Source), slog.Int("cursor", w.sess.Cursor))
	}
	w.sess = nil
	w.runID = ""
	w.releaseLock()
}

func (w *Workflow) Close() error {
	w.Reset()
	return nil
}

func (w *Workflow) releaseLock() {
	if w.lock == nil {
		return
	}
	if err := w.lock.release(); err != nil {
		w.logger.Warn("release folder lock", slog.String("dir", w.lock.dir), slog.Any("error", err))
	}
	w.lock = nil
}
