package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/readaloud/internal/capture"
	"github.com/Zuo-Peng/readaloud/internal/logging"
	"github.com/Zuo-Peng/readaloud/internal/scan"
	"github.com/Zuo-Peng/readaloud/internal/session"
)

type tuiMode int

const (
	modePicker tuiMode = iota
	modeRecord
	modeEdit
)

type takeState int

const (
	takeNone takeState = iota
	takeRecording
	takeStopping
	takeReady
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// message types

type sourcesMsg struct {
	sources []scan.FileInfo
	err     error
}

type takeMsg struct {
	gen   int
	audio []byte
	err   error
}

// captureExitedMsg reports that the capture process ended without Stop.
type captureExitedMsg struct {
	gen int
}

// doner is implemented by recorders that can report an unrequested exit.
type doner interface {
	Done() <-chan struct{}
}

type Options struct {
	CSVDir   string
	Source   string // csv path to load at start; "" opens the picker
	Recorder capture.Recorder
	Logger   *slog.Logger
}

// model

type model struct {
	ctx      context.Context
	wf       *session.Workflow
	rec      capture.Recorder
	logger   *slog.Logger
	csvDir   string
	initial  string
	mode     tuiMode
	sources  []scan.FileInfo
	cursor   int
	offset   int
	take     takeState
	audio    []byte
	gen      int
	prompt   viewport.Model
	editor   textinput.Model
	status   string
	isErr    bool
	width    int
	height   int
	ready    bool
	quitting bool
}

func newModel(ctx context.Context, wf *session.Workflow, opts Options) model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 2000

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return model{
		ctx:     ctx,
		wf:      wf,
		rec:     opts.Recorder,
		logger:  logger,
		csvDir:  opts.CSVDir,
		initial: opts.Source,
		editor:  ti,
		prompt:  viewport.New(0, 0),
	}
}

// Run starts the TUI and blocks until it exits. Any capture still running
// on exit is stopped and discarded.
func Run(ctx context.Context, wf *session.Workflow, opts Options) error {
	m := newModel(ctx, wf, opts)
	if m.initial != "" {
		m.loadSource(m.initial)
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if opts.Recorder != nil && opts.Recorder.Recording() {
		_, _ = opts.Recorder.Stop()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// Init loads the source list.
func (m model) Init() tea.Cmd {
	return listSourcesCmd(m.csvDir)
}

func listSourcesCmd(dir string) tea.Cmd {
	return func() tea.Msg {
		sources, err := scan.ListSources(dir)
		return sourcesMsg{sources: sources, err: err}
	}
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.prompt = viewport.New(m.promptWidth(), m.promptHeight())
		m.refreshPrompt()
		m.editor.Width = m.editWidth()
		return m, nil

	case sourcesMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.sources = msg.sources
		if m.cursor >= len(m.sources) {
			m.cursor = 0
			m.offset = 0
		}
		return m, nil

	case takeMsg:
		if msg.gen != m.gen || m.take != takeStopping {
			return m, nil // stale
		}
		if msg.err != nil {
			m.take = takeNone
			m.audio = nil
			m.setError(fmt.Errorf("capture: %w", msg.err))
			return m, nil
		}
		m.audio = msg.audio
		if len(m.audio) == 0 {
			m.take = takeNone
			m.setError(session.ErrNoAudio)
			return m, nil
		}
		m.take = takeReady
		m.setStatus(fmt.Sprintf("take ready (%s), enter to save", humanBytes(len(m.audio))))
		return m, nil

	case captureExitedMsg:
		if msg.gen != m.gen || m.take != takeRecording {
			return m, nil
		}
		// collect whatever the process left behind
		m.take = takeStopping
		return m, m.stopCmd()

	case tea.KeyMsg:
		switch m.mode {
		case modePicker:
			return m.updatePicker(msg)
		case modeEdit:
			return m.updateEdit(msg)
		default:
			return m.updateRecord(msg)
		}
	}

	return m, nil
}

func (m model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.adjustListScroll(m.listHeight())
		}

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.sources)-1 {
			m.cursor++
			m.adjustListScroll(m.listHeight())
		}

	case key.Matches(msg, keys.Enter):
		if m.cursor < len(m.sources) {
			m.loadSource(m.sources[m.cursor].Path)
		}
	}
	return m, nil
}

// loadSource loads path into the workflow. On failure the picker stays up
// and any previous session is untouched.
func (m *model) loadSource(path string) {
	sess, err := m.wf.Load(path)
	if err != nil {
		m.setError(err)
		return
	}
	m.mode = modeRecord
	m.discardTake()
	m.refreshPrompt()
	if sess.Complete() {
		m.setStatus(fmt.Sprintf("%s: all %d prompts recorded", sess.Source, sess.Total()))
		return
	}
	m.setStatus(fmt.Sprintf("loaded %s, resuming at %d of %d", sess.Source, sess.Number(), sess.Total()))
}

func (m model) updateRecord(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Reset):
		m.discardTake()
		m.wf.Reset()
		m.mode = modePicker
		m.refreshPrompt()
		m.setStatus("session reset")
		return m, listSourcesCmd(m.csvDir)

	case key.Matches(msg, keys.Record):
		return m.toggleRecording()

	case key.Matches(msg, keys.Save):
		if m.take == takeRecording || m.take == takeStopping {
			m.setStatus("stop the recording first")
			return m, nil
		}
		path, err := m.wf.Save(m.audio)
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.take = takeNone
		m.audio = nil
		m.refreshPrompt()
		if m.wf.State() == session.StateComplete {
			m.setStatus(fmt.Sprintf("saved %s, session complete", filepath.Base(path)))
		} else {
			m.setStatus("saved " + filepath.Base(path))
		}

	case key.Matches(msg, keys.Previous):
		if m.take == takeRecording || m.take == takeStopping {
			return m, nil
		}
		if m.wf.Previous() {
			m.discardTake()
			m.refreshPrompt()
			m.status = ""
		}

	case key.Matches(msg, keys.Skip):
		if m.take == takeRecording || m.take == takeStopping {
			return m, nil
		}
		if m.wf.Skip() {
			m.discardTake()
			m.refreshPrompt()
			m.status = ""
		}

	case key.Matches(msg, keys.Edit):
		p, ok := m.current()
		if !ok || m.take == takeRecording || m.take == takeStopping {
			return m, nil
		}
		m.mode = modeEdit
		m.editor.SetValue(p.Text)
		m.editor.CursorEnd()
		return m, m.editor.Focus()

	case key.Matches(msg, keys.Copy):
		p, ok := m.current()
		if !ok {
			return m, nil
		}
		if err := writeClipboard(p.Text); err != nil {
			m.setError(fmt.Errorf("clipboard: %w", err))
			return m, nil
		}
		m.setStatus("prompt copied to clipboard")
	}
	return m, nil
}

func (m model) toggleRecording() (tea.Model, tea.Cmd) {
	if m.rec == nil {
		m.setStatus("no recorder configured")
		return m, nil
	}
	switch m.take {
	case takeRecording:
		m.take = takeStopping
		m.setStatus("stopping...")
		return m, m.stopCmd()
	case takeStopping:
		return m, nil
	}

	if m.wf.State() != session.StateInSession {
		return m, nil
	}
	if err := m.rec.Start(m.ctx); err != nil {
		m.setError(err)
		return m, nil
	}
	m.gen++
	m.take = takeRecording
	m.audio = nil
	m.setStatus("recording, space to stop")
	return m, m.watchCmd()
}

// stopCmd stops the recorder off the update loop; Stop blocks until the
// capture process has flushed.
func (m model) stopCmd() tea.Cmd {
	rec, gen := m.rec, m.gen
	return func() tea.Msg {
		audio, err := rec.Stop()
		return takeMsg{gen: gen, audio: audio, err: err}
	}
}

// watchCmd waits for the capture process to exit on its own.
func (m model) watchCmd() tea.Cmd {
	d, ok := m.rec.(doner)
	if !ok {
		return nil
	}
	done := d.Done()
	if done == nil {
		return nil
	}
	gen := m.gen
	return func() tea.Msg {
		<-done
		return captureExitedMsg{gen: gen}
	}
}

func (m model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		m.mode = modeRecord
		m.editor.Blur()
		m.setStatus("edit cancelled")
		return m, nil

	case msg.Type == tea.KeyEnter:
		m.mode = modeRecord
		m.editor.Blur()
		text := strings.TrimSpace(m.editor.Value())
		if text == "" {
			m.setStatus("prompt text cannot be empty")
			return m, nil
		}
		changed, err := m.wf.Edit(text)
		m.refreshPrompt()
		switch {
		case err != nil:
			m.setError(err)
		case changed:
			m.setStatus("prompt updated")
		default:
			m.setStatus("no change")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// discardTake throws away a pending take. A running capture is stopped and
// its audio dropped.
func (m *model) discardTake() {
	if m.take == takeRecording && m.rec != nil {
		if _, err := m.rec.Stop(); err != nil {
			m.logger.Warn("discard capture", "error", err)
		}
	}
	if m.take != takeNone {
		m.gen++
	}
	m.take = takeNone
	m.audio = nil
}

func (m model) current() (session.Prompt, bool) {
	sess := m.wf.Session()
	if sess == nil {
		return session.Prompt{}, false
	}
	return sess.Current()
}

func (m *model) setStatus(s string) {
	m.status = s
	m.isErr = false
}

func (m *model) setError(err error) {
	m.status = err.Error()
	m.isErr = true
	m.logger.Warn("tui action failed", "error", err)
}

// View renders the full TUI.
func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	var body string
	switch m.mode {
	case modePicker:
		body = m.viewPicker()
	case modeEdit:
		body = m.viewEdit()
	default:
		body = m.viewRecord()
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusBar())
}

func (m model) viewEdit() string {
	title := styleTitle.Render("Edit prompt")
	hint := lipgloss.NewStyle().Foreground(colorDim).Render("enter save | esc cancel")
	box := styleEditBox.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", m.editor.View(), "", hint))
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box)
}

func (m model) statusBar() string {
	var parts []string
	if m.status != "" {
		st := styleStatusBar
		if m.isErr {
			st = styleStatusError
		}
		parts = append(parts, st.Render(m.status))
	}

	var help []string
	switch m.mode {
	case modePicker:
		help = []string{"up/dn select", "enter load", "esc quit"}
	case modeEdit:
		help = []string{"enter save", "esc cancel"}
	default:
		if m.wf.State() == session.StateComplete {
			help = []string{"C-r reset", "esc quit"}
		} else {
			help = []string{"space record", "enter save", "left/right navigate", "e edit", "y copy", "C-r reset", "esc quit"}
		}
	}
	parts = append(parts, styleStatusBar.Render(strings.Join(help, " | ")))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// layout helpers

func (m model) bodyHeight() int {
	if m.height <= 0 {
		return 20
	}
	// status (1) + help (1)
	h := m.height - 2
	if h < 5 {
		h = 5
	}
	return h
}

func (m model) listHeight() int {
	// title (1) + borders (2)
	h := m.bodyHeight() - 3
	if h < 2 {
		h = 2
	}
	return h
}

func (m model) infoWidth() int {
	return 34
}

func (m model) promptWidth() int {
	if m.width <= 0 {
		return 60
	}
	// info panel + borders
	w := m.width - m.infoWidth() - 6
	if w < 20 {
		w = 20
	}
	return w
}

func (m model) promptHeight() int {
	// title (1) + progress (2) + take (2) + borders (2)
	h := m.bodyHeight() - 7
	if h < 3 {
		h = 3
	}
	return h
}

func (m model) editWidth() int {
	w := m.width*60/100 - 8
	if w < 20 {
		w = 20
	}
	return w
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
