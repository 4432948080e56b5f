// Package session holds the recording workflow: loading a prompt source,
// resuming from the recordings already on disk, and walking a cursor through
// the prompts while saving one recording per prompt.
package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

var (
	ErrInvalidFilenameFormat = errors.New("invalid filename format: expected DD_MM_YYYY_name.csv")
	ErrMissingColumn         = errors.New("missing prompt column")
	ErrSourceRead            = errors.New("read source")
	ErrSourceWrite           = errors.New("write source")
	ErrRecordingWrite        = errors.New("write recording")

	ErrNoSession = errors.New("no session loaded")
	ErrComplete  = errors.New("all prompts recorded")
	ErrNoAudio   = errors.New("no audio captured")
	ErrDirLocked = errors.New("recording folder is in use by another process")
)

var dateTokenRe = regexp.MustCompile(`^(\d{2}_\d{2}_\d{4})`)

// DateToken extracts the leading DD_MM_YYYY token of a source filename. The
// digits are not checked against a calendar.
func DateToken(filename string) (string, error) {
	m := dateTokenRe.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilenameFormat, filepath.Base(filename))
	}
	return m[1], nil
}

// Prompt is one line to be read aloud. Row is its 0-based data row in the
// source file, so edits land back on the row they came from even when blank
// rows were skipped at load.
type Prompt struct {
	Text string
	Row  int
}

type Session struct {
	Source     string // file name
	SourcePath string
	Date       string
	Column     string
	Prompts    []Prompt
	Dir        string
	Ext        string
	Cursor     int
}

func (s *Session) Total() int {
	return len(s.Prompts)
}

func (s *Session) Complete() bool {
	return s.Cursor >= len(s.Prompts)
}

// Current returns the prompt under the cursor; ok is false once complete.
func (s *Session) Current() (Prompt, bool) {
	if s.Complete() || s.Cursor < 0 {
		return Prompt{}, false
	}
	return s.Prompts[s.Cursor], true
}

// Number is the 1-based recording number for the prompt under the cursor.
func (s *Session) Number() int {
	return s.Cursor + 1
}

// RecordingPath is where recording n of this session is written.
func (s *Session) RecordingPath(n int) string {
	return filepath.Join(s.Dir, strconv.Itoa(n)+"."+s.Ext)
}

func (s *Session) Completed() int {
	if s.Cursor > len(s.Prompts) {
		return len(s.Prompts)
	}
	return s.Cursor
}

func (s *Session) Remaining() int {
	return len(s.Prompts) - s.Completed()
}

// Progress is the completed fraction in [0, 1]. An empty session counts as
// finished.
func (s *Session) Progress() float64 {
	if len(s.Prompts) == 0 {
		return 1
	}
	return float64(s.Completed()) / float64(len(s.Prompts))
}
