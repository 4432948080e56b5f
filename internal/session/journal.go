package session

import "time"

// Take describes a recording that was written to disk.
type Take struct {
	RunID   string
	Source  string
	Number  int
	Path    string
	Size    int64
	SavedAt time.Time
}

// Edit describes a prompt whose text was changed by the reader.
type Edit struct {
	Source   string
	Position int
	Row      int
	Old      string
	New      string
	EditedAt time.Time
}

// Journal receives saves and edits after they succeed. Journal failures are
// logged and never undo the save or edit.
type Journal interface {
	RecordTake(Take) error
	RecordEdit(Edit) error
}
