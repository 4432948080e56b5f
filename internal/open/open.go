package open

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Zuo-Peng/readaloud/internal/index"
)

// OpenSource opens the CSV behind sourceKey in $EDITOR, positioned on the
// line of the prompt at the 0-based position (-1 for the top).
func OpenSource(db *index.DB, sourceKey string, position int) error {
	src, err := db.GetSourceByKey(sourceKey)
	if err != nil {
		return fmt.Errorf("get source: %w", err)
	}
	if src == nil {
		return fmt.Errorf("source not found: %s", sourceKey)
	}

	filePath := src.FilePath
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file not found: %s", filePath)
	}

	// header is line 1, data row r is line r+2
	lineNum := 1
	if position >= 0 {
		prompts, err := db.GetPrompts(sourceKey)
		if err == nil {
			for _, p := range prompts {
				if p.Position == position {
					lineNum = p.Row + 2
					break
				}
			}
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	return run(editorCommand(editor, filePath, lineNum))
}

func editorCommand(editor, filePath string, lineNum int) *exec.Cmd {
	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nvim"):
		return exec.Command(editor, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(editor, "code"):
		return exec.Command(editor, "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(editor, "less"):
		return exec.Command(editor, "+"+strconv.Itoa(lineNum), filePath)
	default:
		return exec.Command(editor, filePath)
	}
}

// RecordingPath resolves the recording file for a prompt and reports whether
// it exists.
func RecordingPath(db *index.DB, sourceKey string, position int) (string, bool, error) {
	src, err := db.GetSourceByKey(sourceKey)
	if err != nil {
		return "", false, fmt.Errorf("get source: %w", err)
	}
	if src == nil {
		return "", false, fmt.Errorf("source not found: %s", sourceKey)
	}
	if position < 0 || position >= src.PromptCount {
		return "", false, fmt.Errorf("position %d out of range (%d prompts)", position, src.PromptCount)
	}
	path := src.RecordingPath(position + 1)
	info, err := os.Stat(path)
	return path, err == nil && !info.IsDir(), nil
}

// PlayRecording plays the recording for the prompt at position with the
// given player command. The path is appended after args.
func PlayRecording(ctx context.Context, db *index.DB, sourceKey string, position int, player string, args []string) error {
	path, ok, err := RecordingPath(db, sourceKey, position)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not recorded yet: %s", path)
	}
	if player == "" {
		return fmt.Errorf("no player configured")
	}
	argv := append(append([]string{}, args...), path)
	return run(exec.CommandContext(ctx, player, argv...))
}

func run(cmd *exec.Cmd) error {
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
