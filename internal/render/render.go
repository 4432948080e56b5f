package render

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/readaloud/internal/index"
)

const (
	colorReset   = "\033[0m"
	colorDone    = "\033[1;32m" // bold green
	colorPending = "\033[1;34m" // bold blue
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // bold red for keyword highlights
)

const (
	markRecorded = "●"
	markPending  = "○"
)

type Options struct {
	HitPosition int    // 0-based prompt position, -1 for none
	Context     int    // prompts before/after hit to show
	Width       int    // wrap width (0 = no wrap)
	Query       string // search query for keyword highlighting
}

// fts5Operators are FTS5 operators that should not be highlighted as keywords.
var fts5Operators = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NEAR": true,
	"and": true, "or": true, "not": true, "near": true,
}

// HighlightKeywords wraps case-insensitive matches of query terms in bold red ANSI codes.
func HighlightKeywords(text, query string) string {
	if query == "" {
		return text
	}
	var filtered []string
	for _, t := range strings.Fields(query) {
		t = strings.Trim(t, `"*`)
		if t != "" && !fts5Operators[t] {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return text
	}
	for _, term := range filtered {
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			rest := text[i:]
			restLower := strings.ToLower(rest)
			if len(restLower) != len(rest) {
				break
			}
			idx := strings.Index(restLower, lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			orig := text[pos : pos+len(term)]
			replacement := colorBoldRed + orig + colorReset
			text = text[:pos] + replacement + text[pos+len(term):]
			i = pos + len(replacement)
		}
	}
	return text
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// WrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, skipping ANSI escape sequences when measuring width.
// Breaks prefer the last space that fits.
func WrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0
	lastSpace := -1 // byte offset in cur just after the last space
	widthAtSpace := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth && visW > 0 {
			if r == ' ' {
				result = append(result, cur.String())
				cur.Reset()
				visW, lastSpace = 0, -1
				i += size
				continue
			}
			if lastSpace > 0 {
				s := cur.String()
				result = append(result, strings.TrimRight(s[:lastSpace], " "))
				cur.Reset()
				cur.WriteString(s[lastSpace:])
				visW -= widthAtSpace
			} else {
				result = append(result, cur.String())
				cur.Reset()
				visW = 0
			}
			lastSpace = -1
		}

		cur.WriteRune(r)
		visW += rw
		if r == ' ' {
			lastSpace = cur.Len()
			widthAtSpace = visW
		}
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// WrapText wraps every line of text to maxWidth.
func WrapText(text string, maxWidth int) string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		out = append(out, WrapLine(l, maxWidth)...)
	}
	return strings.Join(out, "\n")
}

// RenderSource renders the prompts of an indexed source and returns the
// content, the 0-based line number of the hit prompt header (-1 if no hit),
// and any error.
func RenderSource(db *index.DB, sourceKey string, opts Options) (string, int, error) {
	if opts.Context == 0 {
		opts.Context = 10
	}
	if opts.Context < 0 {
		opts.Context = 1000000 // no limit
	}

	src, err := db.GetSourceByKey(sourceKey)
	if err != nil {
		return "", -1, fmt.Errorf("get source: %w", err)
	}
	if src == nil {
		return "", -1, fmt.Errorf("source not found: %s", sourceKey)
	}

	prompts, hitIdx, startPos, totalCount, err := db.GetPromptsWindow(sourceKey, opts.HitPosition, opts.Context)
	if err != nil {
		return "", -1, fmt.Errorf("get prompts: %w", err)
	}

	if totalCount == 0 {
		return "(no prompts)", -1, nil
	}

	takes, err := db.LatestTakes(sourceKey)
	if err != nil {
		return "", -1, fmt.Errorf("get takes: %w", err)
	}

	skipAfter := totalCount - startPos - len(prompts)

	var b strings.Builder
	hitLine := -1
	lineCount := 0
	wrapW := opts.Width

	writeLine := func(s string) {
		for _, wl := range WrapLine(s, wrapW) {
			b.WriteString(wl)
			b.WriteString("\n")
			lineCount++
		}
	}

	writeLine(fmt.Sprintf("%s--- %s [%s] %s ---%s", colorDim, sourceKey, src.ColumnName, src.RecordingDir, colorReset))

	if startPos > 0 {
		writeLine(fmt.Sprintf("%s... (%d prompts before) ...%s", colorDim, startPos, colorReset))
	}

	for i, p := range prompts {
		isHit := i == hitIdx
		if isHit {
			hitLine = lineCount
		}

		n := p.Position + 1
		path := src.RecordingPath(n)
		mark, color := markPending, colorPending
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			mark, color = markRecorded, colorDone
		}

		detail := fmt.Sprintf("%d.%s", n, src.Extension)
		if t, ok := takes[n]; ok && !t.SavedAt.IsZero() {
			detail += "  " + t.SavedAt.Local().Format("2006-01-02 15:04")
		}

		if isHit {
			writeLine(fmt.Sprintf("%s>> %s %s <<%s", colorHit, mark, detail, colorReset))
		} else {
			writeLine(fmt.Sprintf("%s%s%s %s%s%s", color, mark, colorReset, colorDim, detail, colorReset))
		}

		text := HighlightKeywords(p.Text, opts.Query)
		for _, tl := range strings.Split(indentLines(text, "  "), "\n") {
			writeLine(tl)
		}
		writeLine("")
	}

	if skipAfter > 0 {
		writeLine(fmt.Sprintf("%s... (%d prompts after) ...%s", colorDim, skipAfter, colorReset))
	}

	return b.String(), hitLine, nil
}
