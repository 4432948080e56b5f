package search

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Zuo-Peng/readaloud/internal/index"
)

type Result struct {
	SourceKey     string
	Position      int // 0-based prompt position
	Row           int
	DateToken     string
	Text          string
	Snippet       string
	Rank          float64
	RecordingPath string
	Recorded      bool
}

// Number is the 1-based recording number for the prompt.
func (r Result) Number() int {
	return r.Position + 1
}

type Options struct {
	Query  string
	Source string // "" = all sources
	Date   string // "" = all dates, otherwise DD_MM_YYYY
	Limit  int
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// makeSnippet extracts a snippet around the first occurrence of query in text.
func makeSnippet(text, query string, contextChars int) string {
	lower := strings.ToLower(text)
	qLower := strings.ToLower(query)
	idx := strings.Index(lower, qLower)
	if idx < 0 || len(lower) != len(text) {
		// no match (or case folding changed byte offsets), return head
		if len([]rune(text)) > contextChars*2 {
			return string([]rune(text)[:contextChars*2]) + "..."
		}
		return text
	}
	runes := []rune(text)
	qRunes := []rune(query)
	runePos := len([]rune(text[:idx]))
	start := runePos - contextChars
	if start < 0 {
		start = 0
	}
	end := runePos + len(qRunes) + contextChars
	if end > len(runes) {
		end = len(runes)
	}
	prefix := ""
	suffix := ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	// wrap the matched part with markers
	snippet := string(runes[start:runePos]) +
		">>>" + string(runes[runePos:runePos+len(qRunes)]) + "<<<" +
		string(runes[runePos+len(qRunes):end])
	return prefix + snippet + suffix
}

func Search(db *index.DB, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if strings.TrimSpace(opts.Query) == "" {
		return nil, nil
	}

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = searchLike(db, opts)
	} else {
		results, err = searchFTS(db, opts)
	}
	if err != nil {
		return nil, err
	}

	for i := range results {
		r := &results[i]
		if r.RecordingPath == "" {
			continue
		}
		if info, err := os.Stat(r.RecordingPath); err == nil && !info.IsDir() {
			r.Recorded = true
		}
	}
	return results, nil
}

func filters(opts Options) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	if opts.Source != "" {
		conditions = append(conditions, "s.source_key = ?")
		args = append(args, opts.Source)
	}
	if opts.Date != "" {
		conditions = append(conditions, "s.date_token = ?")
		args = append(args, opts.Date)
	}
	return conditions, args
}

func searchFTS(db *index.DB, opts Options) ([]Result, error) {
	conditions := []string{"prompts_fts MATCH ?"}
	args := []interface{}{opts.Query}

	more, moreArgs := filters(opts)
	conditions = append(conditions, more...)
	args = append(args, moreArgs...)

	query := fmt.Sprintf(`
		SELECT
			p.source_key,
			p.position,
			p.row_index,
			s.date_token,
			s.recording_dir,
			s.extension,
			p.text,
			snippet(prompts_fts, 0, '>>>','<<<', '...', 24) as snip,
			bm25(prompts_fts) as rank
		FROM prompts_fts
		JOIN prompts p ON prompts_fts.rowid = p.rowid
		JOIN sources s ON p.source_key = s.source_key
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	return scanResults(rows, "")
}

func searchLike(db *index.DB, opts Options) ([]Result, error) {
	// LIKE match for CJK substring search
	conditions := []string{"p.text LIKE ?"}
	args := []interface{}{"%" + opts.Query + "%"}

	more, moreArgs := filters(opts)
	conditions = append(conditions, more...)
	args = append(args, moreArgs...)

	query := fmt.Sprintf(`
		SELECT
			p.source_key,
			p.position,
			p.row_index,
			s.date_token,
			s.recording_dir,
			s.extension,
			p.text,
			'' as snip,
			0 as rank
		FROM prompts p
		JOIN sources s ON p.source_key = s.source_key
		WHERE %s
		ORDER BY s.date_token DESC, p.position
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	return scanResults(rows, opts.Query)
}

// scanResults reads result rows. When snippetQuery is set the snippet is
// built in Go instead of by FTS.
func scanResults(rows *sql.Rows, snippetQuery string) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		var dir, ext string
		if err := rows.Scan(
			&r.SourceKey, &r.Position, &r.Row,
			&r.DateToken, &dir, &ext,
			&r.Text, &r.Snippet, &r.Rank,
		); err != nil {
			return nil, err
		}
		if snippetQuery != "" {
			r.Snippet = makeSnippet(r.Text, snippetQuery, 30)
		}
		if dir != "" && ext != "" {
			r.RecordingPath = filepath.Join(dir, fmt.Sprintf("%d.%s", r.Number(), ext))
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
