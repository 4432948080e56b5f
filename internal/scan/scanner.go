package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type FileInfo struct {
	Name  string
	Path  string
	Mtime int64
	Size  int64
}

// NextNumber returns one more than the highest integer-named recording in
// dir, or 1 when the directory is missing or holds none. A recording is a
// regular file whose extension is ext and whose name before the first "."
// is a base-10 integer; anything else is ignored.
func NextNumber(dir, ext string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, err
	}

	suffix := "." + strings.TrimPrefix(ext, ".")
	highest := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != suffix {
			continue
		}
		stem, _, _ := strings.Cut(name, ".")
		n, err := strconv.Atoi(stem)
		if err != nil || n < 1 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// ListSources returns the CSV files directly inside csvDir, sorted by name.
// The directory is created when it does not exist yet.
func ListSources(csvDir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(csvDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := os.MkdirAll(csvDir, 0o755); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // vanished between ReadDir and Info
		}
		files = append(files, FileInfo{
			Name:  e.Name(),
			Path:  filepath.Join(csvDir, e.Name()),
			Mtime: info.ModTime().Unix(),
			Size:  info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
