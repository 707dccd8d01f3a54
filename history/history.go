// Package history records the last watched episode per title in a
// tab-separated side file. Purely quality-of-life: losing the file loses
// nothing but the episode cursor position.
package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aniterm/aniterm/config"
)

// Columns: source, anime id, title, episode label.
const numColumns = 4

// Entry is one remembered title.
type Entry struct {
	Source  string
	AnimeID string
	Title   string
	Episode string
}

// Load reads every entry. A missing file is an empty history.
func Load() ([]Entry, error) {
	f, err := os.Open(config.HistoryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != numColumns {
			continue
		}
		entries = append(entries, Entry{
			Source:  fields[0],
			AnimeID: fields[1],
			Title:   fields[2],
			Episode: fields[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entries, nil
}

// Lookup returns the entry for one title, or nil.
func Lookup(source, animeID string) *Entry {
	entries, err := Load()
	if err != nil {
		return nil
	}
	for i := range entries {
		if entries[i].Source == source && entries[i].AnimeID == animeID {
			return &entries[i]
		}
	}
	return nil
}

// Save writes or replaces the entry for its title. The file is rewritten
// through a temp file and renamed so a crash can't corrupt it.
func Save(entry Entry) error {
	path := config.HistoryPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	entries, _ := Load()
	replaced := false
	for i, e := range entries {
		if e.Source == entry.Source && e.AnimeID == entry.AnimeID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "history-*.tsv")
	if err != nil {
		return fmt.Errorf("creating temp history: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Source, e.AnimeID, sanitize(e.Title), e.Episode)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing history: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// sanitize keeps titles from breaking the TSV format.
func sanitize(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}
