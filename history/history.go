package history

// This file contains shared history utilities for loading and selecting
// the state snapshots of previous test runs.

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/perfgo/testkeeper/model"
	"github.com/perfgo/testkeeper/state"
	"github.com/rs/zerolog"
)

type Entry struct {
	State    *model.TestRunState
	FullPath string
}

// Pending returns the records of the run that are not cleaned yet.
func (e Entry) Pending() []model.Entry {
	var pending []model.Entry
	for _, r := range e.State.Entries() {
		if !r.Resource.Base().Cleaned {
			pending = append(pending, r)
		}
	}
	return pending
}

// LoadEntries loads every state snapshot below dir, newest first. Files
// that are not snapshots are skipped; unparsable ones with a warning.
func LoadEntries(logger zerolog.Logger, dir string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		s, err := state.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to parse state file")
			return nil
		}
		if s.TestInfo.TestID == "" {
			logger.Debug().Str("path", path).Msg("Skipping file without test id")
			return nil
		}

		entries = append(entries, Entry{
			State:    s,
			FullPath: path,
		})
		return nil
	})

	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no test runs found in %s", dir)
		}
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	// Sort by start time (newest first)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].State.TestInfo.StartTime.After(entries[j].State.TestInfo.StartTime)
	})

	return entries, nil
}

// Find selects an entry from a newest-first list. arg is either an index
// counting back from the newest run (0 for the last, -1 for the one before)
// or a case-insensitive test id prefix.
func Find(entries []Entry, arg string) (*Entry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no history entries found")
	}
	if arg == "" {
		arg = "0"
	}

	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(entries) {
			return nil, fmt.Errorf("index %s out of range (only %d history entries)", arg, len(entries))
		}
		return &entries[index], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if strings.HasPrefix(strings.ToLower(entries[i].State.TestInfo.TestID), prefix) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no history entry found matching ID: %s", arg)
}
