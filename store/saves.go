// Package store persists games: JSON save files with a rolling set of
// timestamped backups for history navigation, parquet archives of played
// moves, and DuckDB queries over those archives.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brensch/ringworld/game"
)

const (
	SaveFile          = "game_state.json"
	backupPrefix      = "game_state_"
	backupTimeLayout  = "20060102_150405.000000000"
	DefaultMaxBackups = 10
)

var (
	ErrNoSave    = errors.New("store: no saved game")
	ErrNoHistory = errors.New("store: no previous states available")
	ErrAtLatest  = errors.New("store: already at latest state")
)

// Game is what a save directory can capture and restore.
// rules.Engine satisfies it.
type Game interface {
	Serialize() game.Snapshot
	Restore(game.Snapshot) error
}

// Saves manages one save directory: the current save plus up to MaxBackups
// timestamped backups, oldest pruned first. Previous and Next walk the
// backups; any Save returns to the latest state.
//
// Not safe for concurrent use.
type Saves struct {
	Dir        string
	MaxBackups int
	Now        func() time.Time

	// index into the sorted backups, -1 when at the latest state
	index int
}

func NewSaves(dir string) (*Saves, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	return &Saves{Dir: dir, MaxBackups: DefaultMaxBackups, Now: time.Now, index: -1}, nil
}

func (s *Saves) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// AtLatest reports whether history navigation is at the newest state.
func (s *Saves) AtLatest() bool { return s.index == -1 }

// Save writes the game as the current save and as a new backup.
func (s *Saves) Save(g Game) error {
	snap := g.Serialize()
	ts := s.now()
	snap.Timestamp = ts.UTC().Format(time.RFC3339Nano)

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode save: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.Dir, SaveFile), b); err != nil {
		return err
	}
	if err := writeFileAtomic(s.backupPath(ts), b); err != nil {
		return err
	}
	s.index = -1
	return s.prune()
}

// backupPath names a backup for ts, nudging forward past any existing file
// so two saves in the same instant both survive.
func (s *Saves) backupPath(ts time.Time) string {
	for {
		p := filepath.Join(s.Dir, backupPrefix+ts.UTC().Format(backupTimeLayout)+".json")
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return p
		}
		ts = ts.Add(time.Nanosecond)
	}
}

// Backups lists backup files oldest first.
func (s *Saves) Backups() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, backupPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (s *Saves) prune() error {
	max := s.MaxBackups
	if max <= 0 {
		max = DefaultMaxBackups
	}
	backups, err := s.Backups()
	if err != nil {
		return err
	}
	for len(backups) > max {
		if err := os.Remove(backups[0]); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove old backup: %w", err)
		}
		backups = backups[1:]
	}
	return nil
}

// Load restores the current save. The game is unchanged on error.
func (s *Saves) Load(g Game) error {
	if err := s.loadFile(g, filepath.Join(s.Dir, SaveFile)); err != nil {
		return err
	}
	s.index = -1
	return nil
}

// Previous steps back one backup. Leaving the latest state first saves it
// so Next can return to it.
func (s *Saves) Previous(g Game) error {
	if s.index == -1 {
		if err := s.Save(g); err != nil {
			return err
		}
		backups, err := s.Backups()
		if err != nil {
			return err
		}
		if len(backups) < 2 {
			return ErrNoHistory
		}
		if err := s.loadFile(g, backups[len(backups)-2]); err != nil {
			return err
		}
		s.index = len(backups) - 2
		return nil
	}

	backups, err := s.Backups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return ErrNoHistory
	}
	i := s.index - 1
	if i < 0 {
		i = 0
	}
	if i >= len(backups) {
		i = len(backups) - 1
	}
	if err := s.loadFile(g, backups[i]); err != nil {
		return err
	}
	s.index = i
	return nil
}

// Next steps forward one backup, returning to the current save after the
// newest one.
func (s *Saves) Next(g Game) error {
	backups, err := s.Backups()
	if err != nil {
		return err
	}
	if len(backups) == 0 || s.index == -1 {
		return ErrAtLatest
	}
	if s.index < len(backups)-1 {
		if err := s.loadFile(g, backups[s.index+1]); err != nil {
			return err
		}
		s.index++
		return nil
	}
	return s.Load(g)
}

// Clear deletes every save and backup in the directory.
func (s *Saves) Clear() error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return fmt.Errorf("read save dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, e.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}
	s.index = -1
	return nil
}

func (s *Saves) loadFile(g Game, path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoSave, filepath.Base(path))
	}
	if err != nil {
		return fmt.Errorf("read save: %w", err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode save %s: %w", filepath.Base(path), err)
	}
	if err := g.Restore(snap); err != nil {
		return fmt.Errorf("restore %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames
// it over path.
func writeFileAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
