package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGame tags each state with a single small circle whose id is the marker.
type fakeGame struct {
	snap    game.Snapshot
	failing bool
}

func state(marker int) game.Snapshot {
	return game.Snapshot{
		Turn:         game.Red,
		Phase:        game.Placement,
		SmallCircles: []game.CircleRecord{{ID: marker, Pos: [2]float64{1, 2}, Color: game.Blue}},
	}
}

func (f *fakeGame) Serialize() game.Snapshot { return f.snap }

func (f *fakeGame) Restore(s game.Snapshot) error {
	if f.failing {
		return errors.New("restore failed")
	}
	f.snap = s
	return nil
}

func (f *fakeGame) marker() int { return f.snap.SmallCircles[0].ID }

func newSaves(t *testing.T) *Saves {
	t.Helper()
	s, err := NewSaves(filepath.Join(t.TempDir(), "saves"))
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.Now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return s
}

func TestSaveLoad(t *testing.T) {
	s := newSaves(t)
	require.NoError(t, s.Save(&fakeGame{snap: state(7)}))

	g := &fakeGame{snap: state(0)}
	require.NoError(t, s.Load(g))
	assert.Equal(t, 7, g.marker())
	assert.NotEmpty(t, g.snap.Timestamp)

	backups, err := s.Backups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	leftovers, _ := filepath.Glob(filepath.Join(s.Dir, "*.tmp"))
	assert.Empty(t, leftovers)
}

func TestLoad_Missing(t *testing.T) {
	s := newSaves(t)
	err := s.Load(&fakeGame{})
	assert.ErrorIs(t, err, ErrNoSave)
}

func TestLoad_FailureKeepsGame(t *testing.T) {
	s := newSaves(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, SaveFile), []byte("{broken"), 0o644))
	g := &fakeGame{snap: state(3)}
	assert.Error(t, s.Load(g))
	assert.Equal(t, 3, g.marker())
}

func TestSave_PrunesBackups(t *testing.T) {
	s := newSaves(t)
	s.MaxBackups = 3
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(&fakeGame{snap: state(i)}))
	}
	backups, err := s.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 3)

	// the oldest two are gone
	g := &fakeGame{}
	require.NoError(t, s.loadFile(g, backups[0]))
	assert.Equal(t, 2, g.marker())
}

func TestSave_SameInstant(t *testing.T) {
	s := newSaves(t)
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return fixed }
	require.NoError(t, s.Save(&fakeGame{snap: state(1)}))
	require.NoError(t, s.Save(&fakeGame{snap: state(2)}))
	backups, err := s.Backups()
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestHistoryNavigation(t *testing.T) {
	s := newSaves(t)
	g := &fakeGame{}
	for _, m := range []int{1, 2, 3} {
		g.snap = state(m)
		require.NoError(t, s.Save(g))
	}
	// unsaved current position
	g.snap = state(4)

	steps := []struct {
		move func(Game) error
		want int
	}{
		{s.Previous, 3},
		{s.Previous, 2},
		{s.Previous, 1},
		{s.Previous, 1},
		{s.Next, 2},
		{s.Next, 3},
		{s.Next, 4},
		{s.Next, 4},
	}
	for i, st := range steps {
		require.NoError(t, st.move(g), "step %d", i)
		assert.Equal(t, st.want, g.marker(), "step %d", i)
	}
	assert.True(t, s.AtLatest())
	assert.ErrorIs(t, s.Next(g), ErrAtLatest)
}

func TestPrevious_NoHistory(t *testing.T) {
	s := newSaves(t)
	g := &fakeGame{snap: state(1)}
	assert.ErrorIs(t, s.Previous(g), ErrNoHistory)
	assert.Equal(t, 1, g.marker())
}

func TestPrevious_RestoreFailure(t *testing.T) {
	s := newSaves(t)
	g := &fakeGame{snap: state(1)}
	require.NoError(t, s.Save(g))
	g.snap = state(2)
	g.failing = true
	assert.Error(t, s.Previous(g))
	assert.True(t, s.AtLatest())
	assert.Equal(t, 2, g.marker())
}

func TestClear(t *testing.T) {
	s := newSaves(t)
	require.NoError(t, s.Save(&fakeGame{snap: state(1)}))
	require.NoError(t, s.Clear())
	backups, err := s.Backups()
	require.NoError(t, err)
	assert.Empty(t, backups)
	assert.ErrorIs(t, s.Load(&fakeGame{}), ErrNoSave)
}

func TestSaves_WithEngine(t *testing.T) {
	cfg := rules.DefaultConfig()
	cfg.Board.Reduced = true
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := rules.New(cfg)
	require.NoError(t, err)

	moves := e.ValidMoves()
	require.NotEmpty(t, moves)
	require.NoError(t, e.MakePlacementMove(moves[0].ID, game.Red))

	s := newSaves(t)
	require.NoError(t, s.Save(e))

	e.Reset()
	require.Equal(t, 0, e.Board().CountSmall(game.Red))

	require.NoError(t, s.Load(e))
	assert.Equal(t, game.Red, e.Board().Small[moves[0].ID].Color)
	assert.Equal(t, game.Rotation, e.State().Phase)
	assert.Equal(t, game.Red, e.State().Turn)
}

func sampleRows() []MoveRow {
	return []MoveRow{
		{GameID: "g1", Ply: 0, Color: "red", Phase: "placement", Tier: "small", TargetID: 4, X: 300, Y: 279, RedSmall: 1, Winner: "red", Reduced: true, Source: "test"},
		{GameID: "g1", Ply: 1, Color: "red", Phase: "rotation", Tier: "medium", TargetID: 0, X: 300, Y: 250, RotationType: "medium", RedSmall: 1, Winner: "red", Reduced: true, Source: "test"},
		{GameID: "g1", Ply: 2, Color: "blue", Phase: "placement", Tier: "small", TargetID: 9, RedSmall: 1, BlueSmall: 1, Winner: "red", Reduced: true, Source: "test"},
		{GameID: "g2", Ply: 0, Color: "red", Phase: "placement", Tier: "small", TargetID: 1, RedSmall: 1, Winner: "grey", Source: "other", ModelPath: "model.onnx"},
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rows := sampleRows()
	path, err := WriteArchiveBatch(dir, rows)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	pending, _ := os.ReadDir(filepath.Join(dir, "tmp"))
	assert.Empty(t, pending)

	got, err := ReadArchive(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestSummarize(t *testing.T) {
	if testing.Short() {
		t.Skip("duckdb")
	}
	dir := t.TempDir()
	_, err := WriteArchiveBatch(dir, sampleRows())
	require.NoError(t, err)

	db, err := OpenArchiveDB(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	sum, err := Summarize(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, Summary{Games: 2, Moves: 4, RedWins: 1, BlueWins: 0, Draws: 1, AvgPlies: 2, MaxPlies: 3}, sum)

	bySource, err := GamesBySource(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []SourceCount{{Source: "other", Games: 1}, {Source: "test", Games: 1}}, bySource)
}

func TestSummarize_RecursiveGlobSkipsInFlight(t *testing.T) {
	if testing.Short() {
		t.Skip("duckdb")
	}
	dir := filepath.Join(t.TempDir(), "archive")
	path, err := WriteArchiveBatch(dir, sampleRows())
	require.NoError(t, err)

	// A batch caught mid-write sits in dir/tmp with a .tmp suffix.
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp", "batch_1.parquet.tmp"), b, 0o644))

	db, err := OpenArchiveDB(filepath.Join(dir, "**", "*.parquet"))
	require.NoError(t, err)
	defer db.Close()

	sum, err := Summarize(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Games)
	assert.Equal(t, int64(4), sum.Moves)
}

func TestOpenArchiveDB_NoGlobs(t *testing.T) {
	_, err := OpenArchiveDB(" ")
	assert.Error(t, err)
}
