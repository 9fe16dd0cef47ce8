package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const archiveSchema = "ringworld_move_v1"

// MoveRow is one move of an archived game. Counts are taken after the move
// (and, for rotations, after the rotation completed). Winner is the final
// result of the whole game, "grey" for a draw or an unfinished game.
type MoveRow struct {
	GameID string `parquet:"game_id,dict"`
	Ply    int32  `parquet:"ply"`

	Color        string  `parquet:"color,dict"`
	Phase        string  `parquet:"phase,dict"`
	Tier         string  `parquet:"tier,dict"`
	TargetID     int32   `parquet:"target_id"`
	X            float32 `parquet:"x"`
	Y            float32 `parquet:"y"`
	RotationType string  `parquet:"rotation_type,dict,optional"`

	RedSmall  int32 `parquet:"red_small"`
	BlueSmall int32 `parquet:"blue_small"`
	RedLarge  int32 `parquet:"red_large"`
	BlueLarge int32 `parquet:"blue_large"`

	Winner  string `parquet:"winner,dict"`
	Reduced bool   `parquet:"reduced"`
	Source  string `parquet:"source,dict"`

	// ModelPath is the ONNX model that chose the moves, empty for the
	// heuristic player.
	ModelPath string `parquet:"model_path,dict,optional"`
}

// WriteArchiveBatch writes rows to a new batch_<nanos>.parquet in outDir.
// The file is built under outDir/tmp and renamed into place, so readers
// never see a partial file.
func WriteArchiveBatch(outDir string, rows []MoveRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", archiveSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

// ReadArchive loads every row of one archive file.
func ReadArchive(path string) ([]MoveRow, error) {
	rows, err := parquet.ReadFile[MoveRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}
