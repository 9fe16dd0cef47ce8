package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// OpenArchiveDB opens an in-memory DuckDB with a "moves" view over every
// parquet file matching the globs. Batches still being written carry a
// .parquet.tmp suffix, so *.parquet globs never see them.
func OpenArchiveDB(globs ...string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	// ignore errors for compatibility across versions
	_, _ = db.Exec("PRAGMA threads=4")

	quoted := make([]string, 0, len(globs))
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		quoted = append(quoted, "'"+escapeSQLString(g)+"'")
	}
	if len(quoted) == 0 {
		_ = db.Close()
		return nil, fmt.Errorf("no archive globs given")
	}

	sqlText := `CREATE OR REPLACE VIEW moves AS
		SELECT * FROM read_parquet([` + strings.Join(quoted, ",") + `], filename=true, union_by_name=true)`
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create moves view: %w", err)
	}
	return db, nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Summary aggregates an archive.
type Summary struct {
	Games    int64
	Moves    int64
	RedWins  int64
	BlueWins int64
	Draws    int64
	AvgPlies float64
	MaxPlies int64
}

// Summarize counts games, results and game lengths over the moves view.
func Summarize(ctx context.Context, db *sql.DB) (Summary, error) {
	const query = `WITH games AS (
		SELECT game_id, MIN(winner) AS winner, COUNT(*) AS plies
		FROM moves
		GROUP BY game_id
	)
	SELECT
		COUNT(*)::BIGINT,
		COALESCE(SUM(plies), 0)::BIGINT,
		COUNT(*) FILTER (WHERE winner = 'red')::BIGINT,
		COUNT(*) FILTER (WHERE winner = 'blue')::BIGINT,
		COUNT(*) FILTER (WHERE winner NOT IN ('red', 'blue'))::BIGINT,
		COALESCE(AVG(plies), 0)::DOUBLE,
		COALESCE(MAX(plies), 0)::BIGINT
	FROM games`

	var s Summary
	err := db.QueryRowContext(ctx, query).Scan(&s.Games, &s.Moves, &s.RedWins, &s.BlueWins, &s.Draws, &s.AvgPlies, &s.MaxPlies)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize archive: %w", err)
	}
	return s, nil
}

// SourceCount is the number of games per archive source.
type SourceCount struct {
	Source string
	Games  int64
}

func GamesBySource(ctx context.Context, db *sql.DB) ([]SourceCount, error) {
	rows, err := db.QueryContext(ctx, `SELECT source, COUNT(DISTINCT game_id)::BIGINT AS games
		FROM moves GROUP BY source ORDER BY games DESC, source`)
	if err != nil {
		return nil, fmt.Errorf("games by source: %w", err)
	}
	defer rows.Close()

	var out []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Games); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
