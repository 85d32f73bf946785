package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// LeaderboardEntry is one ranked round.
type LeaderboardEntry struct {
	RoundID string
	Score   int
	Killer  string
	Ticks   int64
	Level   int
	Source  string
}

// LeaderboardStats aggregates every archived round.
type LeaderboardStats struct {
	Rounds     int64
	BestScore  int
	AvgScore   float64
	AvgTicks   float64
	WallDeaths int64
}

// Leaderboard queries round parquet files under one or more data dirs with
// an in-memory DuckDB. The file set is fixed when the leaderboard is opened.
type Leaderboard struct {
	db *sql.DB
}

// OpenLeaderboard exposes every rounds/**/*.parquet below roots as the view
// "rounds". Files still under a tmp/ directory are excluded.
func OpenLeaderboard(roots ...string) (*Leaderboard, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	_, _ = db.Exec("PRAGMA threads=4")

	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" || !hasParquet(filepath.Join(root, RoundsDir)) {
			continue
		}
		glob := filepath.Join(root, RoundsDir, "**", "*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}

	var sqlText string
	if len(globs) == 0 {
		sqlText = `CREATE OR REPLACE VIEW rounds AS
			SELECT * FROM (
				SELECT
					NULL::VARCHAR AS round_id,
					NULL::BIGINT AS seed,
					NULL::BIGINT AS ticks,
					NULL::INTEGER AS score,
					NULL::VARCHAR AS killer,
					NULL::INTEGER AS xp,
					NULL::INTEGER AS level,
					NULL::INTEGER AS bot_deaths,
					NULL::BIGINT AS started_at_ms,
					NULL::BIGINT AS ended_at_ms,
					NULL::VARCHAR AS source,
					NULL::VARCHAR AS policy,
					NULL::VARCHAR AS filename
			) WHERE 1=0`
	} else {
		sqlText = `CREATE OR REPLACE VIEW rounds AS
			SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
			WHERE NOT contains(filename, '/tmp/')`
	}
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create rounds view: %w", err)
	}
	return &Leaderboard{db: db}, nil
}

func hasParquet(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == "tmp" {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".parquet") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (l *Leaderboard) Close() error {
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// Top returns the n highest-scoring rounds. Equal scores rank the shorter
// round first. A non-empty source restricts the ranking to that source.
func (l *Leaderboard) Top(ctx context.Context, n int, source string) ([]LeaderboardEntry, error) {
	if l.db == nil {
		return nil, ErrClosed
	}
	if n <= 0 {
		n = 10
	}
	rows, err := l.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT round_id, score, coalesce(killer, ''), ticks, level, coalesce(source, '')
		FROM rounds
		WHERE ? = '' OR source = ?
		ORDER BY score DESC, ticks ASC, round_id ASC
		LIMIT %d`, n), source, source)
	if err != nil {
		return nil, fmt.Errorf("query top rounds: %w", err)
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.RoundID, &e.Score, &e.Killer, &e.Ticks, &e.Level, &e.Source); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats aggregates all rounds.
func (l *Leaderboard) Stats(ctx context.Context) (LeaderboardStats, error) {
	var st LeaderboardStats
	if l.db == nil {
		return st, ErrClosed
	}
	err := l.db.QueryRowContext(ctx, `
		SELECT
			count(*),
			coalesce(max(score), 0),
			coalesce(avg(score), 0),
			coalesce(avg(ticks), 0),
			count(*) FILTER (WHERE killer = 'wall')
		FROM rounds`).Scan(&st.Rounds, &st.BestScore, &st.AvgScore, &st.AvgTicks, &st.WallDeaths)
	if err != nil {
		return st, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}
