package arena

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
)

const (
	matchesTable    = "matches"
	placementsTable = "placements"
)

// Standing is one leaderboard row.
type Standing struct {
	Name         string
	Matches      int
	Wins         int
	AveragePlace float64
}

// ResultStore keeps match results in sqlite.
type ResultStore struct {
	db     *sql.DB
	logger *log.Logger
}

func NewResultStore(path string, logger *log.Logger) (*ResultStore, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows one writer; one connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	store := &ResultStore{db: db, logger: logger}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *ResultStore) createTables() error {
	const createTablesSQL = `
	CREATE TABLE IF NOT EXISTS ` + matchesTable + ` (
		id TEXT PRIMARY KEY,
		winner TEXT NOT NULL,
		reason TEXT NOT NULL,
		frames INTEGER NOT NULL,
		players INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS ` + placementsTable + ` (
		match_id TEXT NOT NULL REFERENCES ` + matchesTable + `(id) ON DELETE CASCADE,
		player_name TEXT NOT NULL,
		place INTEGER NOT NULL,
		frames INTEGER NOT NULL,
		survived INTEGER NOT NULL,
		PRIMARY KEY (match_id, player_name)
	);
	CREATE INDEX IF NOT EXISTS placements_player ON ` + placementsTable + ` (player_name);`

	if _, err := s.db.Exec(createTablesSQL); err != nil {
		return fmt.Errorf("failed to execute CREATE TABLE: %w", err)
	}
	s.logger.Debug("Result tables ensured.")
	return nil
}

func (s *ResultStore) SaveResult(ctx context.Context, result Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result transaction: %w", err)
	}
	defer tx.Rollback()

	const insertMatchSQL = `
	INSERT INTO ` + matchesTable + ` (id, winner, reason, frames, players, started_at, ended_at)
	VALUES (?, ?, ?, ?, ?, ?, ?);`

	_, err = tx.ExecContext(ctx, insertMatchSQL,
		result.MatchID, result.Winner, result.Reason, result.Frames, len(result.Placements),
		result.StartedAt.UTC(), result.EndedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert match %s: %w", result.MatchID, err)
	}

	const insertPlacementSQL = `
	INSERT INTO ` + placementsTable + ` (match_id, player_name, place, frames, survived)
	VALUES (?, ?, ?, ?, ?);`

	for _, p := range result.Placements {
		_, err := tx.ExecContext(ctx, insertPlacementSQL, result.MatchID, p.Name, p.Place, p.Frames, p.Survived)
		if err != nil {
			return fmt.Errorf("failed to insert placement for %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}
	return nil
}

// TopPlayers returns a page of the leaderboard ordered by wins, then by
// matches played.
func (s *ResultStore) TopPlayers(ctx context.Context, limit, offset int) ([]Standing, error) {
	const selectSQL = `
	SELECT p.player_name,
		COUNT(*) AS matches,
		SUM(CASE WHEN m.winner = p.player_name THEN 1 ELSE 0 END) AS wins,
		AVG(p.place) AS average_place
	FROM ` + placementsTable + ` p
	JOIN ` + matchesTable + ` m ON m.id = p.match_id
	GROUP BY p.player_name
	ORDER BY wins DESC, matches DESC, p.player_name ASC
	LIMIT ? OFFSET ?;`

	rows, err := s.db.QueryContext(ctx, selectSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var standings []Standing
	for rows.Next() {
		var standing Standing
		if err := rows.Scan(&standing.Name, &standing.Matches, &standing.Wins, &standing.AveragePlace); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		standings = append(standings, standing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}
	return standings, nil
}

func (s *ResultStore) TotalMatches(ctx context.Context) (int, error) {
	const countSQL = `SELECT COUNT(*) FROM ` + matchesTable + `;`
	var count int
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get total match count: %w", err)
	}
	return count, nil
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}
