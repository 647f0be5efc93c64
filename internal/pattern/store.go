// Package pattern persists historical step-execution patterns in SQLite
// and answers relevance-scored queries used to weight planning confidence.
package pattern

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS patterns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pattern_hash TEXT UNIQUE NOT NULL,
    normalized_hash TEXT NOT NULL,
    description TEXT NOT NULL,
    action_type TEXT NOT NULL,
    success_count INTEGER NOT NULL DEFAULT 0,
    failure_count INTEGER NOT NULL DEFAULT 0,
    last_used TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_patterns_normalized ON patterns(normalized_hash);
CREATE INDEX IF NOT EXISTS idx_patterns_action ON patterns(action_type);
`

// Pattern is a stored execution pattern with its observed outcome counts.
type Pattern struct {
	ID           int64
	Description  string
	ActionType   string
	SuccessCount int
	FailureCount int
	LastUsed     time.Time
	CreatedAt    time.Time
}

// SuccessRate returns successes over total observations, or 0 with no
// observations.
func (p *Pattern) SuccessRate() float64 {
	total := p.SuccessCount + p.FailureCount
	if total == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(total)
}

// Match is a query result: a stored pattern plus its relevance to the
// queried description.
type Match struct {
	Pattern        string  `json:"pattern"`
	ActionType     string  `json:"action_type"`
	SuccessRate    float64 `json:"success_rate"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Store manages the SQLite pattern database.
type Store struct {
	db     *sql.DB
	dbPath string
	hasher *Hasher
}

// NewStore opens (creating if needed) the pattern database at dbPath.
// ":memory:" is supported for tests.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout must be set first so later statements wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath, hasher: NewHasher()}, nil
}

// execWithRetry executes a statement with exponential backoff on
// "database is locked" errors during concurrent initialization.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	delay := baseDelay
	for attempt := 0; attempt < maxRetries; attempt++ {
		if _, err := db.Exec(stmt); err == nil {
			return nil
		} else if !strings.Contains(err.Error(), "database is locked") {
			return err
		} else {
			lastErr = err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return lastErr
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save upserts a pattern observation. An existing pattern (same exact
// hash) has the matching outcome counter incremented; a new pattern is
// inserted with a single observation.
func (s *Store) Save(ctx context.Context, description, actionType string, success bool) error {
	if description == "" {
		return fmt.Errorf("pattern description cannot be empty")
	}

	hash := s.hasher.Hash(description, actionType)
	successInc, failureInc := 0, 1
	if success {
		successInc, failureInc = 1, 0
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (pattern_hash, normalized_hash, description, action_type, success_count, failure_count, last_used)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(pattern_hash) DO UPDATE SET
			success_count = success_count + excluded.success_count,
			failure_count = failure_count + excluded.failure_count,
			last_used = CURRENT_TIMESTAMP`,
		hash.FullHash, hash.NormalizedHash, description, actionType, successInc, failureInc)
	if err != nil {
		return fmt.Errorf("save pattern: %w", err)
	}
	return nil
}

// Query returns stored patterns relevant to the description, most
// relevant first. Candidates are narrowed by action type, then scored by
// token overlap; exact normalized-hash matches score 1.0. Patterns with
// zero overlap are dropped.
func (s *Store) Query(ctx context.Context, description, actionType string) ([]Match, error) {
	if description == "" {
		return []Match{}, nil
	}

	hash := s.hasher.Hash(description, actionType)
	queryTokens := s.hasher.Tokens(description)

	rows, err := s.db.QueryContext(ctx, `
		SELECT description, action_type, normalized_hash, success_count, failure_count
		FROM patterns
		WHERE action_type = ?
		ORDER BY last_used DESC
		LIMIT 200`, actionType)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var p Pattern
		var normalized string
		if err := rows.Scan(&p.Description, &p.ActionType, &normalized, &p.SuccessCount, &p.FailureCount); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}

		relevance := Overlap(queryTokens, s.hasher.Tokens(p.Description))
		if normalized == hash.NormalizedHash {
			relevance = 1.0
		}
		if relevance <= 0 {
			continue
		}

		matches = append(matches, Match{
			Pattern:        p.Description,
			ActionType:     p.ActionType,
			SuccessRate:    p.SuccessRate(),
			RelevanceScore: relevance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].RelevanceScore > matches[j].RelevanceScore
	})
	return matches, nil
}

// Count returns the number of stored patterns.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patterns`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count patterns: %w", err)
	}
	return n, nil
}
