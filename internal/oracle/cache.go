package oracle

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cache persists oracle answers in a SQLite database keyed by source image
// and model. Null answers are stored too, so a confidently unmatched image
// is never asked about twice.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (and if needed creates) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening oracle cache: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS oracle_cache (
			image_name TEXT NOT NULL,
			model      TEXT NOT NULL,
			target     TEXT,
			confidence REAL NOT NULL,
			reasoning  TEXT,
			timestamp  INTEGER NOT NULL,
			PRIMARY KEY (image_name, model)
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing oracle cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached suggestion for (image, model), with found=false on
// a miss.
func (c *Cache) Get(image, model string) (Suggestion, bool, error) {
	row := c.db.QueryRow(`
		SELECT target, confidence, reasoning
		FROM oracle_cache
		WHERE image_name = ? AND model = ?`, image, model)

	var target sql.NullString
	var sug Suggestion
	err := row.Scan(&target, &sug.Confidence, &sug.Reasoning)
	if errors.Is(err, sql.ErrNoRows) {
		return Suggestion{}, false, nil
	}
	if err != nil {
		return Suggestion{}, false, fmt.Errorf("reading oracle cache: %w", err)
	}
	sug.Target = target.String
	sug.Cached = true
	return sug, true, nil
}

// Put stores a suggestion, replacing any previous answer for the same
// (image, model) pair. An empty target is stored as NULL.
func (c *Cache) Put(image, model string, sug Suggestion) error {
	var target any
	if sug.Target != "" {
		target = sug.Target
	}
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO oracle_cache
		(image_name, model, target, confidence, reasoning, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		image, model, target, sug.Confidence, sug.Reasoning, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("writing oracle cache: %w", err)
	}
	return nil
}
