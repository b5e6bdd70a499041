package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/vector"
)

// DBFileName is the collection database file inside a collection directory.
const DBFileName = "collection.db"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collection_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sources (
		path TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		last_indexed_at TIMESTAMP NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		source_category TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_path, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Meta returns a collection metadata value, or ErrNotFound.
func (s *SQLiteStore) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM collection_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// SetMeta inserts or overwrites a collection metadata value.
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// ReplaceSource swaps the chunks of a source in a single transaction.
func (s *SQLiteStore) ReplaceSource(ctx context.Context, src models.SourceDocument, chunks []models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_path = ?`, src.Path); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, source_path, source_category, chunk_index, text, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.SourcePath, c.Category.String(), c.Index, c.Text, vector.Encode(c.Embedding)); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Index, err)
		}
	}

	if src.LastIndexedAt.IsZero() {
		src.LastIndexedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sources (path, category, fingerprint, last_indexed_at, chunk_count)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   category = excluded.category,
		   fingerprint = excluded.fingerprint,
		   last_indexed_at = excluded.last_indexed_at,
		   chunk_count = excluded.chunk_count`,
		src.Path, src.Category.String(), src.Fingerprint, src.LastIndexedAt.UTC(), len(chunks),
	)
	if err != nil {
		return fmt.Errorf("failed to record source: %w", err)
	}
	return tx.Commit()
}

// DeleteSource removes every chunk and the state row of a source.
func (s *SQLiteStore) DeleteSource(ctx context.Context, path string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_path = ?`, path)
	if err != nil {
		return false, err
	}
	chunks, _ := res.RowsAffected()
	res, err = tx.ExecContext(ctx, `DELETE FROM sources WHERE path = ?`, path)
	if err != nil {
		return false, err
	}
	sources, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return chunks+sources > 0, nil
}

// GetSource returns the indexing state of a source, or ErrNotFound.
func (s *SQLiteStore) GetSource(ctx context.Context, path string) (*models.SourceDocument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT path, category, fingerprint, last_indexed_at, chunk_count
		 FROM sources WHERE path = ?`, path,
	)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// ListSources returns every source ordered by path.
func (s *SQLiteStore) ListSources(ctx context.Context) ([]models.SourceDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, category, fingerprint, last_indexed_at, chunk_count
		 FROM sources ORDER BY path`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SourceDocument
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*models.SourceDocument, error) {
	var src models.SourceDocument
	var category string
	if err := row.Scan(&src.Path, &category, &src.Fingerprint, &src.LastIndexedAt, &src.ChunkCount); err != nil {
		return nil, err
	}
	cat, err := models.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	src.Category = cat
	return &src, nil
}

// LoadChunks returns every chunk with its embedding.
func (s *SQLiteStore) LoadChunks(ctx context.Context) ([]models.Chunk, error) {
	return s.queryChunks(ctx,
		`SELECT id, source_path, source_category, chunk_index, text, embedding
		 FROM chunks ORDER BY source_path, chunk_index`,
	)
}

// ChunksBySource returns the chunks of a source ordered by chunk index.
func (s *SQLiteStore) ChunksBySource(ctx context.Context, path string) ([]models.Chunk, error) {
	return s.queryChunks(ctx,
		`SELECT id, source_path, source_category, chunk_index, text, embedding
		 FROM chunks WHERE source_path = ? ORDER BY chunk_index`, path,
	)
}

func (s *SQLiteStore) queryChunks(ctx context.Context, query string, args ...any) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		var category string
		var blob []byte
		if err := rows.Scan(&c.ID, &c.SourcePath, &category, &c.Index, &c.Text, &blob); err != nil {
			return nil, err
		}
		if c.Category, err = models.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		if c.Embedding, err = vector.Decode(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountSources returns the number of indexed sources.
func (s *SQLiteStore) CountSources(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RemoveDBFiles deletes the database file and its WAL side files.
func RemoveDBFiles(dbPath string) error {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
