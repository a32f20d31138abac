package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/flarebyte/thoth-scribe/internal/logging"
	"github.com/flarebyte/thoth-scribe/internal/record"
)

// ErrNotFound is returned by Lookup for an unknown article.
var ErrNotFound = errors.New("article not found")

const schema = `
CREATE TABLE IF NOT EXISTS article(
    id INTEGER PRIMARY KEY,
    name VARCHAR(255) UNIQUE NOT NULL,
    key VARCHAR(255) UNIQUE NOT NULL,
    url VARCHAR(255) NOT NULL
);
CREATE TABLE IF NOT EXISTS article_body(
    id INTEGER PRIMARY KEY,
    article_id INTEGER NOT NULL,
    compressed_html BLOB,
    FOREIGN KEY(article_id) REFERENCES article(id)
);
CREATE INDEX IF NOT EXISTS article_idx_url ON article(url);
`

// Row is a compressed record on its way to the single writer.
type Row struct {
	Name       string
	URL        string
	Key        string
	Size       int
	Compressed []byte
}

// Article is a stored record read back from the database.
type Article struct {
	ID   int64
	Name string
	Key  string
	URL  string
	HTML []byte
}

// SQLSink stores records in a SQLite database. Prepare may run on many
// goroutines; Commit must only be called from one.
type SQLSink struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
	log logrus.FieldLogger

	mu sync.Mutex
}

func dsn(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// OpenSQL opens or creates the database at path.
func OpenSQL(ctx context.Context, path string, log logrus.FieldLogger) (*SQLSink, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, err
	}
	return &SQLSink{db: db, enc: enc, dec: dec, log: logging.OrDiscard(log)}, nil
}

// OpenSQLReader opens an existing database for lookups only. The schema is
// not created and every write is refused by the connection.
func OpenSQLReader(path string, log logrus.FieldLogger) (*SQLSink, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLSink{db: db, dec: dec, log: logging.OrDiscard(log)}, nil
}

// Prepare compresses the record body.
func (s *SQLSink) Prepare(rec record.Record) (Row, error) {
	return Row{
		Name:       rec.Name,
		URL:        rec.URL,
		Key:        rec.Key,
		Size:       len(rec.Body),
		Compressed: s.enc.EncodeAll(rec.Body, nil),
	}, nil
}

// Commit inserts row in its own transaction. An article that is already
// stored is reported as Skipped; any other database error is returned.
func (s *SQLSink) Commit(ctx context.Context, row Row) (Outcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Failed, fmt.Errorf("begin: %w", err)
	}
	res, err := tx.ExecContext(ctx, "INSERT INTO article(name, key, url) VALUES (?, ?, ?)", row.Name, row.Key, row.URL)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return Skipped, nil
		}
		return Failed, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return Failed, err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO article_body(article_id, compressed_html) VALUES (?, ?)", id, row.Compressed); err != nil {
		_ = tx.Rollback()
		return Failed, err
	}
	if err := tx.Commit(); err != nil {
		return Failed, fmt.Errorf("commit: %w", err)
	}
	s.log.WithFields(logrus.Fields{"name": row.Name, "id": id}).Debug("stored")
	return Written, nil
}

// Write prepares and commits rec, serialized across callers.
func (s *SQLSink) Write(ctx context.Context, rec record.Record) (Outcome, error) {
	row, err := s.Prepare(rec)
	if err != nil {
		return Failed, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Commit(ctx, row)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// Lookup returns the stored article called name.
func (s *SQLSink) Lookup(ctx context.Context, name string) (Article, error) {
	var a Article
	var compressed []byte
	err := s.db.QueryRowContext(ctx, `
SELECT a.id, a.name, a.key, a.url, b.compressed_html
FROM article a JOIN article_body b ON b.article_id = a.id
WHERE a.name = ?`, name).Scan(&a.ID, &a.Name, &a.Key, &a.URL, &compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return Article{}, err
	}
	if len(compressed) == 0 {
		a.HTML = []byte{}
		return a, nil
	}
	a.HTML, err = s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return Article{}, fmt.Errorf("decompress %q: %w", name, err)
	}
	return a, nil
}

// Count returns the number of stored articles.
func (s *SQLSink) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM article").Scan(&n)
	return n, err
}

// Close flushes and closes the database.
func (s *SQLSink) Close() error {
	s.dec.Close()
	var encErr error
	if s.enc != nil {
		encErr = s.enc.Close()
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	return encErr
}
