// Package storage is a local document store backed by a single SQLite file.
// It is the offline backend: documents live in one table keyed by
// collection and a random document ID.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"todosync/internal/todo"
)

type Store struct {
	db         *sql.DB
	collection string
}

// Open opens (creating if needed) the database at dbPath and scopes the
// store to one collection. databaseID and collectionID together name it.
func Open(dbPath, databaseID, collectionID string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if collectionID == "" {
		return nil, errors.New("collection id is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, collection: collectionKey(databaseID, collectionID)}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func collectionKey(databaseID, collectionID string) string {
	if databaseID == "" {
		return collectionID
	}
	return databaseID + "/" + collectionID
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	completed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	UNIQUE (collection, id)
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.ensureDocumentColumns()
}

func (s *Store) ensureDocumentColumns() error {
	required := map[string]string{
		"updated_at": "ALTER TABLE documents ADD COLUMN updated_at TEXT DEFAULT NULL;",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(documents);`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]todo.Todo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, completed FROM documents WHERE collection = ? ORDER BY seq;`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var todos []todo.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

func (s *Store) Create(ctx context.Context, text string, completed bool) (todo.Todo, error) {
	t := todo.Todo{ID: uuid.NewString(), Text: text, Completed: completed}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, text, completed, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?);`,
		s.collection, t.ID, t.Text, boolToInt(t.Completed), now, now)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("create document: %w", err)
	}
	return t, nil
}

func (s *Store) Update(ctx context.Context, id string, p todo.Patch) (todo.Todo, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339)}
	if p.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *p.Text)
	}
	if p.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*p.Completed))
	}
	args = append(args, s.collection, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE collection = ? AND id = ?;`, args...)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("update document %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return todo.Todo{}, fmt.Errorf("update document %s: %w", id, todo.ErrNotFound)
	}
	return s.get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?;`, s.collection, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete document %s: %w", id, todo.ErrNotFound)
	}
	return nil
}

func (s *Store) get(ctx context.Context, id string) (todo.Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, completed FROM documents WHERE collection = ? AND id = ?;`, s.collection, id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return todo.Todo{}, fmt.Errorf("get document %s: %w", id, todo.ErrNotFound)
	}
	return t, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(sc scanner) (todo.Todo, error) {
	var t todo.Todo
	var done int
	if err := sc.Scan(&t.ID, &t.Text, &done); err != nil {
		return todo.Todo{}, err
	}
	t.Completed = done == 1
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
