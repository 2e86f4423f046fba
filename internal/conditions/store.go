package conditions

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/omegac/internal/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Schema is the conditions store schema.
var Schema = db.Schema{Name: "conditions_schema_migrations", FS: migrationsFS, Dir: "migrations"}

// ErrNotFound is returned when no object covers the requested timestamp.
var ErrNotFound = errors.New("condition object not found")

// Object is one versioned condition payload valid over [ValidFrom, ValidUntil)
// in milliseconds since the epoch.
type Object struct {
	Path       string          `json:"path"`
	ValidFrom  int64           `json:"valid_from"`
	ValidUntil int64           `json:"valid_until"`
	Payload    json.RawMessage `json:"payload"`
}

// ObjectSource looks up condition objects by path and timestamp.
type ObjectSource interface {
	GetForTimestamp(ctx context.Context, path string, timestamp int64) (Object, error)
}

// Store is a SQLite-backed snapshot of condition objects.
type Store struct {
	db *db.DB
}

// OpenStore opens the store at path, creating and migrating it if needed.
func OpenStore(path string) (*Store, error) {
	d, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(d)
	if err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

// NewStore migrates d and wraps it.
func NewStore(d *db.DB) (*Store, error) {
	if err := d.MigrateUp(Schema); err != nil {
		return nil, err
	}
	return &Store{db: d}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put inserts a new object version.
func (s *Store) Put(ctx context.Context, obj Object) error {
	if obj.Path == "" {
		return errors.New("object path is empty")
	}
	if obj.ValidUntil <= obj.ValidFrom {
		return fmt.Errorf("object %s: empty validity [%d, %d)", obj.Path, obj.ValidFrom, obj.ValidUntil)
	}
	if !json.Valid(obj.Payload) {
		return fmt.Errorf("object %s: payload is not valid JSON", obj.Path)
	}
	return db.RetryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO ccdb_objects (path, valid_from, valid_until, payload) VALUES (?, ?, ?, ?)`,
			obj.Path, obj.ValidFrom, obj.ValidUntil, string(obj.Payload))
		if err != nil {
			return fmt.Errorf("insert condition object %s: %w", obj.Path, err)
		}
		return nil
	})
}

// GetForTimestamp returns the most recently inserted object at path whose
// validity covers timestamp.
func (s *Store) GetForTimestamp(ctx context.Context, path string, timestamp int64) (Object, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, valid_from, valid_until, payload
		FROM ccdb_objects
		WHERE path = ? AND valid_from <= ? AND valid_until > ?
		ORDER BY object_id DESC
		LIMIT 1`, path, timestamp, timestamp)

	var obj Object
	var payload string
	if err := row.Scan(&obj.Path, &obj.ValidFrom, &obj.ValidUntil, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Object{}, fmt.Errorf("%s at %d: %w", path, timestamp, ErrNotFound)
		}
		return Object{}, fmt.Errorf("query condition object %s: %w", path, err)
	}
	obj.Payload = json.RawMessage(payload)
	return obj, nil
}

// Import reads a JSON array of objects and stores them in order.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	var objs []Object
	if err := json.NewDecoder(r).Decode(&objs); err != nil {
		return 0, fmt.Errorf("decode condition objects: %w", err)
	}
	for i, obj := range objs {
		if err := s.Put(ctx, obj); err != nil {
			return i, err
		}
	}
	return len(objs), nil
}
