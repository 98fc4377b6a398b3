package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresmejia3/visage/internal/types"
	"github.com/jackc/pgx/v5"
)

// Store manages the PostgreSQL connection holding the landmark cache.
// A pgx.Conn is not safe for concurrent use, so calls are serialized.
type Store struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// ImageRecord is one cached photo.
type ImageRecord struct {
	ID        string
	Path      string
	HasFace   bool
	IndexedAt time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS images (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			indexed_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS face_landmarks (
			image_id TEXT PRIMARY KEY REFERENCES images(id) ON DELETE CASCADE,
			has_face BOOLEAN NOT NULL,
			points INT[]
		);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveLandmarks records the detector's answer for an image. A nil set
// records that the photo has no face.
func (s *Store) SaveLandmarks(ctx context.Context, imageID, path string, set *types.LandmarkSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var points []int32
	if set != nil {
		points = make([]int32, 0, 2*types.NumLandmarks)
		for _, p := range set {
			points = append(points, int32(p.X), int32(p.Y))
		}
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO images (id, path, indexed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET indexed_at = NOW(), path = EXCLUDED.path
	`, imageID, path); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO face_landmarks (image_id, has_face, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (image_id) DO UPDATE SET has_face = EXCLUDED.has_face, points = EXCLUDED.points
	`, imageID, set != nil, points); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetLandmarks looks up a cached answer. found is false on a cache miss; a
// hit with a nil set means the photo has no face.
func (s *Store) GetLandmarks(ctx context.Context, imageID string) (set *types.LandmarkSet, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hasFace bool
	var points []int32
	err = s.conn.QueryRow(ctx, "SELECT has_face, points FROM face_landmarks WHERE image_id = $1", imageID).Scan(&hasFace, &points)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !hasFace {
		return nil, true, nil
	}
	if len(points) != 2*types.NumLandmarks {
		return nil, false, fmt.Errorf("corrupt cache entry %s: %d coordinates", imageID, len(points))
	}

	set = new(types.LandmarkSet)
	for i := range set {
		set[i].X, set[i].Y = int(points[2*i]), int(points[2*i+1])
	}
	return set, true, nil
}

// ListImages returns every cached photo, newest first.
func (s *Store) ListImages(ctx context.Context) ([]ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, `
		SELECT i.id, i.path, COALESCE(f.has_face, false), i.indexed_at
		FROM images i LEFT JOIN face_landmarks f ON f.image_id = i.id
		ORDER BY i.indexed_at DESC, i.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ImageRecord
	for rows.Next() {
		var r ImageRecord
		if err := rows.Scan(&r.ID, &r.Path, &r.HasFace, &r.IndexedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS face_landmarks CASCADE;
		DROP TABLE IF EXISTS images CASCADE;
	`)
	return err
}
