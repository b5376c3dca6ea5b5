// Package uploads stores user files on disk under collision-free names and
// records them in a SQLite catalogue.
//
// The catalogue is best effort: if the database cannot be opened, files are
// still stored and Get only finds uploads saved by this process.
package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	"github.com/comigor/thelp-go/internal/attachment"
	"github.com/comigor/thelp-go/internal/logger"
)

// ErrNotFound is returned by Get for unknown upload ids.
var ErrNotFound = errors.New("upload not found")

// Upload is one stored file.
type Upload struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Store writes uploads into a directory.
type Store struct {
	dir string
	db  *sql.DB

	mu     sync.Mutex
	recent map[string]Upload // used when db is nil
}

// Open creates dir if needed and opens the catalogue at dbPath. An empty
// dbPath disables the catalogue.
func Open(dir, dbPath string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir %s: %w", dir, err)
	}
	s := &Store{dir: dir, recent: map[string]Upload{}}
	if dbPath == "" {
		return s, nil
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_busy_timeout=10000")
	if err != nil {
		logger.L.Warn("sqlite open failed; uploads are not catalogued", "error", err)
		return s, nil
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_uploads_session ON uploads(session_id);`); err != nil {
		logger.L.Warn("sqlite table creation failed; uploads are not catalogued", "error", err)
		db.Close()
		return s, nil
	}
	s.db = db
	logger.L.Info("upload catalogue initialized", "path", dbPath)
	return s, nil
}

// Close releases the catalogue.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save copies r into the upload directory as a file named after name. Names
// with a disallowed extension are rejected before anything is written.
func (s *Store) Save(ctx context.Context, sessionID, name string, r io.Reader) (*Upload, error) {
	clean := SanitizeName(name)
	if !attachment.Allowed(clean) {
		return nil, fmt.Errorf("%w: %q", attachment.ErrNotAllowed, name)
	}
	id := uuid.NewString()
	return s.write(ctx, id, sessionID, clean, id+"_"+clean, r)
}

// SaveVoice stores a recorded voice note.
func (s *Store) SaveVoice(ctx context.Context, sessionID string, r io.Reader) (*Upload, error) {
	id := uuid.NewString()
	name := "voice_" + id + ".webm"
	return s.write(ctx, id, sessionID, name, name, r)
}

func (s *Store) write(ctx context.Context, id, sessionID, name, stored string, r io.Reader) (*Upload, error) {
	path := filepath.Join(s.dir, stored)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", stored, err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing %s: %w", stored, err)
	}

	u := Upload{
		ID:        id,
		SessionID: sessionID,
		Name:      name,
		Path:      path,
		Size:      size,
		CreatedAt: time.Now().UTC(),
	}
	s.record(ctx, u)
	logger.FromContext(ctx).Info("upload stored", "session_id", sessionID, "name", name, "bytes", size)
	return &u, nil
}

func (s *Store) record(ctx context.Context, u Upload) {
	if s.db != nil {
		_, err := s.db.ExecContext(ctx, `INSERT INTO uploads (id, session_id, name, path, size, created_at) VALUES (?,?,?,?,?,?);`,
			u.ID, u.SessionID, u.Name, u.Path, u.Size, u.CreatedAt)
		if err == nil {
			return
		}
		logger.FromContext(ctx).Error("failed to catalogue upload", "id", u.ID, "error", err)
	}
	s.mu.Lock()
	s.recent[u.ID] = u
	s.mu.Unlock()
}

// Get returns the upload with id.
func (s *Store) Get(ctx context.Context, id string) (*Upload, error) {
	s.mu.Lock()
	u, ok := s.recent[id]
	s.mu.Unlock()
	if ok {
		return &u, nil
	}
	if s.db == nil {
		return nil, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `SELECT id, session_id, name, path, size, created_at FROM uploads WHERE id = ?;`, id)
	if err := row.Scan(&u.ID, &u.SessionID, &u.Name, &u.Path, &u.Size, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// List returns the uploads of a session, oldest first.
func (s *Store) List(ctx context.Context, sessionID string) ([]Upload, error) {
	if s.db == nil {
		var out []Upload
		s.mu.Lock()
		for _, u := range s.recent {
			if u.SessionID == sessionID {
				out = append(out, u)
			}
		}
		s.mu.Unlock()
		slices.SortFunc(out, func(a, b Upload) int { return a.CreatedAt.Compare(b.CreatedAt) })
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, name, path, size, created_at FROM uploads WHERE session_id = ? ORDER BY created_at ASC, id ASC;`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.ID, &u.SessionID, &u.Name, &u.Path, &u.Size, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
