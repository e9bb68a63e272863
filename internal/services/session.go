package services

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	sessionBucket = []byte("session")
	sessionKey    = []byte("session_id")
)

// Sessions owns the widget's chat session identifier using a BoltDB backend for persistence. The
// identifier correlates this installation's requests with the backend's conversational memory. When
// the database cannot be opened or written, Sessions degrades to an in-memory identifier for the
// lifetime of the process instead of failing the caller.
type Sessions struct {
	db *bolt.DB // nil when the store is unavailable

	mem string

	logger *slog.Logger
}

// NewSessions creates a session store backed by the BoltDB file at the given path. The database
// file is created with 0600 permissions if it doesn't exist. Open or setup failures are logged and
// leave the store in degraded in-memory mode.
func NewSessions(path string, logger *slog.Logger) *Sessions {
	logger = logger.With(slog.String("module", "sessions"))

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		logger.Warn("Session store unavailable, falling back to in-memory session id",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return &Sessions{logger: logger}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		logger.Warn("Session store unavailable, falling back to in-memory session id",
			slog.String("path", path),
			slog.String("error", err.Error()))
		_ = db.Close()
		return &Sessions{logger: logger}
	}

	return &Sessions{db: db, logger: logger}
}

// GetOrCreate returns the persisted session identifier, generating and persisting a fresh one if
// none exists yet. Repeated calls return the same identifier until Rotate is called.
func (s *Sessions) GetOrCreate() string {
	if s.db == nil {
		if s.mem == "" {
			s.mem = uuid.New().String()
		}
		return s.mem
	}

	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if b == nil {
			return nil
		}
		if v := b.Get(sessionKey); v != nil {
			id = string(v)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to read session id", slog.String("error", err.Error()))
	}
	if id != "" {
		return id
	}

	return s.persist(uuid.New().String())
}

// Rotate unconditionally generates, persists, and returns a new session identifier.
func (s *Sessions) Rotate() string {
	id := uuid.New().String()
	if s.db == nil {
		s.mem = id
		return id
	}
	return s.persist(id)
}

// persist writes the identifier and returns it. A write failure is not surfaced; the identifier is
// kept in memory so the widget keeps working for this process.
func (s *Sessions) persist(id string) string {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if b == nil {
			return fmt.Errorf("session bucket is missing")
		}
		return b.Put(sessionKey, []byte(id))
	})
	if err != nil {
		s.logger.Warn("Failed to persist session id", slog.String("error", err.Error()))
		s.mem = id
	}
	return id
}

// Close releases the underlying database. It is a no-op in degraded mode.
func (s *Sessions) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
