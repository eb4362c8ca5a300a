package sqslistener

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// DeduplicationStore tracks handled message ids so redeliveries of an
// already-processed message can be acknowledged without re-running the
// handler. SQS is at-least-once; this narrows, but cannot eliminate,
// duplicate processing.
type DeduplicationStore interface {
	// IsProcessed reports whether messageID was already handled.
	IsProcessed(ctx context.Context, messageID string) (bool, error)

	// MarkProcessed records messageID as handled.
	MarkProcessed(ctx context.Context, messageID string) error

	// Cleanup removes entries older than the given age.
	Cleanup(ctx context.Context, olderThan time.Duration) error

	// Close releases any resources.
	Close() error
}

// InMemoryDeduplicationStore keeps processed ids in a map. Suitable for a
// single process only.
type InMemoryDeduplicationStore struct {
	mu        sync.RWMutex
	processed map[string]time.Time
}

func NewInMemoryDeduplicationStore() *InMemoryDeduplicationStore {
	return &InMemoryDeduplicationStore{processed: make(map[string]time.Time)}
}

func (s *InMemoryDeduplicationStore) IsProcessed(_ context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.processed[messageID]
	return ok, nil
}

func (s *InMemoryDeduplicationStore) MarkProcessed(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[messageID] = time.Now()
	return nil
}

func (s *InMemoryDeduplicationStore) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	for id, at := range s.processed {
		if at.Before(cutoff) {
			delete(s.processed, id)
		}
	}
	return nil
}

func (s *InMemoryDeduplicationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed = nil
	return nil
}

// PostgresDeduplicationStore persists processed ids in a processed_messages
// table, shared across consumer processes. The *sql.DB is owned by the
// caller.
type PostgresDeduplicationStore struct {
	db *sql.DB
}

func NewPostgresDeduplicationStore(db *sql.DB) *PostgresDeduplicationStore {
	return &PostgresDeduplicationStore{db: db}
}

func (s *PostgresDeduplicationStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM processed_messages WHERE message_id = $1)",
		messageID,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresDeduplicationStore) MarkProcessed(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_messages (message_id, processed_at)
         VALUES ($1, $2)
         ON CONFLICT (message_id) DO NOTHING`,
		messageID, time.Now(),
	)
	return err
}

func (s *PostgresDeduplicationStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM processed_messages WHERE processed_at < $1",
		time.Now().Add(-olderThan),
	)
	return err
}

func (s *PostgresDeduplicationStore) Close() error {
	// connection lifetime is managed by the caller
	return nil
}
