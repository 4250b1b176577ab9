package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/klauspost/compress/zstd"

	scopeerrors "codescope/internal/errors"
	"codescope/internal/storage"
)

// Store provides database operations for persisted snapshots. Payloads are
// zstd-compressed JSON without ASTs.
type Store struct {
	db     *storage.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *slog.Logger
}

// NewStore creates a snapshot store on db. The database is owned by the caller.
func NewStore(db *storage.DB, logger *slog.Logger) (*Store, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Store{db: db, enc: enc, dec: dec, logger: logger}, nil
}

// Save persists snap.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	payload = s.enc.EncodeAll(payload, make([]byte, 0, len(payload)/4))

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (id, root, created_at, payload)
		VALUES (?, ?, ?, ?)
	`, snap.ID, snap.Root, snap.GeneratedAt.UnixNano(), payload)
	if err != nil {
		return scopeerrors.New(scopeerrors.StorageError, "failed to save snapshot", err)
	}
	s.logger.Debug("Saved snapshot", "id", snap.ID, "root", snap.Root, "bytes", len(payload))
	return nil
}

// Latest returns the newest snapshot for root, or nil when there is none.
// An unreadable snapshot is deleted and reported as missing.
func (s *Store) Latest(ctx context.Context, root string) (*Snapshot, error) {
	var (
		id      string
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, payload FROM snapshots
		WHERE root = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, root).Scan(&id, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, scopeerrors.New(scopeerrors.StorageError, "failed to load snapshot", err)
	}

	snap, err := s.decode(payload)
	if err != nil {
		s.logger.Warn("Discarding unreadable snapshot", "id", id, "error", err)
		if _, delErr := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id); delErr != nil {
			s.logger.Warn("Failed to delete snapshot", "id", id, "error", delErr)
		}
		return nil, nil
	}
	return snap, nil
}

func (s *Store) decode(payload []byte) (*Snapshot, error) {
	raw, err := s.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	SortRecords(snap.Files)
	return &snap, nil
}

// Prune keeps the newest keep snapshots per root and returns how many rows
// were deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY root ORDER BY created_at DESC, id DESC) AS rn
				FROM snapshots
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return 0, scopeerrors.New(scopeerrors.StorageError, "failed to prune snapshots", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n)
	return n, err
}

// Clear deletes every snapshot.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots`)
	if err != nil {
		return 0, scopeerrors.New(scopeerrors.StorageError, "failed to clear snapshots", err)
	}
	return res.RowsAffected()
}

// Close releases the codecs.
func (s *Store) Close() {
	s.enc.Close()
	s.dec.Close()
}
