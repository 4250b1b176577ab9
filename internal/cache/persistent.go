package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"codescope/internal/ast"
	scopeerrors "codescope/internal/errors"
	"codescope/internal/project"
	"codescope/internal/storage"
)

// Persistent tier defaults.
const (
	DefaultTTL               = 5 * time.Minute
	DefaultMaxBytes          = 100 << 20
	DefaultCompressThreshold = 4 << 10
)

// PersistentOptions tunes the disk tier.
type PersistentOptions struct {
	TTL               time.Duration
	MaxBytes          int64
	Compress          bool
	CompressThreshold int
}

// Persistent is the sqlite-backed tier. Payloads are versioned ast.Encode
// output, zstd-compressed above the threshold.
type Persistent struct {
	db     *storage.DB
	opts   PersistentOptions
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *slog.Logger
	now    func() time.Time

	hits        atomic.Int64
	misses      atomic.Int64
	expired     atomic.Int64
	evictions   atomic.Int64
	corruptions atomic.Int64
}

// NewPersistent wraps db. The database is owned by the caller.
func NewPersistent(db *storage.DB, opts PersistentOptions, logger *slog.Logger) (*Persistent, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.CompressThreshold <= 0 {
		opts.CompressThreshold = DefaultCompressThreshold
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Persistent{db: db, opts: opts, enc: enc, dec: dec, logger: logger, now: time.Now}, nil
}

// Get loads the entry for key. A missing, expired or other-version entry is
// a plain miss. An entry older than this tier's TTL is expired even when the
// writer granted it a longer lifetime. An entry that fails to decode is deleted and reported as a
// CACHE_CORRUPTION error; callers treat that as a miss too.
func (p *Persistent) Get(ctx context.Context, key Fingerprint) (*ast.File, bool, error) {
	var (
		version    int
		payload    []byte
		compressed bool
		createdAt  int64
		expiresAt  int64
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT version, payload, compressed, created_at, expires_at
		FROM ast_cache WHERE key = ?
	`, string(key)).Scan(&version, &payload, &compressed, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		p.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		p.misses.Add(1)
		return nil, false, scopeerrors.New(scopeerrors.StorageError, "ast cache lookup failed", err)
	}

	now := p.now()
	stale := now.UnixNano() >= expiresAt || now.Sub(time.Unix(0, createdAt)) >= p.opts.TTL
	if version != ast.FormatVersion || stale {
		p.misses.Add(1)
		if version == ast.FormatVersion {
			p.expired.Add(1)
		}
		p.delete(ctx, key)
		return nil, false, nil
	}

	if compressed {
		payload, err = p.dec.DecodeAll(payload, nil)
		if err != nil {
			return p.corrupt(ctx, key, err)
		}
	}
	file, err := ast.Decode(payload)
	if err != nil {
		return p.corrupt(ctx, key, err)
	}

	if _, err := p.db.ExecContext(ctx, `UPDATE ast_cache SET accessed_at = ? WHERE key = ?`, now.UnixNano(), string(key)); err != nil {
		p.logger.Debug("Failed to touch ast cache entry", "key", key, "error", err)
	}
	p.hits.Add(1)
	return file, true, nil
}

func (p *Persistent) corrupt(ctx context.Context, key Fingerprint, cause error) (*ast.File, bool, error) {
	p.misses.Add(1)
	p.corruptions.Add(1)
	p.delete(ctx, key)
	return nil, false, scopeerrors.New(scopeerrors.CacheCorruption, fmt.Sprintf("discarded unreadable cache entry %s", key), cause)
}

func (p *Persistent) delete(ctx context.Context, key Fingerprint) {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM ast_cache WHERE key = ?`, string(key)); err != nil {
		p.logger.Warn("Failed to delete ast cache entry", "key", key, "error", err)
	}
}

// Put stores file under key, then enforces the byte ceiling.
func (p *Persistent) Put(ctx context.Context, key Fingerprint, lang project.Language, file *ast.File) error {
	payload, err := ast.Encode(file)
	if err != nil {
		return err
	}
	compressed := false
	if p.opts.Compress && len(payload) > p.opts.CompressThreshold {
		payload = p.enc.EncodeAll(payload, make([]byte, 0, len(payload)/2))
		compressed = true
	}

	now := p.now()
	_, err = p.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ast_cache
			(key, version, language, payload, compressed, size_bytes, created_at, expires_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(key), ast.FormatVersion, string(lang), payload, compressed, len(payload),
		now.UnixNano(), now.Add(p.opts.TTL).UnixNano(), now.UnixNano())
	if err != nil {
		return scopeerrors.New(scopeerrors.StorageError, "ast cache write failed", err)
	}
	return p.enforceCeiling(ctx)
}

// enforceCeiling drops expired rows, then least recently accessed rows,
// until the stored payload bytes fit under MaxBytes.
func (p *Persistent) enforceCeiling(ctx context.Context) error {
	total, err := p.totalBytes(ctx)
	if err != nil || total <= p.opts.MaxBytes {
		return err
	}

	res, err := p.db.ExecContext(ctx, `DELETE FROM ast_cache WHERE expires_at <= ?`, p.now().UnixNano())
	if err != nil {
		return scopeerrors.New(scopeerrors.StorageError, "ast cache expiry failed", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		p.expired.Add(n)
		if total, err = p.totalBytes(ctx); err != nil || total <= p.opts.MaxBytes {
			return err
		}
	}

	rows, err := p.db.QueryContext(ctx, `SELECT key, size_bytes FROM ast_cache ORDER BY accessed_at ASC, key ASC`)
	if err != nil {
		return scopeerrors.New(scopeerrors.StorageError, "ast cache eviction scan failed", err)
	}
	var victims []string
	for rows.Next() && total > p.opts.MaxBytes {
		var key string
		var size int64
		if err := rows.Scan(&key, &size); err != nil {
			rows.Close()
			return err
		}
		victims = append(victims, key)
		total -= size
	}
	// The single connection must be released before the deletes run
	if err := rows.Close(); err != nil {
		return err
	}

	err = p.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, key := range victims {
			if _, err := tx.ExecContext(ctx, `DELETE FROM ast_cache WHERE key = ?`, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return scopeerrors.New(scopeerrors.StorageError, "ast cache eviction failed", err)
	}
	p.evictions.Add(int64(len(victims)))
	p.logger.Debug("Evicted ast cache entries", "count", len(victims), "max_bytes", p.opts.MaxBytes)
	return nil
}

func (p *Persistent) totalBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := p.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size_bytes), 0) FROM ast_cache`).Scan(&total); err != nil {
		return 0, scopeerrors.New(scopeerrors.StorageError, "ast cache size query failed", err)
	}
	return total, nil
}

// Purge deletes every entry.
func (p *Persistent) Purge(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM ast_cache`)
	if err != nil {
		return 0, scopeerrors.New(scopeerrors.StorageError, "ast cache purge failed", err)
	}
	return res.RowsAffected()
}

// Stats reads the row count and byte total alongside the counters.
func (p *Persistent) Stats(ctx context.Context) (TierStats, error) {
	stats := TierStats{
		Hits:        p.hits.Load(),
		Misses:      p.misses.Load(),
		Evictions:   p.evictions.Load(),
		Expired:     p.expired.Load(),
		Corruptions: p.corruptions.Load(),
	}
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM ast_cache`).
		Scan(&stats.Entries, &stats.Bytes)
	if err != nil {
		return stats, scopeerrors.New(scopeerrors.StorageError, "ast cache stats failed", err)
	}
	return stats, nil
}

// Close releases the codec resources.
func (p *Persistent) Close() {
	p.enc.Close()
	p.dec.Close()
}
