package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// Sub-store names the bot persists between runs.
const (
	StoreQuotes         = "quotes"
	StoreLiquidityCache = "liquidity-cache"
	StoreBetSizes       = "bet-sizes"
)

// MaxStoreBytes is the per-store payload budget. A snapshot that does not
// fit is rejected loudly rather than truncated silently.
const MaxStoreBytes = 1 << 20

// frameHeaderLen is the length prefix in front of every persisted blob.
const frameHeaderLen = 4

// SubStore persists named state sections as length-prefixed blobs under a
// single-writer lock, implementing domain.SubStore.
type SubStore struct {
	rdb    *redis.Client
	locks  *LockManager
	logger *slog.Logger
}

var _ domain.SubStore = (*SubStore)(nil)

func NewSubStore(c *Client, locks *LockManager, logger *slog.Logger) *SubStore {
	return &SubStore{
		rdb:    c.Underlying(),
		locks:  locks,
		logger: logger.With(slog.String("component", "substore")),
	}
}

func storeKey(name string) string {
	return "store:" + name
}

// Save frames and writes one sub-store under its writer lock. Oversized
// payloads fail with domain.ErrStoreOverflow and an error-level log line.
func (s *SubStore) Save(ctx context.Context, name string, blob []byte) error {
	if len(blob) > MaxStoreBytes {
		s.logger.Error("sub-store payload over budget",
			slog.String("store", name),
			slog.Int("size", len(blob)),
			slog.Int("budget", MaxStoreBytes))
		return fmt.Errorf("redis: save %s: %d bytes over %d budget: %w", name, len(blob), MaxStoreBytes, domain.ErrStoreOverflow)
	}

	release, err := s.locks.Acquire(ctx, "store:"+name)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("redis: save %s: %w", name, domain.ErrLockHeld)
		}
		return err
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logger.Warn("store lock release failed", slog.String("store", name), slog.Any("error", err))
		}
	}()

	framed := make([]byte, frameHeaderLen+len(blob))
	binary.BigEndian.PutUint32(framed, uint32(len(blob)))
	copy(framed[frameHeaderLen:], blob)

	if err := s.rdb.Set(ctx, storeKey(name), framed, 0).Err(); err != nil {
		return fmt.Errorf("redis: save %s: %w", name, err)
	}
	return nil
}

// Load reads and unframes one sub-store. A missing store returns
// domain.ErrNotFound; a corrupt frame is an error, never a partial read.
func (s *SubStore) Load(ctx context.Context, name string) ([]byte, error) {
	framed, err := s.rdb.Get(ctx, storeKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis: load %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("redis: load %s: %w", name, err)
	}
	if len(framed) < frameHeaderLen {
		return nil, fmt.Errorf("redis: load %s: frame shorter than header", name)
	}
	size := binary.BigEndian.Uint32(framed)
	if int(size) != len(framed)-frameHeaderLen {
		return nil, fmt.Errorf("redis: load %s: frame length %d does not match payload %d", name, size, len(framed)-frameHeaderLen)
	}
	return framed[frameHeaderLen:], nil
}
