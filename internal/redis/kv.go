package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/arcade-progress/internal/store"
	"github.com/redis/go-redis/v9"
)

// maxTxAttempts bounds optimistic retries of one Update
const maxTxAttempts = 10

// ErrTxConflict is returned when an Update kept losing to concurrent writers
var ErrTxConflict = errors.New("too many conflicting updates")

// KV stores progress blobs as plain Redis strings
type KV struct {
	client *redis.Client
	keys   keys
}

// NewKV creates a KV under prefix
func NewKV(client *redis.Client, prefix string) *KV {
	return &KV{client: client, keys: keys{prefix: prefix}}
}

// Get returns the blob stored under key
func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return getBlob(ctx, s.client, s.keys.blob(key))
}

// Set stores value under key without expiry
func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.keys.blob(key), value, 0).Err(); err != nil {
		return fmt.Errorf("setting blob: %w", err)
	}
	return nil
}

// Update watches keys, runs fn and commits its writes in MULTI/EXEC. A
// concurrent write to a watched key aborts the commit and fn runs again.
func (s *KV) Update(ctx context.Context, keys []string, fn func(store.Txn) error) error {
	watched := make([]string, len(keys))
	for i, k := range keys {
		watched[i] = s.keys.blob(k)
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			t := &kvTxn{ctx: ctx, tx: tx, keys: s.keys, staged: make(map[string][]byte)}
			if err := fn(t); err != nil {
				return err
			}
			if len(t.staged) == 0 {
				return nil
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for k, v := range t.staged {
					pipe.Set(ctx, s.keys.blob(k), v, 0)
				}
				return nil
			})
			return err
		}, watched...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("updating blobs: %w", err)
		}
		return nil
	}
	return fmt.Errorf("updating blobs: %w", ErrTxConflict)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getBlob(ctx context.Context, c getter, key string) ([]byte, bool, error) {
	val, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting blob: %w", err)
	}
	return val, true, nil
}

// kvTxn reads through the watching connection and buffers writes for EXEC
type kvTxn struct {
	ctx    context.Context
	tx     *redis.Tx
	keys   keys
	staged map[string][]byte
}

func (t *kvTxn) Get(key string) ([]byte, bool, error) {
	if v, ok := t.staged[key]; ok {
		return v, true, nil
	}
	return getBlob(t.ctx, t.tx, t.keys.blob(key))
}

func (t *kvTxn) Set(key string, value []byte) {
	t.staged[key] = value
}
