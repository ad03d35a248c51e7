package store

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
)

// ErrNotFound is returned for missing or expired keys.
var ErrNotFound = errors.New("store: key not found")

type Entry struct {
	Key   string
	Value []byte
	TTL   time.Duration // 0 => no expiry
}

// Store is the key/value collaborator holding algorithm configs and
// execution records. Values are opaque bytes; callers that want JSON use
// GetJSON/SetJSON.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// SetMany writes all entries or none.
	SetMany(ctx context.Context, entries []Entry) error
	// Keys lists live keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

func GetJSON(ctx context.Context, s Store, key string, out any) error {
	b, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(b, out)
}

func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	b, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, b, ttl)
}
