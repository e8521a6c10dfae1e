// internal/storage/kv.go
package storage

import (
	"context"
	"strings"
)

// KeyValue is a capability-scoped client-side key-value store. Callers
// get explicit enumerate/remove operations instead of reaching for a
// global store.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	// Keys returns every stored key with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Scoped returns a view of kv where every key is transparently prefixed.
// It is how a shared durable store is narrowed to one user's namespace.
func Scoped(kv KeyValue, prefix string) KeyValue {
	return &scopedKV{kv: kv, prefix: prefix}
}

type scopedKV struct {
	kv     KeyValue
	prefix string
}

func (s *scopedKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.kv.Get(ctx, s.prefix+key)
}

func (s *scopedKV) Set(ctx context.Context, key string, value []byte) error {
	return s.kv.Set(ctx, s.prefix+key, value)
}

func (s *scopedKV) Del(ctx context.Context, key string) error {
	return s.kv.Del(ctx, s.prefix+key)
}

func (s *scopedKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.kv.Keys(ctx, s.prefix+prefix)
	if err != nil {
		return nil, err
	}

	trimmed := make([]string, 0, len(keys))
	for _, k := range keys {
		trimmed = append(trimmed, strings.TrimPrefix(k, s.prefix))
	}
	return trimmed, nil
}
