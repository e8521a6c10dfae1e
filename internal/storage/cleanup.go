// internal/storage/cleanup.go
package storage

import (
	"context"

	"go.uber.org/zap"
)

const (
	// TokenKey is the well-known key the auth provider persists the
	// current token bundle under.
	TokenKey = "ruleboard.auth.token"

	// ProviderKeyPrefix covers every other key the provider may write
	// (code verifiers, refresh bookkeeping, legacy token keys).
	ProviderKeyPrefix = "rb-auth-"
)

// CleanupCredentials removes the well-known token key and every
// provider-prefixed key from each given store. It runs before provider
// sign-out so no stale token survives even if the network call fails.
// Store errors are logged and absorbed; remaining stores are still swept.
func CleanupCredentials(ctx context.Context, logger *zap.Logger, stores ...KeyValue) {
	for _, kv := range stores {
		if err := kv.Del(ctx, TokenKey); err != nil {
			logger.Warn("failed to remove auth token key", zap.Error(err))
		}

		keys, err := kv.Keys(ctx, ProviderKeyPrefix)
		if err != nil {
			logger.Warn("failed to enumerate auth keys", zap.Error(err))
			continue
		}

		for _, key := range keys {
			if err := kv.Del(ctx, key); err != nil {
				logger.Warn("failed to remove auth key",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}
	}
}
