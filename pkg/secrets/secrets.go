// Package secrets resolves provider credentials from Vault, falling back to the environment.
package secrets

import (
	"context"
	"errors"

	"talking-avatar/backend/pkg/config"
	"talking-avatar/backend/pkg/logger"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Secret keys. The environment fallback upper-cases them.
const (
	KeyOpenAI     = "openai_api_key"
	KeyElevenLabs = "eleven_labs_api_key"
)

// ResolveProviderKeys fills the provider keys in cfg that the environment left
// empty. A key missing everywhere stays empty and the pipeline runs degraded.
func ResolveProviderKeys(ctx context.Context, m Manager, cfg *config.Config, log *logger.Logger) {
	fill := func(key string, dst *string) {
		if *dst != "" {
			return
		}
		value, err := m.GetSecret(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrSecretNotFound) {
				log.Warn("could not resolve provider key", "key", key, "error", err.Error())
			}
			return
		}
		*dst = value
	}

	fill(KeyOpenAI, &cfg.Providers.OpenAIKey)
	fill(KeyElevenLabs, &cfg.Providers.ElevenLabsKey)
}
