package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"talking-avatar/backend/pkg/config"
	"talking-avatar/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// VaultConfig holds configuration for the Vault client
type VaultConfig struct {
	Address    string
	Token      string
	Namespace  string
	Timeout    time.Duration
	MaxRetries int
	// SecretsPath is the full KV v2 data path, e.g. secret/data/avatar
	SecretsPath string
	Enabled     bool
	CacheTTL    time.Duration
}

// VaultConfigFrom maps the application config onto VaultConfig
func VaultConfigFrom(cfg *config.Config) VaultConfig {
	return VaultConfig{
		Address:     cfg.Vault.Address,
		Token:       cfg.Vault.Token,
		Namespace:   cfg.Vault.Namespace,
		SecretsPath: cfg.Vault.SecretsPath,
		Enabled:     cfg.Vault.Enabled,
		Timeout:     10 * time.Second,
		MaxRetries:  3,
		CacheTTL:    5 * time.Minute,
	}
}

type cachedSecret struct {
	value   string
	expires time.Time
}

// VaultManager reads secrets from one KV v2 entry
type VaultManager struct {
	client *vault.Client
	config VaultConfig
	mount  string
	path   string
	log    *logger.Logger

	mu    sync.RWMutex
	cache map[string]cachedSecret
	now   func() time.Time
}

// NewVaultManager creates a manager. With Vault disabled it reads only the environment.
func NewVaultManager(cfg VaultConfig, log *logger.Logger) (*VaultManager, error) {
	if log == nil {
		log = logger.GetGlobal()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	m := &VaultManager{
		config: cfg,
		log:    log,
		cache:  make(map[string]cachedSecret),
		now:    time.Now,
	}
	if !cfg.Enabled {
		return m, nil
	}

	if cfg.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if cfg.Token == "" {
		return nil, ErrNoVaultToken
	}
	if cfg.SecretsPath == "" {
		cfg.SecretsPath = "secret/data/avatar"
	}
	mount, path, err := splitKVPath(cfg.SecretsPath)
	if err != nil {
		return nil, err
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	vaultConfig.Timeout = cfg.Timeout
	vaultConfig.MaxRetries = cfg.MaxRetries

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	m.client = client
	m.config = cfg
	m.mount = mount
	m.path = path
	return m, nil
}

// splitKVPath turns "secret/data/avatar" into mount "secret" and path "avatar"
func splitKVPath(full string) (string, string, error) {
	parts := strings.SplitN(strings.Trim(full, "/"), "/", 3)
	if len(parts) == 3 && parts[1] == "data" && parts[0] != "" && parts[2] != "" {
		return parts[0], parts[2], nil
	}
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("invalid vault secrets path %q", full)
}

// GetSecret checks the cache, then Vault, then the environment
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	if value, ok := m.cached(key); ok {
		return value, nil
	}

	if !m.config.Enabled {
		return m.getFromEnvironment(key)
	}

	value, err := m.getFromVault(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("secret not found in Vault, falling back to environment", "key", key)
			return m.getFromEnvironment(key)
		}
		return "", err
	}

	m.cacheSecret(key, value)
	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		m.log.Warn("failed to get secret, using default value", "key", key, "error", err.Error())
		return defaultValue
	}
	return value
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2(m.mount).Get(ctx, m.path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		m.log.Error("failed to read secret from Vault", "mount", m.mount, "path", m.path, "error", err.Error())
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// getFromEnvironment maps "eleven-labs.key" style names to ELEVEN_LABS_KEY
func (m *VaultManager) getFromEnvironment(key string) (string, error) {
	envKey := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))

	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}

	m.cacheSecret(key, value)
	return value, nil
}

func (m *VaultManager) cached(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.cache[key]
	if !ok || m.now().After(entry.expires) {
		return "", false
	}
	return entry.value, true
}

func (m *VaultManager) cacheSecret(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = cachedSecret{value: value, expires: m.now().Add(m.config.CacheTTL)}
}
