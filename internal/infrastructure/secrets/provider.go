package secrets

import (
	"fmt"
	"os"
	"sync"

	"github.com/pricepilot/linkverify/internal/domain"
)

// EnvProvider resolves secrets from process environment variables.
// The deployment environment injects credentials at process start; rotating a
// credential requires a process restart.
type EnvProvider struct{}

// NewEnvProvider creates an environment-backed secret provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// GetSecret returns the value of the named environment variable.
func (p *EnvProvider) GetSecret(name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrSecretNotFound, name)
	}
	return value, nil
}

// CachingProvider wraps a SecretProvider with a process-lifetime memoizing
// cache, populated lazily on first access. Concurrent first-access races are
// harmless: all writers resolve the same value, so an idempotent overwrite
// under the lock cannot corrupt the cache. Errors are not cached.
type CachingProvider struct {
	backend domain.SecretProvider
	mutex   sync.RWMutex
	values  map[string]string
}

// NewCachingProvider wraps backend with an at-most-once secret cache.
func NewCachingProvider(backend domain.SecretProvider) *CachingProvider {
	return &CachingProvider{
		backend: backend,
		values:  make(map[string]string),
	}
}

// GetSecret returns the cached value, resolving it through the backend on
// first access.
func (p *CachingProvider) GetSecret(name string) (string, error) {
	p.mutex.RLock()
	value, ok := p.values[name]
	p.mutex.RUnlock()
	if ok {
		return value, nil
	}

	value, err := p.backend.GetSecret(name)
	if err != nil {
		return "", err
	}

	p.mutex.Lock()
	p.values[name] = value
	p.mutex.Unlock()

	return value, nil
}

// Size returns the number of cached secrets (for debugging/monitoring).
func (p *CachingProvider) Size() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return len(p.values)
}
