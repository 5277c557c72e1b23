package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// LocalSecretManager resolves secrets from environment variables. Used for
// local development and tests; secret names map to env vars by uppercasing
// and replacing path separators ("premium/gateway-key" -> "PREMIUM_GATEWAY_KEY").
type LocalSecretManager struct{}

// NewLocalSecretManager creates an environment-backed secret manager
func NewLocalSecretManager() *LocalSecretManager {
	return &LocalSecretManager{}
}

// GetSecret retrieves a secret from the environment
func (m *LocalSecretManager) GetSecret(_ context.Context, name string) (string, error) {
	key := strings.ToUpper(name)
	key = strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(key)

	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secret %s not set (env var %s)", name, key)
	}
	return value, nil
}
