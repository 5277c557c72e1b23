package ports

import "context"

// SecretManager resolves sensitive configuration values (DB password,
// provider API key) from a secret backend.
type SecretManager interface {
	GetSecret(ctx context.Context, name string) (string, error)
}
