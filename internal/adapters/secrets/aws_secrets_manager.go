package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"
)

// AWSSecretsManagerConfig contains configuration for the AWS Secrets Manager adapter
type AWSSecretsManagerConfig struct {
	// AWS Region (e.g., "us-east-1")
	Region string

	// Optional: AWS profile name (for local development)
	Profile string

	// Optional: Custom endpoint (for LocalStack testing)
	Endpoint string

	// Cache TTL for secrets (default: 5 minutes)
	CacheTTL time.Duration
}

// AWSSecretsManager resolves secrets such as the gateway API key and database
// password at startup. Values are cached with a TTL so restarts of the
// reconciliation loop don't hammer the API.
type AWSSecretsManager struct {
	client *secretsmanager.Client
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// NewAWSSecretsManager creates a new AWS Secrets Manager adapter
func NewAWSSecretsManager(ctx context.Context, cfg AWSSecretsManagerConfig, logger *zap.Logger) (*AWSSecretsManager, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	clientOptions := []func(*secretsmanager.Options){}
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	logger.Info("AWS Secrets Manager adapter initialized",
		zap.String("region", cfg.Region),
		zap.Duration("cache_ttl", cfg.CacheTTL))

	return &AWSSecretsManager{
		client: secretsmanager.NewFromConfig(awsConfig, clientOptions...),
		ttl:    cfg.CacheTTL,
		logger: logger,
		cache:  make(map[string]cachedSecret),
	}, nil
}

// GetSecret retrieves a secret value by name or full ARN
func (m *AWSSecretsManager) GetSecret(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	if entry, ok := m.cache[name]; ok && time.Now().Before(entry.expiresAt) {
		m.mu.Unlock()
		return entry.value, nil
	}
	m.mu.Unlock()

	result, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		m.logger.Error("failed to retrieve secret", zap.String("name", name), zap.Error(err))
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}

	value := aws.ToString(result.SecretString)

	m.mu.Lock()
	m.cache[name] = cachedSecret{value: value, expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()

	return value, nil
}
