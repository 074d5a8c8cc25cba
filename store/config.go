package store

import (
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Config holds configuration for the Store.
type Config struct {
	// MaxWriteItems is the most operations a write set may carry.
	// Default: 25
	// Max: 100 (the TransactWriteItems service limit)
	MaxWriteItems int

	// MaxLoadItems is the most keys a load set may carry.
	// Default: 100
	// Max: 100 (the TransactGetItems service limit)
	MaxLoadItems int

	// IdempotencyTokens sends a fresh ClientRequestToken with each write
	// transaction, so SDK-level retries of the same call are idempotent.
	IdempotencyTokens bool

	// BillingMode is used by CreateTables.
	// Default: PAY_PER_REQUEST
	BillingMode types.BillingMode

	// ProvisionedThroughput is used by CreateTables when BillingMode is PROVISIONED.
	// Default: 1 read and 1 write capacity unit
	ProvisionedThroughput *types.ProvisionedThroughput

	// Logger receives dispatch and cancellation logs.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns the limits of the current DynamoDB transaction API.
func DefaultConfig() Config {
	return Config{
		MaxWriteItems: 25,
		MaxLoadItems:  100,
		BillingMode:   types.BillingModePayPerRequest,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.MaxWriteItems < 1 {
		c.MaxWriteItems = 25
	}
	if c.MaxWriteItems > 100 {
		c.MaxWriteItems = 100
	}
	if c.MaxLoadItems < 1 {
		c.MaxLoadItems = 100
	}
	if c.MaxLoadItems > 100 {
		c.MaxLoadItems = 100
	}
	if c.BillingMode == "" {
		c.BillingMode = types.BillingModePayPerRequest
	}
	if c.BillingMode == types.BillingModeProvisioned && c.ProvisionedThroughput == nil {
		c.ProvisionedThroughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
