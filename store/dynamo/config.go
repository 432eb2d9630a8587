package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Config holds table settings for the Store.
type Config struct {
	// Table is the users table, partition key "id" (S).
	// Default: "users"
	Table string

	// UniqueTable holds one item per email in use, partition key "pk" (S).
	// Default: "users_unique_emails"
	UniqueTable string

	// SchemaWait bounds how long EnsureSchema waits for new tables to become
	// ACTIVE. Default: 2m
	SchemaWait time.Duration
}

// DefaultConfig returns the table names used by the service.
func DefaultConfig() Config {
	return Config{
		Table:       "users",
		UniqueTable: "users_unique_emails",
		SchemaWait:  2 * time.Minute,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "users"
	}
	if c.UniqueTable == "" {
		c.UniqueTable = "users_unique_emails"
	}
	if c.SchemaWait <= 0 {
		c.SchemaWait = 2 * time.Minute
	}
}

// ClientConfig selects the endpoint a client talks to.
type ClientConfig struct {
	// Region is required by the SDK even against local endpoints.
	// Default: "us-east-1"
	Region string

	// Endpoint overrides service resolution (ScyllaDB Alternator,
	// DynamoDB Local). Empty means the regional AWS endpoint.
	Endpoint string
}

// NewClient loads the default AWS credential chain and returns a client
// bound to cc.
func NewClient(ctx context.Context, cc ClientConfig) (*dynamodb.Client, error) {
	region := cc.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("dynamo: load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cc.Endpoint != "" {
			o.BaseEndpoint = aws.String(cc.Endpoint)
		}
	}), nil
}
