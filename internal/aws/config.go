package aws

import (
	"context"
	"fmt"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Options selects the region and an optional endpoint override (LocalStack).
type Options struct {
	Region   string
	Endpoint string
}

// LoadAWSConfig resolves the SDK configuration from the default credential chain.
func LoadAWSConfig(ctx context.Context, opts Options) (sdkaws.Config, error) {
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = DefaultRegion
	}

	loaders := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		loaders = append(loaders, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}
