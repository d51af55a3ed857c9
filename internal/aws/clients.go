package aws

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// AWSClients is what cmd/api and cmd/worker share: one client per service,
// each held behind the narrow interface the stores need.
type AWSClients struct {
	DynamoDB   DynamoDBAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
}

// NewAWSClients resolves the SDK config for opts and builds the clients.
func NewAWSClients(ctx context.Context, opts Options) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewClientsFromConfig(cfg), nil
}

// NewClientsFromConfig builds the clients from an already resolved config.
func NewClientsFromConfig(cfg sdkaws.Config) *AWSClients {
	c := &AWSClients{}
	c.DynamoDB = dynamodb.NewFromConfig(cfg)
	c.SQS = sqs.NewFromConfig(cfg)
	c.CloudWatch = cloudwatch.NewFromConfig(cfg)
	return c
}
