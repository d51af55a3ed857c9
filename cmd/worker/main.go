package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/aws"
	"github.com/web-kovcheg/storefront/internal/config"
	"github.com/web-kovcheg/storefront/internal/idempotency"
	"github.com/web-kovcheg/storefront/internal/logging"
	"github.com/web-kovcheg/storefront/internal/orders"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	clients, err := aws.NewAWSClients(context.Background(), aws.Options{Region: cfg.AWSRegion, Endpoint: cfg.AWSEndpoint})
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	p := NewProcessor(
		orders.NewStore(clients.DynamoDB, cfg.Tables.Orders),
		idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.IdempotencyTTL),
		aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace),
		logger,
	)

	// RUN_LOCAL=true processes one event built from LOCAL_SQS_BODY and exits.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"order_id":"local-order-1","idempotency_key":"local-key-1"}`
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local", Body: body}}}
		if err := p.Handle(context.Background(), event); err != nil {
			logger.Fatal("local handler error", zap.Error(err))
		}
		return
	}

	lambda.Start(p.Handle)
}
