package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/address"
	"github.com/web-kovcheg/storefront/internal/aws"
	"github.com/web-kovcheg/storefront/internal/checkout"
	"github.com/web-kovcheg/storefront/internal/config"
	"github.com/web-kovcheg/storefront/internal/docstore"
	"github.com/web-kovcheg/storefront/internal/geocode"
	"github.com/web-kovcheg/storefront/internal/handlers"
	"github.com/web-kovcheg/storefront/internal/idempotency"
	"github.com/web-kovcheg/storefront/internal/logging"
	"github.com/web-kovcheg/storefront/internal/orders"
	"github.com/web-kovcheg/storefront/internal/shipping"
)

func setupRouter(logger *zap.Logger, cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

// buildHandlerConfig wires stores, the geocoder and services from cfg.
func buildHandlerConfig(cfg config.Config, clients *aws.AWSClients, logger *zap.Logger) handlers.HandlerConfig {
	docs := docstore.NewDynamoStore(clients.DynamoDB, cfg.Tables.Collections())

	provider, err := geocode.NewProvider(cfg.Geocoder.Provider, geocode.ProviderOptions{
		BaseURL:     cfg.Geocoder.BaseURL,
		UserAgent:   cfg.Geocoder.UserAgent,
		Country:     cfg.Geocoder.Country,
		CountryCode: cfg.Geocoder.CountryCode,
		Timeout:     cfg.Geocoder.Timeout,
	})
	if err != nil {
		// lookups that miss the cache report geocoder_not_implemented
		logger.Warn("geocoder provider unavailable", zap.String("provider", cfg.Geocoder.Provider), zap.Error(err))
	}

	resolver := geocode.NewResolver(address.NewNormalizer(cfg.Geocoder.Country), geocode.NewCache(docs), provider, cfg.Geocoder.Provider)
	suggester := geocode.NewSuggester(provider, cfg.Geocoder.Provider, docs)

	catalog := shipping.NewCatalog(docs)
	quoter := shipping.NewQuoter(cfg.Warehouse, resolver, shipping.NewWeightResolver(catalog), shipping.NewConfigLoader(docs))

	metrics := aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace)
	svc := checkout.NewService(checkout.Deps{
		Catalog:   catalog,
		Quoter:    quoter,
		Orders:    orders.NewStore(clients.DynamoDB, cfg.Tables.Orders),
		Keys:      idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.IdempotencyTTL),
		Publisher: aws.NewPublisher(clients.SQS, cfg.OrdersQueueURL),
		Metrics:   metrics,
		KeyTTL:    cfg.IdempotencyTTL,
	})

	return handlers.HandlerConfig{
		Quoter:    quoter,
		Suggester: suggester,
		Checkout:  svc,
		Metrics:   metrics,
	}
}

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

	if cfg.Warehouse == nil {
		logger.Warn("WAREHOUSE_LAT/WAREHOUSE_LON not set; shipping quotes will fail")
	}

	clients, err := aws.NewAWSClients(context.Background(), aws.Options{Region: cfg.AWSRegion, Endpoint: cfg.AWSEndpoint})
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	r := setupRouter(logger, buildHandlerConfig(cfg, clients, logger))

	// RUN_LOCAL=true serves plain HTTP for development.
	if cfg.RunLocal {
		addr := ":8080"
		logger.Info("running local server", zap.String("addr", addr))
		if err := r.Run(addr); err != nil {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
