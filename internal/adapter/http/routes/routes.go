package routes

import (
	"context"
	"errors"
	"log"

	_ "mecanica_billing/docs" // This will be auto-generated
	"mecanica_billing/internal/adapter/http/handlers"
	"mecanica_billing/internal/adapter/persistence/repository"
	"mecanica_billing/internal/infrastructure/database"
	"mecanica_billing/internal/infrastructure/messaging"
	"mecanica_billing/internal/infrastructure/payments"
	"mecanica_billing/internal/saga"
	"mecanica_billing/internal/usecase"
	"mecanica_billing/internal/usecase/interfaces"
	"mecanica_billing/pkg/config"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

var router = gin.Default()

// Run wires the whole service and starts the HTTP server and the saga
// consumers. It blocks until the server stops.
func Run() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setMiddlewares()

	// Swagger documentation endpoint
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	getRoutes(cfg)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to startup the application: %v", err.Error())
	}
}

func getRoutes(cfg *config.Config) {
	ctx := context.Background()
	ddb := database.ConnectDynamoDB(ctx)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	metrics := messaging.NewMetrics()

	quoteRepo := repository.NewQuoteDynamoRepository(ddb)
	paymentRepo := repository.NewPaymentDynamoRepository(ddb)

	publisher := messaging.NewKafkaEventPublisher(messaging.PublisherConfig{
		Brokers:         cfg.BrokerList(),
		Topic:           cfg.BillingEventsTopic,
		MaxElapsedRetry: cfg.PublishRetryBudget,
		BreakerInterval: cfg.BreakerInterval,
		BreakerTimeout:  cfg.BreakerTimeout,
	}, zapLogger, metrics)

	var paymentGateway interfaces.IPaymentGateway
	mpGateway, err := payments.NewMercadoPagoGateway(cfg.MercadoPagoAccessToken)
	if err != nil {
		log.Printf("Mercado Pago gateway not configured: %v", err)
	} else {
		paymentGateway = mpGateway
	}

	quoteUseCase := usecase.NewQuoteUseCase(quoteRepo, publisher)
	paymentUseCase := usecase.NewPaymentUseCase(paymentRepo, quoteRepo, paymentGateway, publisher)

	startSagaConsumers(ctx, cfg, quoteUseCase, zapLogger, metrics)

	quoteHandler := handlers.NewQuoteHandler(quoteUseCase)
	paymentHandler := handlers.NewPaymentHandler(paymentUseCase, metrics)
	monitoringHandler := handlers.NewMonitoringHandler(metrics)

	v1 := router.Group("/v1")
	addPingRoutes(v1)
	addBillingRoutes(v1, quoteHandler, paymentHandler, monitoringHandler)
}

// startSagaConsumers runs one consumer per inbound topic. A stopped consumer
// takes the process down: the service must not silently run half the saga.
func startSagaConsumers(ctx context.Context, cfg *config.Config, quoteUseCase usecase.IQuoteUseCase, logger *zap.Logger, metrics *messaging.Metrics) {
	coordinator := saga.NewCoordinator(quoteUseCase, logger)

	orderConsumer := messaging.NewKafkaEventConsumer(messaging.ConsumerConfig{
		Brokers:         cfg.BrokerList(),
		Topic:           cfg.OrderEventsTopic,
		GroupID:         cfg.ConsumerGroupID,
		MaxElapsedRetry: cfg.ConsumeRetryBudget,
	}, coordinator.OrderEventHandlers(), logger, metrics)

	executionConsumer := messaging.NewKafkaEventConsumer(messaging.ConsumerConfig{
		Brokers:         cfg.BrokerList(),
		Topic:           cfg.ExecutionEventsTopic,
		GroupID:         cfg.ConsumerGroupID,
		MaxElapsedRetry: cfg.ConsumeRetryBudget,
	}, coordinator.ExecutionEventHandlers(), logger, metrics)

	for _, consumer := range []*messaging.KafkaEventConsumer{orderConsumer, executionConsumer} {
		go func(c *messaging.KafkaEventConsumer) {
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Fatalf("Saga consumer stopped: %v", err)
			}
		}(consumer)
	}
}

func setMiddlewares() {
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Printf("Recovered from panic: %v", recovered)
		c.AbortWithStatus(500)
	}))
}
