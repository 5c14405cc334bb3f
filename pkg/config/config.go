package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port         string `envconfig:"PORT" default:"8080"`
	AWSRegion    string `envconfig:"AWS_REGION" default:"us-east-1"`
	KafkaBrokers string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`

	BillingEventsTopic   string `envconfig:"BILLING_EVENTS_TOPIC" default:"billing-events"`
	OrderEventsTopic     string `envconfig:"ORDER_EVENTS_TOPIC" default:"order-events"`
	ExecutionEventsTopic string `envconfig:"EXECUTION_EVENTS_TOPIC" default:"execution-events"`
	ConsumerGroupID      string `envconfig:"KAFKA_CONSUMER_GROUP" default:"billing-service"`

	PublishRetryBudget time.Duration `envconfig:"PUBLISH_RETRY_BUDGET" default:"30s"`
	ConsumeRetryBudget time.Duration `envconfig:"CONSUME_RETRY_BUDGET" default:"30s"`
	BreakerInterval    time.Duration `envconfig:"BREAKER_INTERVAL" default:"60s"`
	BreakerTimeout     time.Duration `envconfig:"BREAKER_TIMEOUT" default:"15s"`

	MercadoPagoAccessToken string `envconfig:"MERCADOPAGO_ACCESS_TOKEN" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BrokerList splits the comma-separated KAFKA_BROKERS value.
func (c *Config) BrokerList() []string {
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			brokers = append(brokers, v)
		}
	}
	return brokers
}
