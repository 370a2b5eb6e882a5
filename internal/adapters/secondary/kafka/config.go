package kafka

import (
	"strings"
)

// Config configures one Kafka producer or consumer.
type Config struct {
	Brokers          string `envconfig:"BROKERS"`           // "broker1:9092,broker2:9092"
	Topic            string `envconfig:"TOPIC"`             // topic name
	ConsumerGroup    string `envconfig:"CONSUMER_GROUP"`    // consumer group (consumer only)
	SecurityProtocol string `envconfig:"SECURITY_PROTOCOL"` // "SASL_SSL", "PLAINTEXT"
	SASLMechanism    string `envconfig:"SASL_MECHANISM"`    // "PLAIN", "SCRAM-SHA-256"
	SASLUsername     string `envconfig:"SASL_USERNAME"`
	SASLPassword     string `envconfig:"SASL_PASSWORD"`
}

func (c *Config) GetBrokers() []string {
	if c.Brokers == "" {
		return []string{"localhost:9092"}
	}
	return strings.Split(c.Brokers, ",")
}

func (c *Config) IsConfigured() bool {
	return c != nil && c.Topic != ""
}
