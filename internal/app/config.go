package app

import (
	server "github.com/admin/tg-bots/referral-bot/internal/adapters/primary/http"
	alerterAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/alerter"
	extractorAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/extractor"
	kafkaAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/kafka"
	"github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/storage/pg"
	redisAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/storage/redis"
	"github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/telegram"
	"github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/whatsapp"
	"github.com/admin/tg-bots/referral-bot/internal/pkg/logger"
	"github.com/admin/tg-bots/referral-bot/internal/usecases/onboarding"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Postgres   *pg.Config               `envconfig:"POSTGRES"`
	Redis      *redisAdapter.Config     `envconfig:"REDIS"`
	Log        *logger.Config           `envconfig:"LOG"`
	Server     *server.Config           `envconfig:"APISERVER"`
	Telegram   *telegram.Config         `envconfig:"TELEGRAM"`
	WhatsApp   *whatsapp.Config         `envconfig:"WHATSAPP"`
	Extractor  *extractorAdapter.Config `envconfig:"EXTRACTOR"`
	Alerter    *alerterAdapter.Config   `envconfig:"ALERTER"`
	Onboarding *onboarding.Config       `envconfig:"ONBOARDING"`

	// KafkaRequests publishes assistant requests, KafkaReplies consumes the
	// responder's answers.
	KafkaRequests *kafkaAdapter.Config `envconfig:"KAFKA_REQUESTS"`
	KafkaReplies  *kafkaAdapter.Config `envconfig:"KAFKA_REPLIES"`
}

func NewEnvConfig(envPrefix string) (*Config, error) {
	cfg := &Config{}

	_ = godotenv.Load("deployments/local/.env")

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
