package onboarding

import (
	"log/slog"

	"github.com/admin/tg-bots/referral-bot/internal/ports/cache"
	"github.com/admin/tg-bots/referral-bot/internal/ports/kafka"
	"github.com/admin/tg-bots/referral-bot/internal/ports/repository"
	"github.com/admin/tg-bots/referral-bot/internal/ports/service"
)

type Config struct {
	// DefaultCountryCode is prefixed to bare local numbers (7-10 digits).
	DefaultCountryCode string `envconfig:"DEFAULT_COUNTRY_CODE" default:"57"`
	// CampaignPhone is the WhatsApp number invite links point at, bare digits.
	CampaignPhone string `envconfig:"CAMPAIGN_PHONE"`
	// BotUsername is the Telegram bot the start deep link points at.
	BotUsername string `envconfig:"BOT_USERNAME"`
	ApiKey      string `envconfig:"API_KEY"`
}

// Service is the conversational onboarding engine: identity resolution, the
// registration state machine and referral issuance.
type Service struct {
	UserRepo  repository.IUserRepo
	Extractor service.IExtractorService
	Producer  kafka.IAssistantProducer
	Cache     cache.Cache
	Alerter   service.IAlerterService
	AIToggle  *AIToggle
	Cfg       *Config
	Log       *slog.Logger

	locks *userLocks
}

func New(
	userRepo repository.IUserRepo,
	extractor service.IExtractorService,
	producer kafka.IAssistantProducer,
	cacheClient cache.Cache,
	alerterService service.IAlerterService,
	aiToggle *AIToggle,
	cfg *Config,
	log *slog.Logger,
) *Service {
	return &Service{
		UserRepo:  userRepo,
		Extractor: extractor,
		Producer:  producer,
		Cache:     cacheClient,
		Alerter:   alerterService,
		AIToggle:  aiToggle,
		Cfg:       cfg,
		Log:       log,
		locks:     newUserLocks(),
	}
}
