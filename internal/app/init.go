package app

import (
	"context"
	"fmt"
	"net/http"

	server "github.com/admin/tg-bots/referral-bot/internal/adapters/primary/http"
	apiController "github.com/admin/tg-bots/referral-bot/internal/adapters/primary/http/controllers/api"
	healthcheckController "github.com/admin/tg-bots/referral-bot/internal/adapters/primary/http/controllers/healthcheck"
	telegramController "github.com/admin/tg-bots/referral-bot/internal/adapters/primary/http/controllers/telegram"
	whatsappController "github.com/admin/tg-bots/referral-bot/internal/adapters/primary/http/controllers/whatsapp"
	kafkaConsumerAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/primary/kafka"
	kafkaHandlers "github.com/admin/tg-bots/referral-bot/internal/adapters/primary/kafka/handlers"
	alerterAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/alerter"
	extractorAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/extractor"
	kafkaAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/kafka"
	"github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/storage/pg"
	redisAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/storage/redis"
	tgAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/telegram"
	waAdapter "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/whatsapp"
	"github.com/admin/tg-bots/referral-bot/internal/ports/cache"
	kafkaPort "github.com/admin/tg-bots/referral-bot/internal/ports/kafka"
	"github.com/admin/tg-bots/referral-bot/internal/ports/messaging"
	ports "github.com/admin/tg-bots/referral-bot/internal/ports/repository"
	"github.com/admin/tg-bots/referral-bot/internal/ports/service"
	userRepo "github.com/admin/tg-bots/referral-bot/internal/repository/user"
	alerterService "github.com/admin/tg-bots/referral-bot/internal/services/alerter"
	jobScheduler "github.com/admin/tg-bots/referral-bot/internal/services/jobs"
	messengerService "github.com/admin/tg-bots/referral-bot/internal/services/messenger"
	"github.com/admin/tg-bots/referral-bot/internal/usecases/onboarding"
	"github.com/jmoiron/sqlx"
)

type Dependencies struct {
	DB            *sqlx.DB
	HTTPServer    *http.Server
	Cache         cache.Cache
	KafkaProducer *kafkaAdapter.Producer
	KafkaConsumer *kafkaConsumerAdapter.Consumer
	JobScheduler  *jobScheduler.Scheduler
	Onboarding    *onboarding.Service
}

func (a *App) initDependencies(ctx context.Context) (*Dependencies, error) {
	db, err := a.initPostgres()
	if err != nil {
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	persistenceLayer := pg.NewDB(db)
	users := userRepo.New(persistenceLayer, a.Log)

	external := a.initExternalServices()

	aiToggle := onboarding.NewAIToggle(external.Cache, a.Log)

	producer, err := a.initKafkaProducer()
	if err != nil {
		return nil, fmt.Errorf("failed to init kafka producer: %w", err)
	}

	// A typed nil pointer inside the interface would defeat the nil checks
	// downstream, so the assignment is guarded.
	var assistantProducer kafkaPort.IAssistantProducer
	if producer != nil {
		assistantProducer = producer
	}

	onboardingService := onboarding.New(
		users,
		external.Extractor, // may be nil
		assistantProducer,  // may be nil
		external.Cache,     // may be nil
		external.Alerter,   // may be nil
		aiToggle,
		a.Cfg.Onboarding,
		a.Log,
	)

	messenger, tgClient, waClient := a.initMessenger()

	consumer, err := a.initKafkaConsumer(messenger)
	if err != nil {
		return nil, fmt.Errorf("failed to init kafka consumer: %w", err)
	}

	httpServer := a.initHTTP(db, onboardingService, messenger, waClient)

	if err := a.setupTelegramWebhook(ctx, tgClient); err != nil {
		return nil, fmt.Errorf("failed to setup telegram webhook: %w", err)
	}

	scheduler := a.initJobScheduler(external.Alerter, aiToggle, users, external.Cache)

	return &Dependencies{
		DB:            db,
		HTTPServer:    httpServer,
		Cache:         external.Cache,
		KafkaProducer: producer,
		KafkaConsumer: consumer,
		JobScheduler:  scheduler,
		Onboarding:    onboardingService,
	}, nil
}

// externalServices holds optional collaborators; a nil field degrades the
// matching feature instead of failing startup.
type externalServices struct {
	Extractor service.IExtractorService
	Alerter   service.IAlerterService
	Cache     cache.Cache
}

func (a *App) initExternalServices() *externalServices {
	services := &externalServices{}

	if a.Cfg.Extractor == nil || a.Cfg.Extractor.BaseURL == "" {
		a.Log.Warn("extractor not configured, registration will use the deterministic fallback only")
	} else {
		services.Extractor = extractorAdapter.NewClient(a.Cfg.Extractor, a.Log)
	}

	if a.Cfg.Alerter != nil && a.Cfg.Alerter.BotToken != "" {
		alerterClient := alerterAdapter.NewClient(a.Cfg.Alerter, a.Log)
		services.Alerter = alerterService.New(alerterClient)
	}

	if a.Cfg.Redis != nil {
		redisClient, err := a.Cfg.Redis.NewConnection()
		if err != nil {
			a.Log.Warn("failed to init redis cache, continuing without cache", "error", err)
		} else {
			services.Cache = redisAdapter.NewClient(redisClient)
			a.Log.Info("redis cache connected successfully")
		}
	}

	return services
}

func (a *App) initMessenger() (service.IMessengerService, *tgAdapter.Client, *waAdapter.Client) {
	var tgClient *tgAdapter.Client
	var waClient *waAdapter.Client
	var tgMessaging, waMessaging messaging.Client

	if a.Cfg.Telegram != nil && a.Cfg.Telegram.BotToken != "" {
		tgClient = tgAdapter.NewClient(a.Cfg.Telegram.BotToken, a.Log)
		tgMessaging = tgClient
	} else {
		a.Log.Warn("telegram not configured")
	}

	if a.Cfg.WhatsApp != nil && a.Cfg.WhatsApp.AccessToken != "" {
		waClient = waAdapter.NewClient(a.Cfg.WhatsApp, a.Log)
		waMessaging = waClient
	} else {
		a.Log.Warn("whatsapp not configured")
	}

	return messengerService.New(tgMessaging, waMessaging, a.Log), tgClient, waClient
}

func (a *App) initKafkaProducer() (*kafkaAdapter.Producer, error) {
	if !a.Cfg.KafkaRequests.IsConfigured() {
		a.Log.Warn("kafka requests topic not configured, assistant sub-flow disabled")
		return nil, nil
	}

	return kafkaAdapter.NewProducer(a.Cfg.KafkaRequests, a.Log)
}

func (a *App) initKafkaConsumer(messenger service.IMessengerService) (*kafkaConsumerAdapter.Consumer, error) {
	if !a.Cfg.KafkaReplies.IsConfigured() || a.Cfg.KafkaReplies.ConsumerGroup == "" {
		a.Log.Warn("kafka replies topic not configured, assistant answers will not be delivered")
		return nil, nil
	}

	handler := kafkaHandlers.NewAssistantReplyHandler(messenger, a.Log)
	return kafkaConsumerAdapter.NewConsumer(a.Cfg.KafkaReplies, handler, a.Log)
}

func (a *App) initHTTP(
	db *sqlx.DB,
	onboardingService *onboarding.Service,
	messenger service.IMessengerService,
	waClient *waAdapter.Client,
) *http.Server {
	apiKey := ""
	if a.Cfg.Onboarding != nil {
		apiKey = a.Cfg.Onboarding.ApiKey
	}

	controllers := []server.Controller{
		healthcheckController.New(db, a.Log),
		apiController.New(onboardingService, apiKey, a.Log),
	}

	if a.Cfg.Telegram != nil && a.Cfg.Telegram.BotToken != "" {
		controllers = append(controllers,
			telegramController.New(onboardingService, messenger, a.Cfg.Telegram.SecretToken, a.Log))
	}

	if waClient != nil {
		controllers = append(controllers,
			whatsappController.New(onboardingService, messenger, waClient, a.Log))
	}

	return server.NewHTTPServer(a.Cfg.Server, a.Log, controllers...)
}

func (a *App) setupTelegramWebhook(ctx context.Context, tgClient *tgAdapter.Client) error {
	if tgClient == nil || !a.Cfg.Telegram.IsWebhookEnabled() {
		return nil
	}

	webhookURL := fmt.Sprintf("%s/webhook/telegram", a.Cfg.Telegram.WebhookURL)
	if err := tgClient.SetWebhook(ctx, webhookURL, a.Cfg.Telegram.SecretToken); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	a.Log.Info("telegram webhook set successfully", "webhook_url", webhookURL)
	return nil
}

func (a *App) initJobScheduler(
	alerterSvc service.IAlerterService,
	aiToggle *onboarding.AIToggle,
	users ports.IUserRepo,
	cacheClient cache.Cache,
) *jobScheduler.Scheduler {
	scheduler := jobScheduler.NewScheduler(a.Log, alerterSvc)

	if cacheClient != nil {
		scheduler.Register(jobScheduler.NewToggleReconciler(aiToggle, a.Log))
		a.Log.Info("ai toggle reconciler job registered")
	}

	scheduler.Register(jobScheduler.NewClarificationExpirer(users, a.Log))
	a.Log.Info("clarification expirer job registered")

	return scheduler
}
