package telegram

type Config struct {
	BotToken    string `envconfig:"BOT_TOKEN"`
	BotUsername string `envconfig:"BOT_USERNAME"`
	WebhookURL  string `envconfig:"WEBHOOK_URL"`
	// SecretToken is echoed back by Telegram in the webhook header.
	SecretToken string `envconfig:"SECRET_TOKEN"`
}

func (c *Config) IsWebhookEnabled() bool {
	return c != nil && c.WebhookURL != ""
}
