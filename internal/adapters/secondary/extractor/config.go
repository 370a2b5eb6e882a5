package extractor

import "time"

type Config struct {
	BaseURL string `envconfig:"BASE_URL"`
	ApiKey  string `envconfig:"API_KEY"`
	// Timeout bounds one extraction call so a slow model cannot starve the
	// worker pool.
	TimeoutSeconds int    `envconfig:"TIMEOUT" default:"30"`
	SkipSSL        string `envconfig:"SKIP_SSL"` // some platforms require strings instead of bool
}

func (c *Config) ShouldSkipSSL() bool {
	return c.SkipSSL == "true" || c.SkipSSL == "1" || c.SkipSSL == "True"
}

func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
