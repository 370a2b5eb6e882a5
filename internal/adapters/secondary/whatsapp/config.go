package whatsapp

type Config struct {
	BaseURL       string `envconfig:"BASE_URL" default:"https://graph.facebook.com"`
	ApiVersion    string `envconfig:"VERSION" default:"v19.0"`
	PhoneNumberID string `envconfig:"PHONE_NUMBER_ID"`
	AccessToken   string `envconfig:"ACCESS_TOKEN"`
	// VerifyToken is matched against hub.verify_token on webhook verification.
	VerifyToken string `envconfig:"VERIFY_TOKEN"`
}
