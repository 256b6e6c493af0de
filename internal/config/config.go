package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env           string
	Port          string
	DatabaseURL   string
	RedisURL      string
	SessionSecret string

	// AdminToken guards the /admin routes (x-admin-token header).
	AdminToken string

	StripeSecretKey     string
	StripeWebhookSecret string
	LemonSigningSecret  string
	FondyMerchantID     string
	FondySecret         string
	MonoToken           string

	// PublicBaseURL hosts the thanks/cancel pages the providers redirect to.
	PublicBaseURL string
	// BaseURL is this service's own origin, used for provider server callbacks.
	BaseURL string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	return &Config{
		Env:                 env,
		Port:                port,
		DatabaseURL:         viper.GetString("DATABASE_URL"),
		RedisURL:            viper.GetString("REDIS_URL"),
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		AdminToken:          viper.GetString("ADMIN_TOKEN"),
		StripeSecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
		LemonSigningSecret:  viper.GetString("LEMON_SIGNING_SECRET"),
		FondyMerchantID:     viper.GetString("FONDY_MERCHANT_ID"),
		FondySecret:         viper.GetString("FONDY_SECRET"),
		MonoToken:           viper.GetString("MONO_TOKEN"),
		PublicBaseURL:       baseURL(viper.GetString("PUBLIC_BASE"), "https://cortexfinapp.com"),
		BaseURL:             baseURL(viper.GetString("BASE_URL"), ""),
	}, nil
}

func baseURL(s, fallback string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/")
	if s == "" {
		return fallback
	}
	return s
}
