package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Upstream booking API (the gateway the engine talks to).
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	APIKey     string `mapstructure:"API_KEY"`

	// Widget passthrough options. The engine forwards these to the
	// presentation layer untouched.
	WidgetTheme    string `mapstructure:"WIDGET_THEME"`
	WidgetPosition string `mapstructure:"WIDGET_POSITION"`
	WelcomeMessage string `mapstructure:"WELCOME_MESSAGE"`
	EnableVoice    bool   `mapstructure:"ENABLE_VOICE"`

	// Conversation policy.
	SessionIdleTimeoutMin int  `mapstructure:"SESSION_IDLE_TIMEOUT_MIN"`
	BookingAbandonConfirm bool `mapstructure:"BOOKING_ABANDON_CONFIRM"`

	// Retry policy for gateway calls.
	GatewayMaxRetries  int `mapstructure:"GATEWAY_MAX_RETRIES"`
	GatewayBaseDelayMs int `mapstructure:"GATEWAY_BASE_DELAY_MS"`
	GatewayMaxDelayMs  int `mapstructure:"GATEWAY_MAX_DELAY_MS"`
	GatewayTimeoutSec  int `mapstructure:"GATEWAY_TIMEOUT_SEC"`

	// Redis configuration.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB int    `mapstructure:"REDIS_SESSION_DB"`
	RedisQueueDB   int    `mapstructure:"REDIS_QUEUE_DB"`

	// Mongo (booking history).
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Google services.
	GeminiAPIKey             string `mapstructure:"GEMINI_API_KEY"`
	GoogleServiceAccountFile string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_FILE"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("API_BASE_URL", "http://localhost:9090")
	viper.SetDefault("WIDGET_POSITION", "bottom-right")
	viper.SetDefault("WELCOME_MESSAGE", "Hi! How can I help you today?")
	viper.SetDefault("ENABLE_VOICE", false)
	viper.SetDefault("SESSION_IDLE_TIMEOUT_MIN", 30)
	viper.SetDefault("BOOKING_ABANDON_CONFIRM", true)
	viper.SetDefault("GATEWAY_MAX_RETRIES", 3)
	viper.SetDefault("GATEWAY_BASE_DELAY_MS", 250)
	viper.SetDefault("GATEWAY_MAX_DELAY_MS", 5000)
	viper.SetDefault("GATEWAY_TIMEOUT_SEC", 10)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_SESSION_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

// SessionIdleTimeout returns the idle timeout after which a session expires.
func SessionIdleTimeout() time.Duration {
	return time.Duration(AppConfig.SessionIdleTimeoutMin) * time.Minute
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
