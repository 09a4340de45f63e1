package environments

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kommo     KommoConfig
	Message   MessageConfig
	Scheduler SchedulerConfig
	Alert     AlertConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the persistence adapter for the message blob.
// Backend is one of "mysql", "valkey" or "memory".
type StoreConfig struct {
	Backend string
	Key     string
	Timeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KommoConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	RetryCount  int
	RatePerSec  float64
	Fields      KommoFieldIDs
}

type KommoFieldIDs struct {
	Text     int64
	DateTime int64
	Status   int64
}

// Enabled reports whether field sync can talk to the host at all.
func (k KommoConfig) Enabled() bool {
	return k.BaseURL != "" && k.AccessToken != ""
}

type MessageConfig struct {
	MaxContentLength int
}

type SchedulerConfig struct {
	Interval  time.Duration
	AutoStart bool
}

type AlertConfig struct {
	WebhookURL     string
	IterationCount int
	Timeout        time.Duration
}

type AuthConfig struct {
	MessagesAPIKey   string
	SchedulerAPIKey  string
	AutomationAPIKey string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: GetEnv("SERVER_PORT", "8080"),
		},
		Log: LogConfig{
			Level:  GetEnv("LOG_LEVEL", "info"),
			Format: GetEnv("LOG_FORMAT", "console"),
		},
		Store: StoreConfig{
			Backend: GetEnv("STORE_BACKEND", "mysql"),
			Key:     GetEnv("STORE_KEY", "mensagens-futuras_scheduled_messages"),
			Timeout: time.Duration(GetEnvAsInt("STORE_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "3306"),
			User:     GetEnv("DB_USER", "mensagens"),
			Password: GetEnv("DB_PASSWORD", "mensagens123"),
			DBName:   GetEnv("DB_NAME", "mensagens_futuras"),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvAsInt("REDIS_DB", 0),
		},
		Kommo: KommoConfig{
			BaseURL:     GetEnv("KOMMO_BASE_URL", ""),
			AccessToken: GetEnv("KOMMO_ACCESS_TOKEN", ""),
			Timeout:     time.Duration(GetEnvAsInt("KOMMO_TIMEOUT_SECONDS", 10)) * time.Second,
			RetryCount:  GetEnvAsInt("KOMMO_RETRY_COUNT", 2),
			RatePerSec:  GetEnvAsFloat("KOMMO_RATE_PER_SECOND", 7),
			Fields: KommoFieldIDs{
				Text:     GetEnvAsInt64("KOMMO_FIELD_TEXT_ID", 0),
				DateTime: GetEnvAsInt64("KOMMO_FIELD_DATETIME_ID", 0),
				Status:   GetEnvAsInt64("KOMMO_FIELD_STATUS_ID", 0),
			},
		},
		Message: MessageConfig{
			MaxContentLength: GetEnvAsInt("MESSAGE_MAX_CONTENT_LENGTH", 1000),
		},
		Scheduler: SchedulerConfig{
			Interval:  time.Duration(GetEnvAsInt("SCHEDULER_INTERVAL_SECONDS", 60)) * time.Second,
			AutoStart: GetEnvAsBool("AUTO_START_SCHEDULER", true),
		},
		Alert: AlertConfig{
			WebhookURL:     GetEnv("ALERT_WEBHOOK_URL", ""),
			IterationCount: GetEnvAsInt("ALERT_ITERATION_COUNT", 0),
			Timeout:        time.Duration(GetEnvAsInt("ALERT_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Auth: AuthConfig{
			MessagesAPIKey:   GetEnv("MESSAGES_API_KEY", ""),
			SchedulerAPIKey:  GetEnv("SCHEDULER_API_KEY", ""),
			AutomationAPIKey: GetEnv("AUTOMATION_API_KEY", ""),
		},
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
