package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	Kafka     KafkaConfig
	Push      PushConfig
	Upload    UploadConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

var (
	ConfigInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxOpen  int
	MaxIdle  int
}

// DSN builds the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBName)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}

type RedisConfig struct {
	URI          string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PresenceTTL  time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Enabled reports whether a broker list was configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type PushConfig struct {
	ExpoURL     string
	AccessToken string
	Timeout     time.Duration
}

type UploadConfig struct {
	MaxBytes int64
}

type SchedulerConfig struct {
	Enabled           bool
	ReminderSpec      string
	ReaperSpec        string
	PlaceholderMaxAge time.Duration
	ReminderBatch     int
	Workers           int
	QueueSize         int
}

type LogConfig struct {
	Level string
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func LoadConfig() (*Config, error) {
	var loadErr error
	once.Do(func() {
		// .env is optional; real environment variables take precedence
		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file loaded", "error", err)
		}

		viper.SetDefault("APP_ENV", "development")
		viper.SetDefault("CHAT_PORT", "8080")
		viper.SetDefault("CHAT_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("CHAT_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("CHAT_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("CHAT_RATE_LIMIT", 200)
		viper.SetDefault("CHAT_RATE_WINDOW", time.Minute)
		viper.SetDefault("ALLOWED_ORIGINS", "")
		viper.SetDefault("DB_DRIVER", "postgres")
		viper.SetDefault("POSTGRES_USER", "postgres")
		viper.SetDefault("POSTGRES_PASSWORD", "password")
		viper.SetDefault("POSTGRES_HOST", "localhost")
		viper.SetDefault("POSTGRES_PORT", "5432")
		viper.SetDefault("POSTGRES_DB", "marketplace")
		viper.SetDefault("POSTGRES_SSLMODE", "disable")
		viper.SetDefault("DB_MAX_OPEN_CONNS", 50)
		viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
		viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
		viper.SetDefault("REDIS_MAX_RETRIES", 3)
		viper.SetDefault("REDIS_POOL_SIZE", 100)
		viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
		viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
		viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
		viper.SetDefault("PRESENCE_TTL", 2*time.Minute)
		viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
		viper.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
		viper.SetDefault("MINIO_SECRET_KEY", "minioadmin")
		viper.SetDefault("MINIO_BUCKET", "chat-attachments")
		viper.SetDefault("MINIO_USE_SSL", false)
		viper.SetDefault("KAFKA_BROKERS", "")
		viper.SetDefault("KAFKA_TOPIC", "chat.message.events")
		viper.SetDefault("KAFKA_CLIENT_ID", "marketplace-chat")
		viper.SetDefault("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send")
		viper.SetDefault("EXPO_ACCESS_TOKEN", "")
		viper.SetDefault("PUSH_TIMEOUT", 10*time.Second)
		viper.SetDefault("UPLOAD_MAX_BYTES", int64(50<<20))
		viper.SetDefault("SCHEDULER_ENABLED", true)
		viper.SetDefault("REMINDER_CRON", "*/15 * * * *")
		viper.SetDefault("REAPER_CRON", "@hourly")
		viper.SetDefault("PLACEHOLDER_MAX_AGE", 24*time.Hour)
		viper.SetDefault("REMINDER_BATCH", 500)
		viper.SetDefault("TASK_WORKERS", 8)
		viper.SetDefault("TASK_QUEUE_SIZE", 1024)
		viper.SetDefault("LOG_LEVEL", "info")
		viper.AutomaticEnv()

		ConfigInstance = &Config{
			Env: viper.GetString("APP_ENV"),
			Server: ServerConfig{
				Host:           viper.GetString("CHAT_HOST"),
				Port:           viper.GetString("CHAT_PORT"),
				ReadTimeout:    viper.GetDuration("CHAT_READ_TIMEOUT"),
				WriteTimeout:   viper.GetDuration("CHAT_WRITE_TIMEOUT"),
				IdleTimeout:    viper.GetDuration("CHAT_IDLE_TIMEOUT"),
				AllowedOrigins: splitList(viper.GetString("ALLOWED_ORIGINS")),
				RateLimit:      viper.GetInt("CHAT_RATE_LIMIT"),
				RateWindow:     viper.GetDuration("CHAT_RATE_WINDOW"),
			},
			Database: DatabaseConfig{
				Driver:   viper.GetString("DB_DRIVER"),
				Host:     viper.GetString("POSTGRES_HOST"),
				Port:     viper.GetString("POSTGRES_PORT"),
				User:     viper.GetString("POSTGRES_USER"),
				Password: viper.GetString("POSTGRES_PASSWORD"),
				DBName:   viper.GetString("POSTGRES_DB"),
				SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
				MaxOpen:  viper.GetInt("DB_MAX_OPEN_CONNS"),
				MaxIdle:  viper.GetInt("DB_MAX_IDLE_CONNS"),
			},
			Redis: RedisConfig{
				URI:          viper.GetString("REDIS_URL"),
				MaxRetries:   viper.GetInt("REDIS_MAX_RETRIES"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
				MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
				PresenceTTL:  viper.GetDuration("PRESENCE_TTL"),
			},
			MinIO: MinIOConfig{
				Endpoint:  viper.GetString("MINIO_ENDPOINT"),
				AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
				SecretKey: viper.GetString("MINIO_SECRET_KEY"),
				Bucket:    viper.GetString("MINIO_BUCKET"),
				UseSSL:    viper.GetBool("MINIO_USE_SSL"),
				PublicURL: viper.GetString("MINIO_PUBLIC_URL"),
			},
			Kafka: KafkaConfig{
				Brokers:  splitList(viper.GetString("KAFKA_BROKERS")),
				Topic:    viper.GetString("KAFKA_TOPIC"),
				ClientID: viper.GetString("KAFKA_CLIENT_ID"),
			},
			Push: PushConfig{
				ExpoURL:     viper.GetString("EXPO_PUSH_URL"),
				AccessToken: viper.GetString("EXPO_ACCESS_TOKEN"),
				Timeout:     viper.GetDuration("PUSH_TIMEOUT"),
			},
			Upload: UploadConfig{
				MaxBytes: viper.GetInt64("UPLOAD_MAX_BYTES"),
			},
			Scheduler: SchedulerConfig{
				Enabled:           viper.GetBool("SCHEDULER_ENABLED"),
				ReminderSpec:      viper.GetString("REMINDER_CRON"),
				ReaperSpec:        viper.GetString("REAPER_CRON"),
				PlaceholderMaxAge: viper.GetDuration("PLACEHOLDER_MAX_AGE"),
				ReminderBatch:     viper.GetInt("REMINDER_BATCH"),
				Workers:           viper.GetInt("TASK_WORKERS"),
				QueueSize:         viper.GetInt("TASK_QUEUE_SIZE"),
			},
			Log: LogConfig{
				Level: viper.GetString("LOG_LEVEL"),
			},
		}

		switch ConfigInstance.Database.Driver {
		case "postgres", "mysql":
		default:
			loadErr = fmt.Errorf("unsupported DB_DRIVER %q", ConfigInstance.Database.Driver)
		}
	})

	return ConfigInstance, loadErr
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
