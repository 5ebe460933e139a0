package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server      ServerConfig
	HuggingFace HuggingFaceConfig
	Media       MediaConfig
	Tasks       TasksConfig
	Storage     StorageConfig
	Redis       RedisConfig
	R2          R2Config
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
}

type ServerConfig struct {
	Port      string
	Host      string
	BaseURL   string
	Env       string
	LogLevel  string
	LogFormat string
	BodyLimit int // megabytes
}

type HuggingFaceConfig struct {
	APIKey            string
	BaseURL           string
	TextToImageModel  string
	ImageEditModel    string
	ImageToVideoModel string
	Timeout           int // seconds
}

type MediaConfig struct {
	FFmpegPath      string
	FPS             int
	DurationSeconds int
	DownloadTimeout int // seconds
}

type TasksConfig struct {
	MaxTasks    int
	Dispatcher  string // goroutine | asynq
	Queue       string
	Concurrency int
	Timeout     time.Duration // upper bound for one queued task
}

type StorageConfig struct {
	Backend    string // memory | redis | r2
	ImageTTL   time.Duration
	PreviewTTL time.Duration
	ZipTTL     time.Duration
}

// TTL returns the retention configured for an artifact kind name.
func (s StorageConfig) TTL(kind string) time.Duration {
	switch kind {
	case "zip":
		return s.ZipTTL
	case "preview", "status":
		return s.PreviewTTL
	default:
		return s.ImageTTL
	}
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// Enabled reports whether enough credentials are present to build a client.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != ""
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RateLimitConfig struct {
	GeneratePerHour int
	MCPPerMin       int
	CheckPerMin     int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("HF_TOKEN")
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "PORT", "SERVER_PORT")
	_ = v.BindEnv("server.host", "HOST")
	_ = v.BindEnv("server.base_url", "BASE_URL")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.log_format", "LOG_FORMAT")
	_ = v.BindEnv("server.body_limit_mb", "BODY_LIMIT_MB")
	_ = v.BindEnv("huggingface.api_key", "HF_TOKEN")
	_ = v.BindEnv("huggingface.base_url", "HF_BASE_URL")
	_ = v.BindEnv("huggingface.text_to_image_model", "HF_TEXT_TO_IMAGE_MODEL")
	_ = v.BindEnv("huggingface.image_edit_model", "HF_IMAGE_EDIT_MODEL")
	_ = v.BindEnv("huggingface.image_to_video_model", "HF_IMAGE_TO_VIDEO_MODEL")
	_ = v.BindEnv("huggingface.timeout", "HF_TIMEOUT")
	_ = v.BindEnv("media.ffmpeg_path", "FFMPEG_PATH")
	_ = v.BindEnv("media.fps", "ANIMATION_FPS")
	_ = v.BindEnv("media.duration_seconds", "ANIMATION_DURATION")
	_ = v.BindEnv("media.download_timeout", "DOWNLOAD_TIMEOUT")
	_ = v.BindEnv("tasks.max_tasks", "MAX_TASKS")
	_ = v.BindEnv("tasks.dispatcher", "TASK_DISPATCHER")
	_ = v.BindEnv("tasks.queue", "TASK_QUEUE")
	_ = v.BindEnv("tasks.concurrency", "TASK_CONCURRENCY")
	_ = v.BindEnv("tasks.timeout", "TASK_TIMEOUT")
	_ = v.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = v.BindEnv("storage.image_ttl", "STORAGE_IMAGE_TTL")
	_ = v.BindEnv("storage.preview_ttl", "STORAGE_PREVIEW_TTL")
	_ = v.BindEnv("storage.zip_ttl", "STORAGE_ZIP_TTL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	_ = v.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = v.BindEnv("ratelimit.mcp_per_min", "RATELIMIT_MCP_PER_MIN")
	_ = v.BindEnv("ratelimit.check_per_min", "RATELIMIT_CHECK_PER_MIN")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.body_limit_mb", 50)

	// Hugging Face defaults
	v.SetDefault("huggingface.base_url", "https://router.huggingface.co/hf-inference/models")
	v.SetDefault("huggingface.text_to_image_model", "black-forest-labs/FLUX.1-schnell")
	v.SetDefault("huggingface.image_edit_model", "Qwen/Qwen-Image-Edit")
	v.SetDefault("huggingface.image_to_video_model", "Wan-AI/Wan2.1-I2V-14B-480P")
	v.SetDefault("huggingface.timeout", 300)

	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.fps", 15)
	v.SetDefault("media.duration_seconds", 2)
	v.SetDefault("media.download_timeout", 30)

	v.SetDefault("tasks.max_tasks", 100)
	v.SetDefault("tasks.dispatcher", "goroutine")
	v.SetDefault("tasks.queue", "emoticons")
	v.SetDefault("tasks.concurrency", 2)
	v.SetDefault("tasks.timeout", "24h")

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.image_ttl", "24h")
	v.SetDefault("storage.preview_ttl", "24h")
	v.SetDefault("storage.zip_ttl", "6h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "emoticon-task-events")

	v.SetDefault("ratelimit.generate_per_hour", 10)
	v.SetDefault("ratelimit.mcp_per_min", 120)
	v.SetDefault("ratelimit.check_per_min", 60)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Host:      v.GetString("server.host"),
			BaseURL:   strings.TrimRight(v.GetString("server.base_url"), "/"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			LogFormat: v.GetString("server.log_format"),
			BodyLimit: v.GetInt("server.body_limit_mb"),
		},
		HuggingFace: HuggingFaceConfig{
			APIKey:            v.GetString("huggingface.api_key"),
			BaseURL:           strings.TrimRight(v.GetString("huggingface.base_url"), "/"),
			TextToImageModel:  v.GetString("huggingface.text_to_image_model"),
			ImageEditModel:    v.GetString("huggingface.image_edit_model"),
			ImageToVideoModel: v.GetString("huggingface.image_to_video_model"),
			Timeout:           v.GetInt("huggingface.timeout"),
		},
		Media: MediaConfig{
			FFmpegPath:      v.GetString("media.ffmpeg_path"),
			FPS:             v.GetInt("media.fps"),
			DurationSeconds: v.GetInt("media.duration_seconds"),
			DownloadTimeout: v.GetInt("media.download_timeout"),
		},
		Tasks: TasksConfig{
			MaxTasks:    v.GetInt("tasks.max_tasks"),
			Dispatcher:  strings.ToLower(v.GetString("tasks.dispatcher")),
			Queue:       v.GetString("tasks.queue"),
			Concurrency: v.GetInt("tasks.concurrency"),
			Timeout:     v.GetDuration("tasks.timeout"),
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(v.GetString("storage.backend")),
			ImageTTL:   v.GetDuration("storage.image_ttl"),
			PreviewTTL: v.GetDuration("storage.preview_ttl"),
			ZipTTL:     v.GetDuration("storage.zip_ttl"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: v.GetInt("ratelimit.generate_per_hour"),
			MCPPerMin:       v.GetInt("ratelimit.mcp_per_min"),
			CheckPerMin:     v.GetInt("ratelimit.check_per_min"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:" + cfg.Server.Port
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
