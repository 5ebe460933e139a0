// Package app wires configuration into the running server: storage,
// generation pipeline, observers, MCP surface and HTTP routes.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/checker"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/client"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/config"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/events"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/links"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/logging"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/mcp"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/media"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/pipeline"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/preview"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/service"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/spec"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/storage"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/task"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/validation"
	ws "github.com/emoticonlab/kakao-emoticon-mcp/internal/websocket"
)

const redisPingTimeout = 2 * time.Second

// Container holds every long-lived component of one server process.
type Container struct {
	Config       *config.Config
	Registry     *spec.Registry
	Tasks        *task.Store
	Artifacts    storage.Store
	Links        links.Builder
	Orchestrator *pipeline.Orchestrator
	Previews     *preview.Generator
	Service      *service.EmoticonService
	MCP          *mcp.Server
	Hub          *ws.Hub
	Validator    *validator.Validate

	// Optional backends; nil when not configured.
	Redis      *redis.Client
	Events     *events.Publisher
	Dispatcher *pipeline.AsynqDispatcher

	asynqClient *asynq.Client
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	Synthesizers pipeline.SynthesizerFactory
	Transcoder   pipeline.Transcoder
	Artifacts    storage.Store
	SkipRedis    bool
}

// NewContainer builds the component graph. Background work started by the
// orchestrator runs under ctx.
func NewContainer(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	c := &Container{
		Config:    cfg,
		Registry:  spec.NewRegistry(),
		Tasks:     task.NewStore(cfg.Tasks.MaxTasks),
		Links:     links.NewBuilder(cfg.Server.BaseURL),
		Validator: validation.New(),
	}

	if !opts.SkipRedis && needsRedis(cfg) {
		c.Redis = connectRedis(ctx, &cfg.Redis)
	}

	artifacts := opts.Artifacts
	if artifacts == nil {
		var err error
		artifacts, err = c.newArtifactStore()
		if err != nil {
			c.Close()
			return nil, err
		}
	}
	c.Artifacts = artifacts

	synthesizers := opts.Synthesizers
	if synthesizers == nil {
		hf := cfg.HuggingFace
		synthesizers = func(token string) pipeline.Synthesizer {
			if token == "" {
				token = hf.APIKey
			}
			return client.NewHuggingFaceClient(&hf, token)
		}
	}
	transcoder := opts.Transcoder
	if transcoder == nil {
		transcoder = media.NewTranscoder(&cfg.Media)
	}

	c.Orchestrator = pipeline.New(ctx, pipeline.Deps{
		Registry:     c.Registry,
		Store:        c.Tasks,
		Synthesizers: synthesizers,
		Transcoder:   transcoder,
		Artifacts:    c.Artifacts,
		Links:        c.Links,
		FPS:          cfg.Media.FPS,
	})

	c.Hub = ws.NewHub(c.Tasks.Get)
	c.Orchestrator.AddObserver(c.Hub)

	if publisher := events.NewKafkaPublisher(&cfg.Kafka); publisher != nil {
		c.Events = publisher
		c.Orchestrator.AddObserver(publisher)
	}

	if cfg.Tasks.Dispatcher == "asynq" {
		if c.Redis == nil {
			c.Close()
			return nil, fmt.Errorf("task dispatcher %q requires Redis at %s", cfg.Tasks.Dispatcher, cfg.Redis.Addr)
		}
		c.asynqClient = asynq.NewClient(redisOpt(&cfg.Redis))
		c.Dispatcher = pipeline.NewAsynqDispatcher(c.asynqClient, c.Artifacts, cfg.Tasks.Queue, cfg.Tasks.Timeout)
		c.Orchestrator.SetDispatcher(c.Dispatcher)
		logrus.WithField("queue", cfg.Tasks.Queue).Info("generation tasks dispatched through asynq")
	}

	previews, err := preview.NewGenerator(c.Artifacts, c.Links, time.Duration(cfg.Media.DownloadTimeout)*time.Second)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load preview templates: %w", err)
	}
	c.Previews = previews

	c.Service = service.NewEmoticonService(
		c.Registry,
		checker.New(c.Registry, media.ConfigDecoder{}),
		c.Tasks,
		c.Orchestrator,
		c.Previews,
		c.Links,
		cfg.HuggingFace.APIKey,
	)
	c.MCP = mcp.New(c.Service, c.Validator)

	return c, nil
}

func (c *Container) newArtifactStore() (storage.Store, error) {
	cfg := c.Config
	ttl := func(kind storage.Kind) time.Duration { return cfg.Storage.TTL(string(kind)) }

	switch cfg.Storage.Backend {
	case "redis":
		if c.Redis == nil {
			return nil, fmt.Errorf("storage backend redis requires Redis at %s", cfg.Redis.Addr)
		}
		logrus.Info("artifacts stored in Redis")
		return storage.NewRedisStore(c.Redis, ttl), nil
	case "r2":
		if !cfg.R2.Enabled() {
			return nil, fmt.Errorf("storage backend r2 requires R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME")
		}
		store, err := storage.NewR2Store(&cfg.R2)
		if err != nil {
			return nil, fmt.Errorf("failed to create R2 store: %w", err)
		}
		logrus.WithField("bucket", cfg.R2.BucketName).Info("artifacts stored in R2")
		return store, nil
	case "", "memory":
		return storage.NewMemoryStore(ttl), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Services reports which optional backends are live, for /health.
func (c *Container) Services() map[string]bool {
	return map[string]bool{
		"huggingface": c.Config.HuggingFace.APIKey != "",
		"redis":       c.Redis != nil,
		"r2":          c.Config.Storage.Backend == "r2",
		"kafka":       c.Events != nil,
		"queue":       c.Dispatcher != nil,
	}
}

// Start runs the background loops every transport needs: the WebSocket hub
// and, when tasks are queued, the asynq worker. Both stop with ctx.
func (c *Container) Start(ctx context.Context) {
	go c.Hub.Run(ctx)
	go func() {
		if err := c.RunWorker(ctx); err != nil {
			logrus.WithError(err).Error("asynq worker stopped")
		}
	}()
}

// RunWorker consumes queued generation tasks until ctx is cancelled. It
// returns immediately when tasks run on goroutines.
func (c *Container) RunWorker(ctx context.Context) error {
	if c.Dispatcher == nil {
		return nil
	}

	concurrency := c.Config.Tasks.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	srv := asynq.NewServer(
		redisOpt(&c.Config.Redis),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				c.Dispatcher.Queue(): 1,
			},
			Logger:   logrus.StandardLogger(),
			LogLevel: logging.AsynqLevel(c.Config.Server.LogLevel),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(pipeline.TaskTypeGenerate, c.Dispatcher.Handler(c.Orchestrator))

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("asynq worker: %w", err)
	}

	<-ctx.Done()
	srv.Shutdown()
	return nil
}

// Close releases the optional backends.
func (c *Container) Close() {
	if c.asynqClient != nil {
		if err := c.asynqClient.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close asynq client")
		}
	}
	if c.Events != nil {
		if err := c.Events.Close(); err != nil {
			logrus.WithError(err).Warn("failed to flush task events")
		}
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

func needsRedis(cfg *config.Config) bool {
	if cfg.Storage.Backend == "redis" || cfg.Tasks.Dispatcher == "asynq" {
		return true
	}
	rl := cfg.RateLimit
	return rl.GeneratePerHour > 0 || rl.MCPPerMin > 0 || rl.CheckPerMin > 0
}

// connectRedis returns nil when the server does not answer.
func connectRedis(ctx context.Context, cfg *config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logrus.WithError(err).WithField("addr", cfg.Addr).Warn("Redis not available, rate limiting disabled")
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
