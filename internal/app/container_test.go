package app

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/config"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/pipeline"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/service"
)

func TestStart_WithoutQueue(t *testing.T) {
	ta := setupApp(t, "hf_env")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ta.container.Start(ctx)

	resp, err := ta.container.Service.Generate(ctx, &model.GenerateRequest{
		EmoticonType: "static",
		Emoticons:    []model.ItemSpec{{Description: "waving"}},
	})
	require.NoError(t, err)

	ta.container.Orchestrator.Wait()
	got, ok := ta.container.Tasks.Get(resp.TaskID)
	require.True(t, ok)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
}

// Queued tasks only complete when something consumes the queue, which
// every transport gets from Start, with or without the HTTP server.
func TestStart_ConsumesQueuedTasks(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			BaseURL:  "http://localhost:8000",
			LogLevel: "error",
		},
		Tasks: config.TasksConfig{
			MaxTasks:    100,
			Dispatcher:  "asynq",
			Queue:       fmt.Sprintf("emoticon-test-%d", time.Now().UnixNano()),
			Concurrency: 1,
			Timeout:     time.Minute,
		},
		Storage: config.StorageConfig{Backend: "memory"},
		Redis:   config.RedisConfig{Addr: addr, DB: 15},
	}

	ctx, cancel := context.WithCancel(context.Background())

	c, err := NewContainer(ctx, cfg, Options{
		Synthesizers: func(string) pipeline.Synthesizer { return fakeSynth{} },
		Transcoder:   fakeTranscoder{},
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	t.Cleanup(cancel)
	require.NotNil(t, c.Dispatcher)

	c.Start(ctx)

	resp, err := c.Service.Generate(service.WithToken(ctx, "hf_test"), &model.GenerateRequest{
		EmoticonType: "static",
		Emoticons:    []model.ItemSpec{{Description: "waving"}},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok := c.Tasks.Get(resp.TaskID)
		return ok && got.Status == model.TaskStatusCompleted
	}, 15*time.Second, 50*time.Millisecond)
}
