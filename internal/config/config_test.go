package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	assert.Equal(t, 100, cfg.Tasks.MaxTasks)
	assert.Equal(t, "goroutine", cfg.Tasks.Dispatcher)
	assert.Equal(t, 24*time.Hour, cfg.Tasks.Timeout)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 15, cfg.Media.FPS)
	assert.Equal(t, 2, cfg.Media.DurationSeconds)
	assert.Equal(t, 24*time.Hour, cfg.Storage.TTL("image"))
	assert.Equal(t, 6*time.Hour, cfg.Storage.TTL("zip"))
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.R2.Enabled())
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("BASE_URL", "https://emoticons.example.com/")
	t.Setenv("MAX_TASKS", "12")
	t.Setenv("TASK_DISPATCHER", "ASYNQ")
	t.Setenv("TASK_TIMEOUT", "90m")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("HF_TOKEN", "hf_env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://emoticons.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 12, cfg.Tasks.MaxTasks)
	assert.Equal(t, "asynq", cfg.Tasks.Dispatcher)
	assert.Equal(t, 90*time.Minute, cfg.Tasks.Timeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "hf_env", cfg.HuggingFace.APIKey)
}

func TestLoad_SecretFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "hf_token")
	require.NoError(t, os.WriteFile(path, []byte("hf_from_file\n"), 0o600))

	// Start with HF_TOKEN unset so the _FILE variant is read.
	t.Setenv("HF_TOKEN", "")
	require.NoError(t, os.Unsetenv("HF_TOKEN"))
	t.Setenv("HF_TOKEN_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "hf_from_file", cfg.HuggingFace.APIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yaml := []byte("tasks:\n  max_tasks: 7\nstorage:\n  backend: redis\n  zip_ttl: 30m\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Tasks.MaxTasks)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Storage.ZipTTL)
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
