package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/media"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/storage"
)

const (
	TaskTypeGenerate = "emoticon:generate"

	// DefaultTaskTimeout replaces asynq's 30 minute default, which a large
	// animated set can exceed.
	DefaultTaskTimeout = 24 * time.Hour
)

// Enqueuer is the subset of *asynq.Client used for dispatch.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Executor runs a job; *Orchestrator satisfies it.
type Executor interface {
	Execute(ctx context.Context, job Job)
	Fail(taskID string, err error)
	// Tracks reports whether taskID belongs to this process.
	Tracks(taskID string) bool
}

// generatePayload is the queued form of a Job. The character image is
// parked in the artifact store and the provider token never leaves the
// process.
type generatePayload struct {
	TaskID               string           `json:"taskId"`
	EmoticonType         string           `json:"emoticonType"`
	CharacterDescription string           `json:"characterDescription,omitempty"`
	CharacterArtifact    string           `json:"characterArtifact,omitempty"`
	Items                []model.ItemSpec `json:"items"`
}

// AsynqDispatcher queues jobs on Redis for the in-process worker server.
type AsynqDispatcher struct {
	client    Enqueuer
	artifacts storage.Store
	queue     string
	timeout   time.Duration
	tokens    sync.Map
}

// NewAsynqDispatcher bounds every queued task by timeout, or by
// DefaultTaskTimeout when timeout is not positive.
func NewAsynqDispatcher(client Enqueuer, artifacts storage.Store, queue string, timeout time.Duration) *AsynqDispatcher {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &AsynqDispatcher{client: client, artifacts: artifacts, queue: queue, timeout: timeout}
}

// Queue returns the queue name jobs are enqueued on.
func (d *AsynqDispatcher) Queue() string {
	return d.queue
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, job Job) error {
	payload := generatePayload{
		TaskID:               job.TaskID,
		EmoticonType:         string(job.Type),
		CharacterDescription: job.CharacterDescription,
		Items:                job.Items,
	}

	if len(job.CharacterImage) > 0 {
		err := d.artifacts.PutWithID(ctx, storage.KindCharacter, job.TaskID, job.CharacterImage, media.DetectMIME(job.CharacterImage))
		if err != nil {
			return fmt.Errorf("failed to park character image: %w", err)
		}
		payload.CharacterArtifact = job.TaskID
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	d.tokens.Store(job.TaskID, job.Token)

	task := asynq.NewTask(TaskTypeGenerate, data)
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(d.queue),
		asynq.TaskID(job.TaskID),
		asynq.MaxRetry(0),
		asynq.Timeout(d.timeout),
		asynq.Retention(time.Hour),
	)
	if err != nil {
		d.tokens.Delete(job.TaskID)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Handler returns the asynq handler that feeds queued jobs to exec.
func (d *AsynqDispatcher) Handler(exec Executor) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload generatePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
		}

		// A task recovered from Redis after a restart has no record here and
		// no token; running it would only produce results nobody can fetch.
		if !exec.Tracks(payload.TaskID) {
			d.tokens.Delete(payload.TaskID)
			if payload.CharacterArtifact != "" {
				_ = d.artifacts.Delete(ctx, storage.KindCharacter, payload.CharacterArtifact)
			}
			logrus.WithField("task_id", payload.TaskID).Warn("dropping queued task unknown to this process")
			return nil
		}

		job := Job{
			TaskID: payload.TaskID,
			Request: Request{
				Type:                 model.EmoticonType(payload.EmoticonType),
				CharacterDescription: payload.CharacterDescription,
				Items:                payload.Items,
			},
		}

		if token, ok := d.tokens.LoadAndDelete(payload.TaskID); ok {
			job.Token = token.(string)
		} else {
			logrus.WithField("task_id", payload.TaskID).Warn("no provider token held for queued task, falling back to server token")
		}

		if payload.CharacterArtifact != "" {
			artifact, err := d.artifacts.Get(ctx, storage.KindCharacter, payload.CharacterArtifact)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					err = errors.New("character image expired before the task started")
				}
				exec.Fail(payload.TaskID, fmt.Errorf("character reference: %w", err))
				return nil
			}
			job.CharacterImage = artifact.Data
			_ = d.artifacts.Delete(ctx, storage.KindCharacter, payload.CharacterArtifact)
		}

		exec.Execute(ctx, job)
		return nil
	}
}
