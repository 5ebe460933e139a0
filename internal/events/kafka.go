// Package events publishes task lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/config"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
)

// Event types
const (
	EventTaskProgress  = "task.progress"
	EventTaskCompleted = "task.completed"
	EventTaskFailed    = "task.failed"
)

const writeTimeout = 10 * time.Second

// TaskEvent is the message value written for every lifecycle change.
type TaskEvent struct {
	EventID         string             `json:"event_id"`
	Type            string             `json:"type"`
	TaskID          string             `json:"task_id"`
	EmoticonType    model.EmoticonType `json:"emoticon_type"`
	Status          model.TaskStatus   `json:"status"`
	CompletedCount  int                `json:"completed_count"`
	TotalCount      int                `json:"total_count"`
	ProgressPercent int                `json:"progress_percent"`
	CurrentItem     string             `json:"current_item,omitempty"`
	ErrorMessage    string             `json:"error_message,omitempty"`
	OccurredAt      time.Time          `json:"occurred_at"`
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher turns task observer callbacks into Kafka messages keyed by
// task id, so events for one task stay ordered within a partition.
type Publisher struct {
	writer MessageWriter
	topic  string
}

// NewKafkaPublisher creates an asynchronous publisher for the configured
// brokers. It returns nil when no brokers are configured.
func NewKafkaPublisher(cfg *config.KafkaConfig) *Publisher {
	if len(cfg.Brokers) == 0 {
		logrus.Info("Kafka not configured, task events disabled")
		return nil
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logrus.WithError(err).WithField("messages", len(messages)).Warn("failed to write task events to Kafka")
			}
		},
	}

	logrus.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("Kafka task event publisher configured")

	return NewPublisher(writer, cfg.Topic)
}

// NewPublisher wraps an existing writer.
func NewPublisher(writer MessageWriter, topic string) *Publisher {
	return &Publisher{writer: writer, topic: topic}
}

func (p *Publisher) TaskProgress(t model.GenerationTask) {
	p.publish(EventTaskProgress, t)
}

func (p *Publisher) TaskCompleted(t model.GenerationTask) {
	p.publish(EventTaskCompleted, t)
}

func (p *Publisher) TaskFailed(t model.GenerationTask) {
	p.publish(EventTaskFailed, t)
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) publish(eventType string, t model.GenerationTask) {
	event := TaskEvent{
		EventID:         uuid.New().String(),
		Type:            eventType,
		TaskID:          t.TaskID,
		EmoticonType:    t.EmoticonType,
		Status:          t.Status,
		CompletedCount:  t.CompletedCount,
		TotalCount:      t.TotalCount,
		ProgressPercent: t.ProgressPercent,
		CurrentItem:     t.CurrentItemDescription,
		ErrorMessage:    t.ErrorMessage,
		OccurredAt:      time.Now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("failed to marshal task event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(t.TaskID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"task_id": t.TaskID,
			"type":    eventType,
		}).Warn("failed to publish task event")
	}
}
