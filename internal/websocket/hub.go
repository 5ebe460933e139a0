package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
)

const (
	sendBuffer      = 64
	broadcastBuffer = 256
	pingInterval    = 30 * time.Second
)

// Conn is the part of *websocket.Conn the hub uses.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
}

// TaskLookup returns the current snapshot of a task.
type TaskLookup func(taskID string) (model.GenerationTask, bool)

// Client represents a WebSocket subscriber of one task
type Client struct {
	TaskID string
	conn   Conn
	send   chan []byte
	quit   chan struct{}
	once   sync.Once
}

func (c *Client) stop() {
	c.once.Do(func() { close(c.quit) })
}

// trySend queues data unless the client is gone or too slow.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// BroadcastMessage is a message for every subscriber of a task
type BroadcastMessage struct {
	TaskID  string
	Message []byte
}

// Hub fans task progress out to WebSocket subscribers. It implements the
// pipeline observer callbacks and never blocks the caller.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	lookup TaskLookup
	mu     sync.RWMutex
}

// NewHub creates a new Hub
func NewHub(lookup TaskLookup) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, broadcastBuffer),
		done:       make(chan struct{}),
		lookup:     lookup,
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					client.stop()
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.TaskID] == nil {
				h.clients[client.TaskID] = make(map[*Client]bool)
			}
			h.clients[client.TaskID][client] = true
			h.mu.Unlock()
			logrus.WithField("task_id", client.TaskID).Debug("websocket client registered")

		case client := <-h.unregister:
			h.remove(client)
			logrus.WithField("task_id", client.TaskID).Debug("websocket client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients[msg.TaskID] {
				if !client.trySend(msg.Message) {
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[client.TaskID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.clients, client.TaskID)
			}
		}
	}
	client.stop()
}

// Subscribers returns the number of clients watching a task.
func (h *Hub) Subscribers(taskID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[taskID])
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.stop()
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.stop()
	}
}

// TaskProgress sends a progress update to all task subscribers
func (h *Hub) TaskProgress(t model.GenerationTask) {
	h.publish(t.TaskID, model.WSProgressMessage{
		Type:           model.WSMessageTypeProgress,
		TaskID:         t.TaskID,
		Progress:       t.ProgressPercent,
		Status:         t.Status,
		CompletedCount: t.CompletedCount,
		TotalCount:     t.TotalCount,
		CurrentItem:    t.CurrentItemDescription,
	})
}

// TaskCompleted sends the final snapshot to all task subscribers
func (h *Hub) TaskCompleted(t model.GenerationTask) {
	h.publish(t.TaskID, model.WSTaskMessage{
		Type:   model.WSMessageTypeComplete,
		TaskID: t.TaskID,
		Task:   t,
	})
}

// TaskFailed sends an error message to all task subscribers
func (h *Hub) TaskFailed(t model.GenerationTask) {
	h.publish(t.TaskID, model.WSErrorMessage{
		Type:   model.WSMessageTypeError,
		TaskID: t.TaskID,
		Error: model.WSError{
			Code:    "GENERATION_FAILED",
			Message: t.ErrorMessage,
		},
	})
}

func (h *Hub) publish(taskID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("failed to marshal websocket message")
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{TaskID: taskID, Message: data}:
	default:
		logrus.WithField("task_id", taskID).Warn("websocket broadcast queue full, dropping message")
	}
}

// HandleConnection serves one subscriber until it disconnects. The current
// task snapshot is sent first; unknown tasks get an error and are closed.
func (h *Hub) HandleConnection(c Conn, taskID string) {
	snapshot, ok := h.lookup(taskID)
	if !ok {
		data, _ := json.Marshal(model.WSErrorMessage{
			Type:   model.WSMessageTypeError,
			TaskID: taskID,
			Error:  model.WSError{Code: "NOT_FOUND", Message: "task not found"},
		})
		_ = c.WriteMessage(websocket.TextMessage, data)
		_ = c.WriteMessage(websocket.CloseMessage, []byte{})
		return
	}

	client := &Client{
		TaskID: taskID,
		conn:   c,
		send:   make(chan []byte, sendBuffer),
		quit:   make(chan struct{}),
	}

	initial, _ := json.Marshal(model.WSTaskMessage{
		Type:   model.WSMessageTypeSnapshot,
		TaskID: taskID,
		Task:   snapshot,
	})
	client.send <- initial

	h.Register(client)
	defer h.Unregister(client)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(client)
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("task_id", taskID).Warn("websocket error")
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			client.trySend(pong)
		}
	}

	client.stop()
	<-writerDone
}

func (h *Hub) writeLoop(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-client.send:
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.quit:
			_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
