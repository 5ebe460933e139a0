package model

// WebSocket message types
const (
	WSMessageTypeSnapshot = "snapshot"
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a progress update
type WSProgressMessage struct {
	Type           string     `json:"type"`
	TaskID         string     `json:"taskId"`
	Progress       int        `json:"progress"`
	Status         TaskStatus `json:"status"`
	CompletedCount int        `json:"completedCount"`
	TotalCount     int        `json:"totalCount"`
	CurrentItem    string     `json:"currentItem,omitempty"`
}

// WSTaskMessage carries a full task snapshot (initial state or completion)
type WSTaskMessage struct {
	Type   string         `json:"type"`
	TaskID string         `json:"taskId"`
	Task   GenerationTask `json:"task"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type   string  `json:"type"`
	TaskID string  `json:"taskId"`
	Error  WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
