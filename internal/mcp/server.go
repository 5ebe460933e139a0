// Package mcp implements the Model Context Protocol surface: JSON-RPC 2.0
// requests over HTTP or stdio, dispatched to the emoticon tools.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/validation"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "kakao-emoticon-mcp"
	ServerTitle     = "KakaoTalk Emoticon MCP Server"
	ServerVersion   = "1.0.0"
)

// JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeToolFailed     = -32000
)

// maxLineSize bounds one stdio message; check_tool payloads carry base64 images.
const maxLineSize = 64 << 20

const instructions = `KakaoTalk emoticon production server.
Workflow: get_specs_tool -> before_preview_tool -> generate_tool -> get_task_status_tool (until completed) -> after_preview_tool -> check_tool.
Plan every emoticon description yourself; ask the user only for the character, mood and set type.
generate_tool runs in the background and returns a task_id and a status_url.`

// Service is what the tools call into.
type Service interface {
	Specs() *model.SpecsResponse
	Spec(raw string) (*model.SpecInfo, error)
	BeforePreview(ctx context.Context, req *model.BeforePreviewRequest) (*model.BeforePreviewResponse, error)
	Generate(ctx context.Context, req *model.GenerateRequest) (*model.GenerateResponse, error)
	TaskStatus(taskID string) (*model.GenerationTask, error)
	AfterPreview(ctx context.Context, req *model.AfterPreviewRequest) (*model.AfterPreviewResponse, error)
	Check(ctx context.Context, req *model.CheckRequest) (*model.CheckResult, error)
}

// Server handles MCP protocol messages.
type Server struct {
	service   Service
	validator *validator.Validate
}

// Request is an incoming JSON-RPC request. A missing ID marks a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the sender expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is an outgoing JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

var nullID = json.RawMessage("null")

func New(svc Service, v *validator.Validate) *Server {
	if v == nil {
		v = validation.New()
	}
	return &Server{service: svc, validator: v}
}

// HandleMessage processes one raw JSON-RPC message. It returns nil for
// notifications.
func (s *Server) HandleMessage(ctx context.Context, data []byte) *Response {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return errorResponse(nullID, CodeInvalidRequest, "Invalid Request", "batch requests are not supported")
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return errorResponse(nullID, CodeParseError, "Parse error", err.Error())
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		id := req.ID
		if len(id) == 0 {
			id = nullID
		}
		return errorResponse(id, CodeInvalidRequest, "Invalid Request", "jsonrpc must be \"2.0\" and method is required")
	}

	resp := s.handleRequest(ctx, &req)
	if req.IsNotification() {
		return nil
	}
	return resp
}

// handleRequest routes requests to the method handlers
func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "tools/list":
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{"tools": ToolDefinitions()},
		}
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), "")
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{"listChanged": false},
			},
			"serverInfo": map[string]interface{}{
				"name":    ServerName,
				"title":   ServerTitle,
				"version": ServerVersion,
			},
			"instructions": instructions,
		},
	}
}

// ServeStdio reads newline-delimited messages from in and writes responses
// to out until in is exhausted or ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		resp := s.HandleMessage(ctx, line)
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdin read error: %w", err)
	}

	logrus.Debug("stdio input closed")
	return nil
}

// Metadata is the discovery document served at /.well-known/mcp.
func Metadata(endpoint string) map[string]interface{} {
	tools := ToolDefinitions()
	summaries := make([]map[string]string, len(tools))
	for i, t := range tools {
		summaries[i] = map[string]string{"name": t.Name, "description": t.Description}
	}

	return map[string]interface{}{
		"version":         "1.0",
		"protocolVersion": ProtocolVersion,
		"serverInfo": map[string]interface{}{
			"name":    ServerName,
			"title":   ServerTitle,
			"version": ServerVersion,
		},
		"description": "Automates KakaoTalk emoticon production: planning previews, AI generation, chat previews, ZIP packaging and submission checks.",
		"transport": map[string]interface{}{
			"type":     "streamable-http",
			"endpoint": endpoint,
		},
		"capabilities": map[string]interface{}{
			"tools":     map[string]interface{}{"listChanged": false},
			"resources": map[string]interface{}{},
			"prompts":   map[string]interface{}{},
		},
		"tools": summaries,
	}
}

func errorResponse(id json.RawMessage, code int, message, data string) *Response {
	e := &Error{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}
