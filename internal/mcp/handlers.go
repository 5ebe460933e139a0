package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/spec"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/validation"
)

// ToolCallParams represents the parameters for a tools/call request.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// invalidArgsError marks argument problems, reported as -32602.
type invalidArgsError struct {
	message string
	details interface{}
}

func (e *invalidArgsError) Error() string {
	return e.message
}

// handleToolsCall executes a tool and wraps its result in MCP content:
//
//	{"content": [{"type": "text", "text": "<JSON result>"}]}
func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	log := logrus.WithField("tool", params.Name)

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		var unknown *spec.UnknownTypeError
		if errors.As(err, &unknown) {
			return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
		}
		var argsErr *invalidArgsError
		if errors.As(err, &argsErr) {
			log.WithError(err).Debug("tool call rejected")
			return &Response{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error: &Error{
					Code:    CodeInvalidParams,
					Message: "Invalid params",
					Data:    toolErrorData(argsErr.message, argsErr.details),
				},
			}
		}
		log.WithError(err).Warn("tool execution failed")
		return errorResponse(req.ID, CodeToolFailed, "Tool execution failed", err.Error())
	}

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case ToolGetSpecs:
		return s.handleGetSpecs(args)
	case ToolBeforePreview:
		return s.handleBeforePreview(ctx, args)
	case ToolGenerate:
		return s.handleGenerate(ctx, args)
	case ToolTaskStatus:
		return s.handleTaskStatus(args)
	case ToolAfterPreview:
		return s.handleAfterPreview(ctx, args)
	case ToolCheck:
		return s.handleCheck(ctx, args)
	default:
		return nil, &invalidArgsError{message: fmt.Sprintf("unknown tool: %s", name)}
	}
}

// bind decodes arguments into dst and validates them.
func (s *Server) bind(args json.RawMessage, dst interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return &invalidArgsError{message: "invalid arguments: " + err.Error()}
	}
	if err := s.validator.Struct(dst); err != nil {
		return &invalidArgsError{message: "validation failed", details: validation.Details(err)}
	}
	return nil
}

type getSpecsArgs struct {
	EmoticonType string `json:"emoticon_type,omitempty"`
}

func (s *Server) handleGetSpecs(args json.RawMessage) (interface{}, error) {
	var a getSpecsArgs
	if err := s.bind(args, &a); err != nil {
		return nil, err
	}
	if a.EmoticonType == "" {
		return s.service.Specs(), nil
	}
	return s.service.Spec(a.EmoticonType)
}

func (s *Server) handleBeforePreview(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a model.BeforePreviewRequest
	if err := s.bind(args, &a); err != nil {
		return nil, err
	}
	return s.service.BeforePreview(ctx, &a)
}

func (s *Server) handleGenerate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a model.GenerateRequest
	if err := s.bind(args, &a); err != nil {
		return nil, err
	}
	return s.service.Generate(ctx, &a)
}

func (s *Server) handleTaskStatus(args json.RawMessage) (interface{}, error) {
	var a model.TaskStatusRequest
	if err := s.bind(args, &a); err != nil {
		return nil, err
	}
	return s.service.TaskStatus(a.TaskID)
}

func (s *Server) handleAfterPreview(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a model.AfterPreviewRequest
	if err := s.bind(args, &a); err != nil {
		return nil, err
	}
	return s.service.AfterPreview(ctx, &a)
}

func (s *Server) handleCheck(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a model.CheckRequest
	if err := s.bind(args, &a); err != nil {
		return nil, err
	}
	return s.service.Check(ctx, &a)
}

func toolErrorData(message string, details interface{}) interface{} {
	if details == nil {
		return message
	}
	return map[string]interface{}{
		"message": message,
		"details": details,
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
