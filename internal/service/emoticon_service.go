package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/checker"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/links"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/media"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/pipeline"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/preview"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/spec"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/task"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrMissingToken = errors.New("a Hugging Face token is required: send Authorization: Bearer <token> or the hf_token argument (https://huggingface.co/settings/tokens)")
	ErrInvalidImage = errors.New("invalid image data")
)

const generateMessage = "Generation started. Open status_url to follow progress, or poll get_task_status_tool with task_id."

type tokenKey struct{}

// WithToken attaches the token sent in the Authorization header.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, strings.TrimSpace(token))
}

// TokenFrom returns the header token attached by WithToken.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// EmoticonService implements the operations shared by the MCP tools and
// the REST API.
type EmoticonService struct {
	registry     *spec.Registry
	checker      *checker.Checker
	tasks        *task.Store
	orchestrator *pipeline.Orchestrator
	previews     *preview.Generator
	links        links.Builder
	defaultToken string
}

func NewEmoticonService(
	registry *spec.Registry,
	chk *checker.Checker,
	tasks *task.Store,
	orchestrator *pipeline.Orchestrator,
	previews *preview.Generator,
	builder links.Builder,
	defaultToken string,
) *EmoticonService {
	return &EmoticonService{
		registry:     registry,
		checker:      chk,
		tasks:        tasks,
		orchestrator: orchestrator,
		previews:     previews,
		links:        builder,
		defaultToken: defaultToken,
	}
}

// Specs lists every set type in registry order.
func (s *EmoticonService) Specs() *model.SpecsResponse {
	entries := s.registry.All()
	resp := &model.SpecsResponse{Specs: make([]model.SpecInfo, 0, len(entries))}
	for _, e := range entries {
		resp.Specs = append(resp.Specs, e.Info())
	}
	return resp
}

// Spec returns one set type.
func (s *EmoticonService) Spec(raw string) (*model.SpecInfo, error) {
	entry, err := s.registry.Resolve(raw)
	if err != nil {
		return nil, err
	}
	info := entry.Info()
	return &info, nil
}

// Check validates base64 encoded files against the rules of a set type.
func (s *EmoticonService) Check(ctx context.Context, req *model.CheckRequest) (*model.CheckResult, error) {
	t, err := s.registry.Parse(req.EmoticonType)
	if err != nil {
		return nil, err
	}

	items := make([][]byte, len(req.Emoticons))
	for i, f := range req.Emoticons {
		data, err := media.DecodeBase64(f.FileData)
		if err != nil {
			return nil, fmt.Errorf("%w: emoticon %d: %v", ErrInvalidImage, i+1, err)
		}
		items[i] = data
	}

	var icon []byte
	if req.Icon != nil {
		if icon, err = media.DecodeBase64(req.Icon.FileData); err != nil {
			return nil, fmt.Errorf("%w: icon: %v", ErrInvalidImage, err)
		}
	}

	result, err := s.checker.Check(t, items, icon)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"type":   t,
		"count":  len(items),
		"issues": len(result.Issues),
	}).Debug("emoticon set checked")

	return result, nil
}

// BeforePreview renders the plan page for a set.
func (s *EmoticonService) BeforePreview(ctx context.Context, req *model.BeforePreviewRequest) (*model.BeforePreviewResponse, error) {
	entry, err := s.registry.Resolve(req.EmoticonType)
	if err != nil {
		return nil, err
	}

	url, err := s.previews.BeforePreview(ctx, entry, req.Title, req.Plans)
	if err != nil {
		return nil, err
	}

	return &model.BeforePreviewResponse{
		PreviewURL:   url,
		EmoticonType: entry.Type,
		Title:        req.Title,
		TotalCount:   len(req.Plans),
	}, nil
}

// Generate starts a background generation task. The provider token is the
// header token attached to ctx, else req.HFToken, else the configured one.
func (s *EmoticonService) Generate(ctx context.Context, req *model.GenerateRequest) (*model.GenerateResponse, error) {
	entry, err := s.registry.Resolve(req.EmoticonType)
	if err != nil {
		return nil, err
	}

	token := s.resolveToken(ctx, req.HFToken)
	if token == "" {
		return nil, ErrMissingToken
	}

	var character []byte
	if req.CharacterImage != "" {
		character, err = s.previews.ImageBytes(ctx, req.CharacterImage)
		if err != nil {
			return nil, fmt.Errorf("%w: character_image: %v", ErrInvalidImage, err)
		}
	}

	created, err := s.orchestrator.Run(ctx, pipeline.Request{
		Type:                 entry.Type,
		CharacterImage:       character,
		CharacterDescription: req.CharacterDescription,
		Items:                req.Emoticons,
		Token:                token,
	})
	if err != nil {
		return nil, err
	}

	statusURL, err := s.previews.StatusPage(ctx, created.TaskID)
	if err != nil {
		// GET /status/:taskId renders on demand when the stored page is missing.
		logrus.WithError(err).WithField("task_id", created.TaskID).Warn("failed to store status page")
		statusURL = s.links.Status(created.TaskID)
	}

	return &model.GenerateResponse{
		TaskID:       created.TaskID,
		StatusURL:    statusURL,
		Message:      generateMessage,
		EmoticonType: entry.Type,
		TotalCount:   created.TotalCount,
		CreatedAt:    created.CreatedAt,
	}, nil
}

// TaskStatus returns a snapshot of a task.
func (s *EmoticonService) TaskStatus(taskID string) (*model.GenerationTask, error) {
	t, ok := s.tasks.Get(taskID)
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &t, nil
}

// Tasks lists retained tasks, newest first.
func (s *EmoticonService) Tasks() []model.GenerationTask {
	return s.tasks.List()
}

// AfterPreview packages finished images and renders the chat preview.
func (s *EmoticonService) AfterPreview(ctx context.Context, req *model.AfterPreviewRequest) (*model.AfterPreviewResponse, error) {
	entry, err := s.registry.Resolve(req.EmoticonType)
	if err != nil {
		return nil, err
	}

	refs := make([]string, len(req.Emoticons))
	for i, e := range req.Emoticons {
		refs[i] = e.ImageData
	}

	previewURL, downloadURL, err := s.previews.AfterPreview(ctx, entry, req.Title, refs, req.Icon)
	if err != nil {
		if errors.Is(err, preview.ErrUnresolvable) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return nil, err
	}

	return &model.AfterPreviewResponse{
		PreviewURL:   previewURL,
		DownloadURL:  downloadURL,
		EmoticonType: entry.Type,
		Title:        req.Title,
	}, nil
}

// StatusPage renders the status page of a retained task.
func (s *EmoticonService) StatusPage(taskID string) ([]byte, error) {
	if _, ok := s.tasks.Get(taskID); !ok {
		return nil, ErrTaskNotFound
	}
	return s.previews.RenderStatus(taskID)
}

func (s *EmoticonService) resolveToken(ctx context.Context, argument string) string {
	if token := TokenFrom(ctx); token != "" {
		return token
	}
	if token := strings.TrimSpace(argument); token != "" {
		return token
	}
	return s.defaultToken
}
