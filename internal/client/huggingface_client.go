package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/config"
)

// ErrMissingToken is returned when no Hugging Face token is available.
var ErrMissingToken = errors.New("hugging face token is required (Authorization header, hf_token argument or HF_TOKEN)")

const maxResponseBytes = 64 << 20

// HuggingFaceClient calls the Hugging Face inference API. One client is built
// per generation request because the token comes from the caller.
type HuggingFaceClient struct {
	httpClient        *http.Client
	baseURL           string
	apiKey            string
	textToImageModel  string
	imageEditModel    string
	imageToVideoModel string
	maxResponse       int64
}

// inferenceRequest is the JSON body accepted by the inference endpoints.
type inferenceRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type inferenceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

// NewHuggingFaceClient creates a client authenticated with token.
func NewHuggingFaceClient(cfg *config.HuggingFaceConfig, token string) *HuggingFaceClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &HuggingFaceClient{
		httpClient:        &http.Client{Timeout: timeout},
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:            token,
		textToImageModel:  cfg.TextToImageModel,
		imageEditModel:    cfg.ImageEditModel,
		imageToVideoModel: cfg.ImageToVideoModel,
		maxResponse:       maxResponseBytes,
	}
}

// SynthesizeCharacter renders a character reference from a text description.
func (c *HuggingFaceClient) SynthesizeCharacter(ctx context.Context, description string) ([]byte, error) {
	data, err := c.infer(ctx, c.textToImageModel, inferenceRequest{Inputs: description})
	if err != nil {
		return nil, fmt.Errorf("character generation failed: %w", err)
	}
	return data, nil
}

// SynthesizeStatic edits the character reference into one sticker pose.
func (c *HuggingFaceClient) SynthesizeStatic(ctx context.Context, reference []byte, description string) ([]byte, error) {
	data, err := c.edit(ctx, reference, description)
	if err != nil {
		return nil, fmt.Errorf("image edit failed: %w", err)
	}
	return data, nil
}

// SynthesizeVideo edits the reference into the first frame and animates it.
func (c *HuggingFaceClient) SynthesizeVideo(ctx context.Context, reference []byte, description string) ([]byte, error) {
	frame, err := c.edit(ctx, reference, description)
	if err != nil {
		return nil, fmt.Errorf("image edit failed: %w", err)
	}

	video, err := c.infer(ctx, c.imageToVideoModel, inferenceRequest{
		Inputs:     base64.StdEncoding.EncodeToString(frame),
		Parameters: map[string]any{"prompt": description},
	})
	if err != nil {
		return nil, fmt.Errorf("video generation failed: %w", err)
	}
	return video, nil
}

// IsConfigured returns true if the client has a token
func (c *HuggingFaceClient) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *HuggingFaceClient) edit(ctx context.Context, reference []byte, prompt string) ([]byte, error) {
	return c.infer(ctx, c.imageEditModel, inferenceRequest{
		Inputs:     base64.StdEncoding.EncodeToString(reference),
		Parameters: map[string]any{"prompt": prompt},
	})
}

// infer posts a JSON request to a model endpoint and returns the binary
// payload of the response.
func (c *HuggingFaceClient) infer(ctx context.Context, model string, body inferenceRequest) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingToken
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/" + model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log := logrus.WithFields(logrus.Fields{"model": model})
	log.Debug("hugging face request")
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("hugging face request failed")
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(respBody)) > c.maxResponse {
		return nil, fmt.Errorf("%s response exceeds %d bytes", model, c.maxResponse)
	}

	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"bytes":    len(respBody),
		"duration": time.Since(start).String(),
	}).Debug("hugging face response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(model, resp.StatusCode, respBody)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return nil, fmt.Errorf("%s returned JSON instead of media: %s", model, truncate(respBody))
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("%s returned an empty response", model)
	}

	return respBody, nil
}

func apiError(model string, status int, body []byte) error {
	var payload inferenceError
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		if payload.EstimatedTime > 0 {
			return fmt.Errorf("hugging face API error (status %d, model %s): %s (estimated wait %.0fs)", status, model, payload.Error, payload.EstimatedTime)
		}
		return fmt.Errorf("hugging face API error (status %d, model %s): %s", status, model, payload.Error)
	}
	return fmt.Errorf("hugging face API error (status %d, model %s): %s", status, model, truncate(body))
}

func truncate(b []byte) string {
	const limit = 300
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
