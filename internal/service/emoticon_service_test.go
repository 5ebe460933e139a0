package service

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/checker"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/links"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/media"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/pipeline"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/preview"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/spec"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/storage"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/task"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/testutil"
)

type stubSynth struct {
	mu         sync.Mutex
	tokens     []string
	references [][]byte
}

func (s *stubSynth) SynthesizeCharacter(context.Context, string) ([]byte, error) {
	return testutil.PNG(64, 64), nil
}

func (s *stubSynth) SynthesizeStatic(_ context.Context, reference []byte, _ string) ([]byte, error) {
	s.mu.Lock()
	s.references = append(s.references, reference)
	s.mu.Unlock()
	return testutil.PNG(64, 64), nil
}

func (s *stubSynth) SynthesizeVideo(_ context.Context, reference []byte, _ string) ([]byte, error) {
	return []byte("video"), nil
}

type stubTranscoder struct{}

func (stubTranscoder) VideoToAnimatedImage(_ context.Context, _ []byte, size model.Size, _, _ int) ([]byte, error) {
	return testutil.WebP(size.Width, size.Height, 1024), nil
}

func (stubTranscoder) ResizeAndCompress(_ context.Context, _ []byte, size model.Size, _ model.FileFormat, _ int) ([]byte, error) {
	return testutil.PNG(size.Width, size.Height), nil
}

type fixture struct {
	svc   *EmoticonService
	orch  *pipeline.Orchestrator
	synth *stubSynth
	store *task.Store
}

func newFixture(t *testing.T, defaultToken string) *fixture {
	t.Helper()

	registry := spec.NewRegistry()
	tasks := task.NewStore(100)
	artifacts := storage.NewMemoryStore(nil)
	builder := links.NewBuilder("http://localhost:8000")
	synth := &stubSynth{}

	orch := pipeline.New(context.Background(), pipeline.Deps{
		Registry: registry,
		Store:    tasks,
		Synthesizers: func(token string) pipeline.Synthesizer {
			synth.mu.Lock()
			synth.tokens = append(synth.tokens, token)
			synth.mu.Unlock()
			return synth
		},
		Transcoder: stubTranscoder{},
		Artifacts:  artifacts,
		Links:      builder,
	})

	previews, err := preview.NewGenerator(artifacts, builder, time.Second)
	require.NoError(t, err)

	svc := NewEmoticonService(registry, checker.New(registry, media.ConfigDecoder{}), tasks, orch, previews, builder, defaultToken)
	return &fixture{svc: svc, orch: orch, synth: synth, store: tasks}
}

func encoded(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func TestSpecs(t *testing.T) {
	f := newFixture(t, "")

	resp := f.svc.Specs()
	require.Len(t, resp.Specs, 5)
	assert.Equal(t, model.EmoticonTypeStatic, resp.Specs[0].Type)

	info, err := f.svc.Spec("static-mini")
	require.NoError(t, err)
	assert.Equal(t, model.EmoticonTypeStaticMini, info.Type)

	_, err = f.svc.Spec("gif")
	var unknown *spec.UnknownTypeError
	assert.True(t, errors.As(err, &unknown))
}

func TestCheck(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	files := make([]model.CheckFile, 32)
	for i := range files {
		files[i] = model.CheckFile{FileData: encoded(testutil.PNG(360, 360))}
	}
	icon := &model.CheckFile{FileData: media.EncodeDataURL(testutil.PNG(78, 78), "image/png")}

	result, err := f.svc.Check(ctx, &model.CheckRequest{EmoticonType: "static", Emoticons: files, Icon: icon})
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, 32, result.CheckedCount)

	result, err = f.svc.Check(ctx, &model.CheckRequest{EmoticonType: "STATIC", Emoticons: files[:31]})
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, model.IssueKindCount, result.Issues[0].Kind)
}

func TestCheck_InvalidBase64(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.Check(context.Background(), &model.CheckRequest{
		EmoticonType: "static",
		Emoticons:    []model.CheckFile{{FileData: "%%%"}},
	})
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Contains(t, err.Error(), "emoticon 1")
}

func TestCheck_UnknownType(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.Check(context.Background(), &model.CheckRequest{EmoticonType: "gif"})
	var unknown *spec.UnknownTypeError
	assert.True(t, errors.As(err, &unknown))
}

func TestGenerate_TokenPriority(t *testing.T) {
	tests := []struct {
		name         string
		header       string
		argument     string
		defaultToken string
		want         string
	}{
		{"header wins", "hf_header", "hf_arg", "hf_env", "hf_header"},
		{"argument over config", "", "hf_arg", "hf_env", "hf_arg"},
		{"config fallback", "", "", "hf_env", "hf_env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.defaultToken)
			ctx := context.Background()
			if tt.header != "" {
				ctx = WithToken(ctx, tt.header)
			}

			_, err := f.svc.Generate(ctx, &model.GenerateRequest{
				EmoticonType: "static",
				Emoticons:    []model.ItemSpec{{Description: "waving"}},
				HFToken:      tt.argument,
			})
			require.NoError(t, err)
			f.orch.Wait()

			f.synth.mu.Lock()
			defer f.synth.mu.Unlock()
			require.NotEmpty(t, f.synth.tokens)
			assert.Equal(t, tt.want, f.synth.tokens[0])
		})
	}
}

func TestGenerate_MissingToken(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.Generate(context.Background(), &model.GenerateRequest{
		EmoticonType: "static",
		Emoticons:    []model.ItemSpec{{Description: "waving"}},
	})
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Equal(t, 0, f.store.Len(), "no task is created without a token")
}

func TestGenerate_AcceptedAndCompleted(t *testing.T) {
	f := newFixture(t, "hf_env")
	character := testutil.PNG(32, 32)

	resp, err := f.svc.Generate(context.Background(), &model.GenerateRequest{
		EmoticonType:   "static",
		CharacterImage: media.EncodeDataURL(character, "image/png"),
		Emoticons:      []model.ItemSpec{{Description: "waving"}, {Description: "crying"}},
	})
	require.NoError(t, err)

	assert.Len(t, resp.TaskID, 12)
	assert.Equal(t, "http://localhost:8000/status/"+resp.TaskID, resp.StatusURL)
	assert.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, model.EmoticonTypeStatic, resp.EmoticonType)
	assert.NotEmpty(t, resp.Message)

	f.orch.Wait()

	got, err := f.svc.TaskStatus(resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.Len(t, got.Results, 2)
	require.NotNil(t, got.IconResult)

	f.synth.mu.Lock()
	assert.Equal(t, character, f.synth.references[0])
	f.synth.mu.Unlock()

	page, err := f.svc.StatusPage(resp.TaskID)
	require.NoError(t, err)
	assert.Contains(t, string(page), resp.TaskID)

	assert.Len(t, f.svc.Tasks(), 1)
}

func TestGenerate_InvalidCharacterImage(t *testing.T) {
	f := newFixture(t, "hf_env")

	_, err := f.svc.Generate(context.Background(), &model.GenerateRequest{
		EmoticonType:   "static",
		CharacterImage: "/image/expired1",
		Emoticons:      []model.ItemSpec{{Description: "waving"}},
	})
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestTaskStatus_NotFound(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.TaskStatus("doesnotexist")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = f.svc.StatusPage("doesnotexist")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestBeforeAndAfterPreview(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	before, err := f.svc.BeforePreview(ctx, &model.BeforePreviewRequest{
		EmoticonType: "dynamic-mini",
		Title:        "Cat",
		Plans:        []model.EmoticonPlan{{Description: "waving"}, {Description: "crying"}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EmoticonTypeDynamicMini, before.EmoticonType)
	assert.Equal(t, 2, before.TotalCount)
	assert.Contains(t, before.PreviewURL, "/preview/")

	after, err := f.svc.AfterPreview(ctx, &model.AfterPreviewRequest{
		EmoticonType: "static",
		Title:        "Cat",
		Emoticons:    []model.EmoticonImage{{ImageData: encoded(testutil.PNG(360, 360))}},
	})
	require.NoError(t, err)
	assert.Contains(t, after.PreviewURL, "/preview/")
	assert.Contains(t, after.DownloadURL, "/download/")

	_, err = f.svc.AfterPreview(ctx, &model.AfterPreviewRequest{
		EmoticonType: "static",
		Title:        "Cat",
		Emoticons:    []model.EmoticonImage{{ImageData: "/image/expired1"}},
	})
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "hf_abc", BearerToken("Bearer hf_abc"))
	assert.Equal(t, "hf_abc", BearerToken("bearer  hf_abc "))
	assert.Equal(t, "", BearerToken("Basic dXNlcg=="))
	assert.Equal(t, "", BearerToken("Bearer "))
	assert.Equal(t, "", BearerToken(""))
}
