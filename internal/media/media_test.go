package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/config"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/testutil"
)

func TestConfigDecoder(t *testing.T) {
	d := ConfigDecoder{}

	info, err := d.Decode(testutil.PNG(360, 360))
	require.NoError(t, err)
	assert.Equal(t, ImageInfo{Width: 360, Height: 360, Format: "png"}, info)

	info, err = d.Decode(testutil.WebP(540, 300, 2048))
	require.NoError(t, err)
	assert.Equal(t, 540, info.Width)
	assert.Equal(t, 300, info.Height)
	assert.Equal(t, "webp", info.Format)

	_, err = d.Decode([]byte("definitely not an image"))
	assert.Error(t, err)

	_, err = d.Decode(nil)
	assert.Error(t, err)
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", testutil.PNG(2, 2), "image/png"},
		{"webp", testutil.WebP(10, 10, 0), "image/webp"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"gif", []byte("GIF89a...."), "image/gif"},
		{"mp4", append([]byte{0, 0, 0, 0x20}, []byte("ftypisom")...), "video/mp4"},
		{"unknown", []byte("hello"), "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMIME(tt.data))
		})
	}
}

func TestDecodeBase64(t *testing.T) {
	raw := []byte("sticker-bytes")
	enc := base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeBase64(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeBase64("data:image/png;base64," + enc)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeBase64(base64.RawStdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = DecodeBase64("%%%")
	assert.Error(t, err)

	_, err = DecodeBase64("data:image/png;base64")
	assert.Error(t, err)
}

func TestEncodeDataURL(t *testing.T) {
	url := EncodeDataURL([]byte{1, 2, 3}, "image/png")
	assert.Equal(t, "data:image/png;base64,AQID", url)

	back, err := DecodeBase64(url)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, back)
}

func TestDownload(t *testing.T) {
	img := testutil.PNG(8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	data, err := Download(context.Background(), srv.Client(), srv.URL+"/character.png")
	require.NoError(t, err)
	assert.Equal(t, img, data)

	_, err = Download(context.Background(), srv.Client(), srv.URL+"/missing")
	assert.Error(t, err)

	assert.True(t, IsRemoteURL(srv.URL))
	assert.False(t, IsRemoteURL("/image/abc"))
}

func TestResizeAndCompress_PNG(t *testing.T) {
	tr := NewTranscoder(&config.MediaConfig{})

	out, err := tr.ResizeAndCompress(context.Background(), testutil.PNG(200, 100), model.Size{Width: 78, Height: 78}, model.FormatPNG, 16)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 78, cfg.Width)
	assert.Equal(t, 78, cfg.Height)
	assert.LessOrEqual(t, len(out), 16*1024)
}

func TestResizeAndCompress_Upscales(t *testing.T) {
	tr := NewTranscoder(&config.MediaConfig{})

	out, err := tr.ResizeAndCompress(context.Background(), testutil.PNG(30, 30), model.Size{Width: 360, Height: 360}, model.FormatPNG, 150)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 360, 360), img.Bounds())
}

func TestResizeAndCompress_InvalidInput(t *testing.T) {
	tr := NewTranscoder(&config.MediaConfig{}).WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Invalid data found when processing input"), fmt.Errorf("exit status 1")
	})

	_, err := tr.ResizeAndCompress(context.Background(), []byte("garbage"), model.Size{Width: 78, Height: 78}, model.FormatPNG, 16)
	assert.Error(t, err)
}

func TestVideoToAnimatedImage_QualityLoop(t *testing.T) {
	var qualities []int
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "ffmpeg", name)
		q := 0
		for i, a := range args {
			if a == "-q:v" {
				q, _ = strconv.Atoi(args[i+1])
			}
		}
		qualities = append(qualities, q)
		// Output shrinks with quality; 40 is the first setting under 500 KB.
		out := args[len(args)-1]
		return nil, os.WriteFile(out, make([]byte, q*12*1024+1), 0o600)
	}

	tr := NewTranscoder(&config.MediaConfig{FFmpegPath: "ffmpeg", DurationSeconds: 2}).WithRunner(runner)
	data, err := tr.VideoToAnimatedImage(context.Background(), []byte("fake-mp4"), model.Size{Width: 360, Height: 360}, 500, 15)
	require.NoError(t, err)

	assert.Equal(t, []int{80, 70, 60, 50, 40}, qualities)
	assert.LessOrEqual(t, len(data), 500*1024)
}

func TestVideoToAnimatedImage_ReturnsLastAttempt(t *testing.T) {
	calls := 0
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls++
		return nil, os.WriteFile(args[len(args)-1], make([]byte, 2048), 0o600)
	}

	tr := NewTranscoder(&config.MediaConfig{}).WithRunner(runner)
	data, err := tr.VideoToAnimatedImage(context.Background(), []byte("fake-mp4"), model.Size{Width: 180, Height: 180}, 1, 15)
	require.NoError(t, err)
	assert.Len(t, data, 2048)
	assert.Equal(t, 7, calls)
}

func TestVideoToAnimatedImage_FFmpegError(t *testing.T) {
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Unknown encoder 'libwebp'"), fmt.Errorf("exit status 1")
	}

	tr := NewTranscoder(&config.MediaConfig{}).WithRunner(runner)
	_, err := tr.VideoToAnimatedImage(context.Background(), []byte("fake-mp4"), model.Size{Width: 360, Height: 360}, 650, 15)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "libwebp")

	_, err = tr.VideoToAnimatedImage(context.Background(), nil, model.Size{Width: 360, Height: 360}, 650, 15)
	assert.Error(t, err)
}
