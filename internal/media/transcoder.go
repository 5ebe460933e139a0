package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/png"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/config"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
)

const (
	startQuality = 80
	minQuality   = 10
	qualityStep  = 10
)

// CommandRunner executes an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Transcoder turns generated media into submission-ready files.
// Stills are handled in-process, anything involving WebP encoding or video
// goes through ffmpeg.
type Transcoder struct {
	ffmpegPath string
	duration   int
	run        CommandRunner
}

// NewTranscoder creates a transcoder from media configuration.
func NewTranscoder(cfg *config.MediaConfig) *Transcoder {
	path := cfg.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	duration := cfg.DurationSeconds
	if duration <= 0 {
		duration = 2
	}
	return &Transcoder{ffmpegPath: path, duration: duration, run: execRunner}
}

// WithRunner replaces the ffmpeg runner (used by tests).
func (t *Transcoder) WithRunner(run CommandRunner) *Transcoder {
	t.run = run
	return t
}

// ResizeAndCompress fits the image into size on a transparent canvas and
// encodes it in format, trying to stay under maxKB.
func (t *Transcoder) ResizeAndCompress(ctx context.Context, data []byte, size model.Size, format model.FileFormat, maxKB int) ([]byte, error) {
	img, err := t.decodeStill(ctx, data)
	if err != nil {
		return nil, err
	}

	canvas := fitCanvas(img, size)

	switch format {
	case model.FormatPNG:
		return encodePNG(canvas, maxKB)
	case model.FormatWEBP:
		return t.encodeWebPStill(ctx, canvas, maxKB)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// VideoToAnimatedImage converts a short clip into a looping animated WebP,
// lowering quality until the result fits under maxKB.
func (t *Transcoder) VideoToAnimatedImage(ctx context.Context, video []byte, size model.Size, maxKB, fps int) ([]byte, error) {
	if len(video) == 0 {
		return nil, fmt.Errorf("empty video")
	}
	if fps <= 0 {
		fps = 15
	}

	dir, err := os.MkdirTemp("", "emoticon-video-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input."+ExtensionFor(DetectMIME(video)))
	if err := os.WriteFile(input, video, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write video: %w", err)
	}
	output := filepath.Join(dir, "output.webp")

	filter := fmt.Sprintf(
		"fps=%d,scale=%d:%d:force_original_aspect_ratio=decrease:flags=lanczos,format=rgba,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=0x00000000",
		fps, size.Width, size.Height, size.Width, size.Height,
	)

	return t.qualityLoop(ctx, output, maxKB, func(quality int) []string {
		return []string{
			"-y", "-hide_banner", "-loglevel", "error",
			"-i", input,
			"-t", strconv.Itoa(t.duration),
			"-vf", filter,
			"-c:v", "libwebp",
			"-lossless", "0",
			"-q:v", strconv.Itoa(quality),
			"-compression_level", "6",
			"-loop", "0",
			"-an",
			output,
		}
	})
}

func (t *Transcoder) encodeWebPStill(ctx context.Context, img image.Image, maxKB int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "emoticon-still-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.png")
	if err := imaging.Save(img, input); err != nil {
		return nil, fmt.Errorf("failed to write still: %w", err)
	}
	output := filepath.Join(dir, "output.webp")

	return t.qualityLoop(ctx, output, maxKB, func(quality int) []string {
		return []string{
			"-y", "-hide_banner", "-loglevel", "error",
			"-i", input,
			"-c:v", "libwebp",
			"-q:v", strconv.Itoa(quality),
			output,
		}
	})
}

func (t *Transcoder) qualityLoop(ctx context.Context, output string, maxKB int, args func(quality int) []string) ([]byte, error) {
	var last []byte
	for quality := startQuality; quality > minQuality; quality -= qualityStep {
		if out, err := t.run(ctx, t.ffmpegPath, args(quality)...); err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, tail(out))
		}
		data, err := os.ReadFile(output)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg produced no output: %w", err)
		}
		last = data
		if maxKB <= 0 || len(data) <= maxKB*1024 {
			return data, nil
		}
	}

	logrus.WithFields(logrus.Fields{
		"size_kb": len(last) / 1024,
		"max_kb":  maxKB,
	}).Warn("animated output still exceeds size ceiling at minimum quality")
	return last, nil
}

// decodeStill decodes the first frame of data. Formats the Go decoders do
// not handle (animated WebP, video) are rasterised through ffmpeg.
func (t *Transcoder) decodeStill(ctx context.Context, data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}

	dir, dirErr := os.MkdirTemp("", "emoticon-frame-*")
	if dirErr != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input."+ExtensionFor(DetectMIME(data)))
	if werr := os.WriteFile(input, data, 0o600); werr != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	output := filepath.Join(dir, "frame.png")

	out, runErr := t.run(ctx, t.ffmpegPath, "-y", "-hide_banner", "-loglevel", "error", "-i", input, "-frames:v", "1", output)
	if runErr != nil {
		return nil, fmt.Errorf("failed to decode image: %w (ffmpeg: %v: %s)", err, runErr, tail(out))
	}

	frame, openErr := imaging.Open(output)
	if openErr != nil {
		return nil, fmt.Errorf("failed to decode extracted frame: %w", openErr)
	}
	return frame, nil
}

func fitCanvas(img image.Image, size model.Size) *image.NRGBA {
	b := img.Bounds()
	ratio := math.Min(float64(size.Width)/float64(b.Dx()), float64(size.Height)/float64(b.Dy()))
	w := clamp(int(math.Round(float64(b.Dx())*ratio)), 1, size.Width)
	h := clamp(int(math.Round(float64(b.Dy())*ratio)), 1, size.Height)

	resized := imaging.Resize(img, w, h, imaging.Lanczos)
	canvas := imaging.New(size.Width, size.Height, color.NRGBA{})
	return imaging.PasteCenter(canvas, resized)
}

func encodePNG(img image.Image, maxKB int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	if maxKB <= 0 || buf.Len() <= maxKB*1024 {
		return buf.Bytes(), nil
	}

	// Fall back to a paletted image, which is usually several times smaller.
	var small bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&small, quantize(img)); err != nil {
		return nil, fmt.Errorf("failed to encode paletted png: %w", err)
	}

	best := buf.Bytes()
	if small.Len() < buf.Len() {
		best = small.Bytes()
	}
	if len(best) > maxKB*1024 {
		logrus.WithFields(logrus.Fields{
			"size_kb": len(best) / 1024,
			"max_kb":  maxKB,
		}).Warn("png still exceeds size ceiling after quantization")
	}
	return best, nil
}

func quantize(img image.Image) *image.Paletted {
	pal := append(color.Palette{color.Transparent}, palette.WebSafe...)
	b := img.Bounds()
	dst := image.NewPaletted(b, pal)
	draw.FloydSteinberg.Draw(dst, b, img, b.Min)
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func tail(out []byte) string {
	const limit = 512
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return string(bytes.TrimSpace(out))
}
