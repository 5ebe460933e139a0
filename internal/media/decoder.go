package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ImageInfo is what a decoder reports about a buffer.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// ConfigDecoder reads only the image header, which is enough for dimension
// and format checks and also works for animated WebP canvases.
type ConfigDecoder struct{}

// Decode returns the header information or an error for non-image data.
func (ConfigDecoder) Decode(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, fmt.Errorf("empty buffer")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode image header: %w", err)
	}
	return ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}
