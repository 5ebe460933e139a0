// Package testutil builds synthetic image buffers for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
)

// PNG encodes a solid w x h PNG.
func PNG(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PaddedPNG returns a w x h PNG padded with trailing bytes to exactly total
// bytes. Header decoders ignore the padding.
func PaddedPNG(w, h, total int) []byte {
	return pad(PNG(w, h), total)
}

// WebP returns a minimal extended-format (VP8X) WebP header describing a
// w x h canvas, padded to total bytes. It is enough for header decoding.
func WebP(w, h, total int) []byte {
	chunk := make([]byte, 10)
	chunk[0] = 1 << 1 // animation flag
	putUint24(chunk[4:7], uint32(w-1))
	putUint24(chunk[7:10], uint32(h-1))

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4+8+len(chunk)))
	buf.WriteString("WEBP")
	buf.WriteString("VP8X")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(chunk)))
	buf.Write(chunk)
	return pad(buf.Bytes(), total)
}

// KB is a convenience for sizes expressed in kilobytes.
func KB(n int) int {
	return n * 1024
}

func pad(data []byte, total int) []byte {
	if total <= len(data) {
		return data
	}
	out := make([]byte, total)
	copy(out, data)
	return out
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
