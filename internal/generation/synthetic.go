package generation

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"
)

// DefaultSyntheticSize is the edge length of synthetic images in pixels.
const DefaultSyntheticSize = 256

// Synthetic renders a gradient whose colours are derived from the prompt.
// The same prompt always yields the same bytes.
type Synthetic struct {
	Size int
}

var _ Generator = Synthetic{}

// Generate implements Generator.
func (s Synthetic) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := s.Size
	if size <= 0 {
		size = DefaultSyntheticSize
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(prompt))
	seed := h.Sum64()
	from := color.RGBA{R: uint8(seed), G: uint8(seed >> 8), B: uint8(seed >> 16), A: 0xff}
	to := color.RGBA{R: uint8(seed >> 24), G: uint8(seed >> 32), B: uint8(seed >> 40), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			t := (x + y) * 255 / (2*(size-1) + 1)
			img.SetRGBA(x, y, color.RGBA{
				R: lerp(from.R, to.R, t),
				G: lerp(from.G, to.G, t),
				B: lerp(from.B, to.B, t),
				A: 0xff,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode png: %w", ErrGenerationFailed, err)
	}
	return buf.Bytes(), nil
}

func lerp(a, b uint8, t int) uint8 {
	return uint8((int(a)*(255-t) + int(b)*t) / 255)
}
