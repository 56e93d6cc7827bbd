// Package blur scores how out of focus a camera frame is.
//
// The score is the share of edge strength that survives re-blurring the frame
// with a 9-pixel box filter: sharp detail loses most of its gradient when
// re-blurred and scores near 0, defocused detail is barely changed and scores
// near 1. The ratio does not depend on frame contrast.
package blur

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
)

var (
	// ErrUniformImage is returned for frames with no intensity variation.
	ErrUniformImage = errors.New("blur: uniform image")
	// ErrTooSmall is returned when a frame is too small for the re-blur window after downsampling.
	ErrTooSmall = errors.New("blur: image too small")
)

// DefaultThreshold is the average score above which a folder of frames is mostly blurry.
const DefaultThreshold = 0.5

// reblurWidth is the length of the box filter used to re-blur each line.
const reblurWidth = 9

// Scorer turns an encoded image into a blurriness score.
type Scorer interface {
	Score(img []byte) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(img []byte) (float64, error)

func (f ScorerFunc) Score(img []byte) (float64, error) { return f(img) }

// GradientScorer is the default Scorer. Scores are in [0,1].
type GradientScorer struct {
	// Downsample shrinks the frame by this factor with an anti-aliasing filter before scoring.
	// Values below 2 disable it.
	Downsample int
}

// NewGradientScorer returns a scorer with the line cameras' default downsampling.
func NewGradientScorer() GradientScorer { return GradientScorer{Downsample: 4} }

func (s GradientScorer) Score(img []byte) (float64, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return 0, fmt.Errorf("blur: decode: %w", err)
	}

	factor := s.Downsample
	if factor < 2 {
		factor = 1
	}

	b := decoded.Bounds()
	if b.Dx()/factor < reblurWidth+2 || b.Dy()/factor < reblurWidth+2 {
		return 0, ErrTooSmall
	}

	p := luma(decoded, factor)

	h, okH := p.blurAmount(true)
	v, okV := p.blurAmount(false)

	switch {
	case !okH && !okV:
		return 0, ErrUniformImage
	case !okH:
		return v, nil
	case !okV:
		return h, nil
	}

	return math.Max(h, v), nil
}

type plane struct {
	w, h int
	px   []float64
}

func (p *plane) at(x, y int) float64 { return p.px[y*p.w+x] }

// luma converts img to a [0,1] luminance plane shrunk by factor.
func luma(img image.Image, factor int) *plane {
	b := img.Bounds()

	if factor > 1 {
		// The kernel scalers widen their filter when shrinking, so fine texture is
		// averaged out instead of aliasing into coarse patterns.
		small := image.NewGray16(image.Rect(0, 0, b.Dx()/factor, b.Dy()/factor))
		draw.BiLinear.Scale(small, small.Bounds(), img, b, draw.Src, nil)

		w, h := small.Bounds().Dx(), small.Bounds().Dy()
		p := &plane{w: w, h: h, px: make([]float64, w*h)}

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p.px[y*w+x] = float64(small.Gray16At(x, y).Y) / 0xffff
			}
		}

		return p
	}

	w, h := b.Dx(), b.Dy()
	p := &plane{w: w, h: h, px: make([]float64, w*h)}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// ITU-R BT.601 luma on 16-bit channels.
			p.px[y*w+x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 0xffff
		}
	}

	return p
}

// blurAmount compares gradients of every row (or column) with their re-blurred
// version. It reports false when the direction has no gradient at all.
func (p *plane) blurAmount(horizontal bool) (float64, bool) {
	lines, length := p.w, p.h
	if horizontal {
		lines, length = p.h, p.w
	}

	line := make([]float64, length)

	var gradient, lost float64

	for i := 0; i < lines; i++ {
		for k := range line {
			if horizontal {
				line[k] = p.at(k, i)
			} else {
				line[k] = p.at(i, k)
			}
		}

		g, l := lineVariation(line)
		gradient += g
		lost += l
	}

	if gradient == 0 {
		return 0, false
	}

	return (gradient - lost) / gradient, true
}

// lineVariation returns the summed absolute differences of l and how much of
// that variation disappears after a centered box blur.
func lineVariation(l []float64) (gradient, lost float64) {
	const half = reblurWidth / 2

	var win float64
	for k := 0; k < reblurWidth; k++ {
		win += l[k]
	}

	prev := win / reblurWidth

	for x := half + 1; x < len(l)-half; x++ {
		win += l[x+half] - l[x-half-1]
		cur := win / reblurWidth

		d := math.Abs(l[x] - l[x-1])
		gradient += d
		lost += math.Max(0, d-math.Abs(cur-prev))
		prev = cur
	}

	return gradient, lost
}
