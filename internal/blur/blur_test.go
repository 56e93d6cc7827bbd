package blur

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))

	return buf.Bytes()
}

func checkerboard(size, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return img
}

func ramp(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / (size - 1))})
		}
	}

	return img
}

// checker draws a w x h frame of alternating black and white cells.
func checker(w, h, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}

	return img
}

// sinusoid draws vertical bands whose intensity follows a sine of the given period.
func sinusoid(w, h int, period float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))

	for x := 0; x < w; x++ {
		v := uint8(math.Round(127.5 + 127*math.Sin(2*math.Pi*float64(x)/period)))
		for y := 0; y < h; y++ {
			img.Pix[y*img.Stride+x] = v
		}
	}

	return img
}

// defocus applies a separable Gaussian blur, which is how an out of focus lens renders a scene.
func defocus(src *image.Gray, sigma float64) *image.Gray {
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)

	var sum float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}

	for i := range kernel {
		kernel[i] /= sum
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	rows := make([]float64, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k, kv := range kernel {
				xx := min(max(x+k-radius, 0), w-1)
				acc += kv * float64(src.Pix[y*src.Stride+xx])
			}
			rows[y*w+x] = acc
		}
	}

	out := image.NewGray(src.Bounds())

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k, kv := range kernel {
				yy := min(max(y+k-radius, 0), h-1)
				acc += kv * rows[yy*w+x]
			}
			out.Pix[y*out.Stride+x] = uint8(math.Round(acc))
		}
	}

	return out
}

func TestGradientScorer_DefocusCrossesThreshold(t *testing.T) {
	s := NewGradientScorer()
	frame := checker(1280, 720, 64)

	sharp, err := s.Score(encodePNG(t, frame))
	require.NoError(t, err)
	require.Less(t, sharp, DefaultThreshold)

	blurred, err := s.Score(encodePNG(t, defocus(frame, 16)))
	require.NoError(t, err)
	require.Greater(t, blurred, DefaultThreshold)
	require.LessOrEqual(t, blurred, 1.0)
}

func TestGradientScorer_ScoresByDetailScale(t *testing.T) {
	tests := []struct {
		name   string
		period float64
		blurry bool
	}{
		{name: "fine weave", period: 16, blurry: false},
		{name: "soft gradient", period: 128, blurry: true},
		{name: "very soft gradient", period: 400, blurry: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := NewGradientScorer().Score(encodePNG(t, sinusoid(1280, 720, tt.period)))
			require.NoError(t, err)
			require.Equal(t, tt.blurry, score > DefaultThreshold, "score %.3f", score)
		})
	}
}

func TestGradientScorer_IgnoresContrast(t *testing.T) {
	s := GradientScorer{Downsample: 1}

	bright, err := s.Score(encodePNG(t, checker(64, 64, 8)))
	require.NoError(t, err)

	dim := checker(64, 64, 8)
	for i, v := range dim.Pix {
		dim.Pix[i] = 100 + v/5
	}

	faded, err := s.Score(encodePNG(t, dim))
	require.NoError(t, err)

	require.InDelta(t, bright, faded, 1e-6)
	require.InDelta(t, 1.0/9, bright, 1e-6)
}

func TestGradientScorer_SharpScoresLowerThanSmooth(t *testing.T) {
	s := GradientScorer{Downsample: 1}

	sharp, err := s.Score(encodePNG(t, checkerboard(64, 4)))
	require.NoError(t, err)

	smooth, err := s.Score(encodePNG(t, ramp(64)))
	require.NoError(t, err)

	require.Greater(t, sharp, 0.0)
	require.Less(t, sharp, smooth)
}

func TestGradientScorer_Downsampling(t *testing.T) {
	img := encodePNG(t, checkerboard(64, 8))

	full, err := GradientScorer{Downsample: 1}.Score(img)
	require.NoError(t, err)

	down, err := NewGradientScorer().Score(img)
	require.NoError(t, err)

	require.Greater(t, full, 0.0)
	require.Greater(t, down, 0.0)
}

func TestGradientScorer_DecodesJPEG(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, jpeg.Encode(buf, checkerboard(32, 4), &jpeg.Options{Quality: 90}))

	score, err := GradientScorer{Downsample: 1}.Score(buf.Bytes())
	require.NoError(t, err)
	require.Greater(t, score, 0.0)
}

func TestGradientScorer_Errors(t *testing.T) {
	s := GradientScorer{Downsample: 1}

	_, err := s.Score([]byte("not an image"))
	require.Error(t, err)

	_, err = s.Score(encodePNG(t, image.NewGray(image.Rect(0, 0, 16, 16))))
	require.ErrorIs(t, err, ErrUniformImage)

	_, err = s.Score(encodePNG(t, checkerboard(2, 1)))
	require.ErrorIs(t, err, ErrTooSmall)

	_, err = NewGradientScorer().Score(encodePNG(t, checkerboard(8, 1)))
	require.ErrorIs(t, err, ErrTooSmall)
}

func TestScorerFunc(t *testing.T) {
	var s Scorer = ScorerFunc(func([]byte) (float64, error) { return 42, nil })

	got, err := s.Score(nil)
	require.NoError(t, err)
	require.EqualValues(t, 42, got)
}
