package analysis

import (
	"errors"
	"image"
	"image/draw"
	"math"
	"sort"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
)

// ContrastConfig tunes the contrast heuristic.
type ContrastConfig struct {
	// Stride samples every Nth pixel in row-major order.
	Stride int
	// Threshold is the luma distance from the mean (0-255) that marks a pixel as deviating.
	Threshold float64
	// MinRatio is the share of deviating samples above which the frame counts as occupied.
	MinRatio float64
	// Count is reported for an occupied frame.
	Count int
}

func DefaultContrastConfig() ContrastConfig {
	return ContrastConfig{
		Stride:    100,
		Threshold: 50,
		MinRatio:  0.1,
		Count:     2,
	}
}

// ContrastDetector flags frames with enough high-contrast pixels and reports a
// fixed count for them. Positions are the grid cells holding the most
// deviating samples.
type ContrastDetector struct {
	cfg ContrastConfig
}

// NewContrastDetector fills unusable settings with defaults: a stride or count
// below 1, or a negative threshold or ratio. Zero is a valid threshold and ratio.
func NewContrastDetector(cfg ContrastConfig) *ContrastDetector {
	def := DefaultContrastConfig()
	if cfg.Stride <= 0 {
		cfg.Stride = def.Stride
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MinRatio < 0 {
		cfg.MinRatio = def.MinRatio
	}
	if cfg.Count <= 0 {
		cfg.Count = def.Count
	}
	return &ContrastDetector{cfg: cfg}
}

type lumaSample struct {
	pixel int
	luma  float64
}

func (d *ContrastDetector) Detect(frame image.Image) (entity.Detection, error) {
	if frame == nil {
		return entity.Detection{}, entity.NewAnalysisError(entity.ErrRendering, "detect", errors.New("nil frame"))
	}

	rgba := toRGBA(frame)
	width, height := rgba.Rect.Dx(), rgba.Rect.Dy()
	pixels := width * height
	if pixels == 0 {
		return entity.Detection{}, nil
	}

	samples := make([]lumaSample, 0, pixels/d.cfg.Stride+1)
	var sum float64
	for p := 0; p < pixels; p += d.cfg.Stride {
		l := luma(rgba.Pix[p*4 : p*4+3])
		sum += l
		samples = append(samples, lumaSample{pixel: p, luma: l})
	}
	mean := sum / float64(len(samples))

	var cells [entity.GridSize * entity.GridSize]int
	deviating := 0
	for _, s := range samples {
		if math.Abs(s.luma-mean) <= d.cfg.Threshold {
			continue
		}
		deviating++
		x := (s.pixel % width) * entity.GridSize / width
		y := (s.pixel / width) * entity.GridSize / height
		cells[y*entity.GridSize+x]++
	}

	if float64(deviating) <= float64(len(samples))*d.cfg.MinRatio {
		return entity.Detection{}, nil
	}

	return entity.Detection{
		Count:     d.cfg.Count,
		Positions: busiestCells(cells[:], d.cfg.Count),
	}, nil
}

func luma(rgb []uint8) float64 {
	return 0.299*float64(rgb[0]) + 0.587*float64(rgb[1]) + 0.114*float64(rgb[2])
}

// busiestCells returns up to n non-empty cells, most populated first, ties in row-major order.
func busiestCells(cells []int, n int) []entity.Position {
	idx := make([]int, 0, len(cells))
	for i, c := range cells {
		if c > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return cells[idx[a]] > cells[idx[b]] })
	if len(idx) > n {
		idx = idx[:n]
	}

	out := make([]entity.Position, len(idx))
	for i, c := range idx {
		out[i] = entity.Position{X: c % entity.GridSize, Y: c / entity.GridSize}
	}
	return out
}

// toRGBA returns an origin-anchored RGBA image whose stride equals 4*width.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}
