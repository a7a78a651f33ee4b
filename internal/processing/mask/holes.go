package mask

import (
	"context"
	"fmt"
	"image/color"
	"math"

	"globule-detector/internal/logger"
	"globule-detector/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const component = "MaskCleaner"

var foreground = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// HoleOptions bounds which holes FillHoles paints. The zero value fills
// every hole at unit scale.
type HoleOptions struct {
	// MaxHoleArea is in scaled units (pixel area x PixelScale²). Holes at or
	// above it are kept. 0 means unbounded.
	MaxHoleArea float64
	PixelScale  float64
}

func (o HoleOptions) scale() float64 {
	if o.PixelScale <= 0 || math.IsNaN(o.PixelScale) {
		return 1
	}
	return o.PixelScale
}

func (o HoleOptions) bounded() bool {
	return o.MaxHoleArea > 0
}

// FillHoles paints enclosed holes of mask with 255 in place. A hole is an
// inner boundary of a foreground component. Masks without holes are left
// untouched. A hole that cannot be measured or drawn is logged and skipped.
func FillHoles(mask *safe.Mat, opts HoleOptions, log logger.Logger) (int, error) {
	log = logger.OrNoOp(log)

	if err := safe.ValidateMask(mask, "hole filling"); err != nil {
		return 0, err
	}

	src := mask.GetMat()
	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	contours := gocv.FindContoursWithParams(src, &hierarchy, gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 || hierarchy.Empty() {
		return 0, nil
	}

	scale := opts.scale()
	var holes []int
	for i := 0; i < contours.Size(); i++ {
		if hierarchy.GetVeciAt(0, i)[3] < 0 {
			continue
		}
		if opts.bounded() {
			area, ok := holeArea(contours, i, log)
			if !ok || area*scale*scale >= opts.MaxHoleArea {
				continue
			}
		}
		holes = append(holes, i)
	}

	filled := 0
	for _, i := range holes {
		if drawHole(&src, contours, i, log) {
			filled++
		}
	}

	if filled > 0 {
		log.Debug(component, "holes filled", map[string]interface{}{
			"filled":   filled,
			"contours": contours.Size(),
			"bounded":  opts.bounded(),
		})
	}

	return filled, nil
}

func holeArea(contours gocv.PointsVector, i int, log logger.Logger) (area float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warning(component, "hole area failed", map[string]interface{}{
				"contour": i,
				"panic":   fmt.Sprint(r),
			})
			area, ok = 0, false
		}
	}()

	return gocv.ContourArea(contours.At(i)), true
}

func drawHole(dst *gocv.Mat, contours gocv.PointsVector, i int, log logger.Logger) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warning(component, "hole fill failed", map[string]interface{}{
				"contour": i,
				"panic":   fmt.Sprint(r),
			})
			ok = false
		}
	}()

	gocv.DrawContours(dst, contours, i, foreground, -1)
	return true
}

// FillHolesStep runs FillHoles in place and hands its input on.
type FillHolesStep struct {
	opts   HoleOptions
	logger logger.Logger
}

func NewFillHolesStep(opts HoleOptions, log logger.Logger) *FillHolesStep {
	return &FillHolesStep{opts: opts, logger: logger.OrNoOp(log)}
}

func (s *FillHolesStep) Name() string {
	if s.opts.bounded() {
		return "fill_small_holes"
	}
	return "fill_holes"
}

func (s *FillHolesStep) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if _, err := FillHoles(input, s.opts, s.logger); err != nil {
		return nil, err
	}
	return input, nil
}
