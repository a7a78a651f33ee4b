package segmentation

import (
	"context"
	"fmt"

	"globule-detector/internal/opencv/conversion"
	"globule-detector/internal/opencv/safe"
	"globule-detector/internal/params"

	"gocv.io/x/gocv"
)

// SegmentByColor returns a CV_8UC1 mask that is 255 where the pixel's HSV
// value lies inside [lower, upper] on every channel and 0 elsewhere.
// src must be BGR or BGRA.
func SegmentByColor(src *safe.Mat, lower, upper params.HSV) (*safe.Mat, error) {
	bgr, err := conversion.ToBGR(src)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	hsv, err := safe.NewTaggedMat(bgr.Rows(), bgr.Cols(), gocv.MatTypeCV8UC3, "hsv")
	if err != nil {
		return nil, fmt.Errorf("HSV Mat creation failed: %w", err)
	}
	defer hsv.Close()

	bgrMat := bgr.GetMat()
	hsvMat := hsv.GetMat()
	gocv.CvtColor(bgrMat, &hsvMat, gocv.ColorBGRToHSV)

	mask, err := safe.NewTaggedMat(bgr.Rows(), bgr.Cols(), gocv.MatTypeCV8UC1, "mask")
	if err != nil {
		return nil, fmt.Errorf("mask Mat creation failed: %w", err)
	}

	maskMat := mask.GetMat()
	gocv.InRangeWithScalar(hsvMat, toScalar(lower), toScalar(upper), &maskMat)

	return mask, nil
}

func toScalar(v params.HSV) gocv.Scalar {
	return gocv.NewScalar(float64(v.Hue), float64(v.Saturation), float64(v.Value), 0)
}

// ColorRangeStep is SegmentByColor as a chain step.
type ColorRangeStep struct {
	lower params.HSV
	upper params.HSV
}

func NewColorRangeStep(lower, upper params.HSV) *ColorRangeStep {
	return &ColorRangeStep{lower: lower, upper: upper}
}

func (s *ColorRangeStep) Name() string {
	return "hsv_segmentation"
}

func (s *ColorRangeStep) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return SegmentByColor(input, s.lower, s.upper)
}
