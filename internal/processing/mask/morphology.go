package mask

import (
	"context"
	"fmt"
	"image"

	"globule-detector/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Open removes foreground specks smaller than an elliptical kernel of the
// given size and returns a new mask. size must be odd and at least 3.
func Open(mask *safe.Mat, size int) (*safe.Mat, error) {
	if err := safe.ValidateMask(mask, "morphological opening"); err != nil {
		return nil, err
	}
	if size < 3 || size%2 == 0 {
		return nil, fmt.Errorf("kernel size must be odd and >= 3, got %d", size)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: size, Y: size})
	defer kernel.Close()

	opened, err := safe.NewTaggedMat(mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1, "opened")
	if err != nil {
		return nil, fmt.Errorf("failed to create opened Mat: %w", err)
	}

	src := mask.GetMat()
	dst := opened.GetMat()
	gocv.MorphologyEx(src, &dst, gocv.MorphOpen, kernel)

	return opened, nil
}

type OpenStep struct {
	size int
}

func NewOpenStep(size int) *OpenStep {
	return &OpenStep{size: size}
}

func (s *OpenStep) Name() string {
	return "morphological_open"
}

func (s *OpenStep) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return Open(input, s.size)
}
