package mask

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"globule-detector/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// AddBorder returns a copy of mask grown by one pixel on every side, the new
// pixels set to value.
func AddBorder(mask *safe.Mat, value uint8) (*safe.Mat, error) {
	if err := safe.ValidateMask(mask, "border padding"); err != nil {
		return nil, err
	}

	padded, err := safe.NewTaggedMat(mask.Rows()+2, mask.Cols()+2, gocv.MatTypeCV8UC1, "bordered")
	if err != nil {
		return nil, fmt.Errorf("bordered Mat creation failed: %w", err)
	}

	src := mask.GetMat()
	dst := padded.GetMat()
	fill := color.RGBA{R: value, G: value, B: value, A: value}
	gocv.CopyMakeBorder(src, &dst, 1, 1, 1, 1, gocv.BorderConstant, fill)

	return padded, nil
}

// RemoveBorder undoes AddBorder.
func RemoveBorder(mask *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMask(mask, "border removal"); err != nil {
		return nil, err
	}
	if mask.Rows() < 3 || mask.Cols() < 3 {
		return nil, fmt.Errorf("mask %dx%d too small to remove a border", mask.Cols(), mask.Rows())
	}

	src := mask.GetMat()
	region := src.Region(image.Rect(1, 1, mask.Cols()-1, mask.Rows()-1))
	defer region.Close()

	return safe.NewMatFromMat(region)
}

// Invert swaps foreground and background in place.
func Invert(mask *safe.Mat) error {
	if err := safe.ValidateMask(mask, "mask inversion"); err != nil {
		return err
	}

	m := mask.GetMat()
	gocv.BitwiseNot(m, &m)
	return nil
}

type AddBorderStep struct {
	value uint8
}

func NewAddBorderStep(value uint8) *AddBorderStep {
	return &AddBorderStep{value: value}
}

func (s *AddBorderStep) Name() string { return "add_border" }

func (s *AddBorderStep) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return AddBorder(input, s.value)
}

type RemoveBorderStep struct{}

func (RemoveBorderStep) Name() string { return "remove_border" }

func (RemoveBorderStep) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return RemoveBorder(input)
}

type InvertStep struct{}

func (InvertStep) Name() string { return "invert" }

func (InvertStep) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := Invert(input); err != nil {
		return nil, err
	}
	return input, nil
}
