package conversion

import (
	"fmt"
	"image"

	"globule-detector/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ToBGR returns a 3-channel copy of a BGR or BGRA image.
func ToBGR(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateColorImage(src, "BGR normalisation"); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if src.Channels() == 3 {
		return src.Clone()
	}

	dst, err := safe.NewMat(src.Rows(), src.Cols(), gocv.MatTypeCV8UC3)
	if err != nil {
		return nil, fmt.Errorf("destination Mat creation failed: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRAToBGR)

	return dst, nil
}

// GrayToBGR expands a single-channel Mat into dst, which must be CV_8UC3 of the same size.
func GrayToBGR(src, dst *safe.Mat) error {
	if err := safe.ValidateMask(src, "gray to BGR"); err != nil {
		return err
	}
	if err := safe.ValidateMatForOperation(dst, "gray to BGR"); err != nil {
		return err
	}
	if dst.Rows() != src.Rows() || dst.Cols() != src.Cols() || dst.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("destination must be %dx%d CV_8UC3", src.Cols(), src.Rows())
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.CvtColor(srcMat, &dstMat, gocv.ColorGrayToBGR)

	return nil
}

// ResizeInto resamples src into dst, using dst's current size as the target.
func ResizeInto(src, dst *safe.Mat, interpolation gocv.InterpolationFlags) error {
	if err := safe.ValidateMatForOperation(src, "Mat resizing"); err != nil {
		return err
	}
	if err := safe.ValidateMatForOperation(dst, "Mat resizing"); err != nil {
		return err
	}
	if src.Type() != dst.Type() {
		return fmt.Errorf("resize type mismatch: %d vs %d", int(src.Type()), int(dst.Type()))
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.Resize(srcMat, &dstMat, image.Pt(dst.Cols(), dst.Rows()), 0, 0, interpolation)

	return nil
}
