package segmentation

import (
	"context"
	"image"
	"image/color"
	"testing"

	"globule-detector/internal/opencv/safe"
	"globule-detector/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// newSlide returns a pink 20x30 BGR image with a white 10x10 square at (5,5).
func newSlide(t *testing.T) *safe.Mat {
	t.Helper()
	m, err := safe.NewMat(20, 30, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	mat := m.GetMat()
	mat.SetTo(gocv.NewScalar(200, 120, 230, 0))
	gocv.Rectangle(&mat, image.Rect(5, 5, 15, 15), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	return m
}

func TestSegmentByColorSelectsWhite(t *testing.T) {
	cfg := params.DefaultGlobuleConfig()
	mask, err := SegmentByColor(newSlide(t), cfg.LowerBound, cfg.UpperBound)
	require.NoError(t, err)
	defer mask.Close()

	assert.Equal(t, gocv.MatTypeCV8UC1, mask.Type())
	assert.Equal(t, 20, mask.Rows())
	assert.Equal(t, 30, mask.Cols())

	inside, err := mask.GetUCharAt(10, 10)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), inside)

	outside, err := mask.GetUCharAt(2, 25)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), outside)

	assert.Equal(t, 100, gocv.CountNonZero(mask.GetMat()))
}

func TestSegmentByColorAcceptsBGRA(t *testing.T) {
	src := newSlide(t)
	bgra, err := safe.NewMat(src.Rows(), src.Cols(), gocv.MatTypeCV8UC4)
	require.NoError(t, err)
	defer bgra.Close()

	srcMat := src.GetMat()
	dstMat := bgra.GetMat()
	gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRToBGRA)

	cfg := params.DefaultGlobuleConfig()
	mask, err := SegmentByColor(bgra, cfg.LowerBound, cfg.UpperBound)
	require.NoError(t, err)
	defer mask.Close()

	assert.Equal(t, 100, gocv.CountNonZero(mask.GetMat()))
}

func TestSegmentByColorRejectsGray(t *testing.T) {
	gray, err := safe.NewMat(4, 4, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer gray.Close()

	_, err = SegmentByColor(gray, params.HSV{}, params.HSV{Hue: 180, Saturation: 255, Value: 255})
	assert.Error(t, err)
}

func TestColorRangeStep(t *testing.T) {
	cfg := params.DefaultGlobuleConfig()
	step := NewColorRangeStep(cfg.LowerBound, cfg.UpperBound)
	assert.Equal(t, "hsv_segmentation", step.Name())

	mask, err := step.Apply(context.Background(), newSlide(t))
	require.NoError(t, err)
	defer mask.Close()
	assert.Equal(t, 100, gocv.CountNonZero(mask.GetMat()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = step.Apply(ctx, newSlide(t))
	assert.ErrorIs(t, err, context.Canceled)
}
