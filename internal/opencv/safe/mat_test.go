package safe

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewMatIsZeroed(t *testing.T) {
	m, err := NewMat(3, 4, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer m.Close()

	data, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 12), data)
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 4, m.Cols())
	assert.Equal(t, 1, m.Channels())
}

func TestNewMatRejectsBadDimensions(t *testing.T) {
	for _, dims := range [][2]int{{0, 4}, {4, -1}, {maxDimension + 1, 1}} {
		_, err := NewMat(dims[0], dims[1], gocv.MatTypeCV8UC1)
		assert.Error(t, err, "rows=%d cols=%d", dims[0], dims[1])
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m, err := NewTaggedMat(2, 2, gocv.MatTypeCV8UC1, "probe")
	require.NoError(t, err)

	m.Close()
	m.Close()

	assert.False(t, m.IsValid())
	assert.True(t, m.Empty())
	assert.Zero(t, m.Rows())
	_, err = m.Clone()
	assert.Error(t, err)
	assert.Error(t, m.Zero())
}

func TestSetBytesAndGray(t *testing.T) {
	m, err := NewMat(2, 3, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.SetBytes([]byte{0, 1, 2, 3, 4, 5}))
	assert.Error(t, m.SetBytes([]byte{1, 2}))

	img, err := m.Gray()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.EqualValues(t, 5, img.GrayAt(2, 1).Y)
	assert.EqualValues(t, 3, img.GrayAt(0, 1).Y)

	v, err := m.GetUCharAt(0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestCloneIsIndependent(t *testing.T) {
	m, err := NewTaggedMat(2, 2, gocv.MatTypeCV8UC1, "src")
	require.NoError(t, err)
	defer m.Close()

	clone, err := m.Clone()
	require.NoError(t, err)
	defer clone.Close()

	require.NoError(t, m.SetUCharAt(1, 1, 9))
	v, err := clone.GetUCharAt(1, 1)
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.Equal(t, "src_clone", clone.Tag())
	assert.NotEqual(t, m.ID(), clone.ID())
}

func TestBytesRequiresSingleChannel(t *testing.T) {
	m, err := NewMat(2, 2, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Bytes()
	assert.Error(t, err)
	_, err = m.Gray()
	assert.Error(t, err)
}

func TestValidators(t *testing.T) {
	mask, err := NewMat(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer mask.Close()
	bgr, err := NewMat(2, 2, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	defer bgr.Close()

	assert.Error(t, ValidateMatForOperation(nil, "test"))
	assert.NoError(t, ValidateMask(mask, "test"))
	assert.Error(t, ValidateMask(bgr, "test"))
	assert.NoError(t, ValidateColorImage(bgr, "test"))
	assert.Error(t, ValidateColorImage(mask, "test"))
	assert.Error(t, ValidateCoordinates(2, 0, 2, 2, "test"))
	assert.NoError(t, ValidateCoordinates(1, 1, 2, 2, "test"))
}
