package geometry

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"globule-detector/internal/opencv/memory"
	"globule-detector/internal/opencv/safe"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// grid builds a binary image from rows of '#' (foreground) and '.'.
func grid(rows ...string) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, len(rows[0]), len(rows)))
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestTraceSinglePixel(t *testing.T) {
	got := Trace(grid(
		"...",
		".#.",
		"...",
	))

	want := []Polygon{{{1, 1}, {2, 1}, {2, 2}, {1, 2}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Trace() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1.0, got[0].Area())
}

func TestTraceRectangleKeepsOnlyCorners(t *testing.T) {
	got := Trace(grid(
		"......",
		".####.",
		".####.",
		".####.",
		"......",
	))

	require.Len(t, got, 1)
	want := Polygon{{1, 1}, {5, 1}, {5, 4}, {1, 4}}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("rectangle mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 12.0, got[0].Area())
	assert.Equal(t, image.Rect(1, 1, 5, 4), got[0].Bounds())
}

func TestTraceConcaveShape(t *testing.T) {
	got := Trace(grid(
		"#..",
		"#..",
		"###",
	))

	require.Len(t, got, 1)
	want := Polygon{{0, 0}, {1, 0}, {1, 2}, {3, 2}, {3, 3}, {0, 3}}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("L shape mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5.0, got[0].Area())
}

func TestTraceSplitsHoles(t *testing.T) {
	got := Trace(grid(
		"#####",
		"#####",
		"##.##",
		"#####",
		"#####",
	))

	require.Len(t, got, 2)
	assert.Equal(t, 25.0, got[0].Area())
	assert.Equal(t, 1.0, got[1].Area())
	assert.Equal(t, image.Rect(2, 2, 3, 3), got[1].Bounds())

	for _, p := range got {
		assert.Positive(t, p.SignedArea(), "every ring shares one orientation")
	}
}

func TestTraceOuterDropsHoles(t *testing.T) {
	img := grid(
		"#####.",
		"#.#.#.",
		"#####.",
		"......",
		"...##.",
	)

	assert.Len(t, Trace(img), 4)

	got := TraceOuter(img)
	require.Len(t, got, 2)
	assert.Equal(t, 15.0, got[0].Area())
	assert.Equal(t, 2.0, got[1].Area())
}

func TestTraceDiagonalPixelsAreSeparate(t *testing.T) {
	got := Trace(grid(
		"#.",
		".#",
	))

	want := []Polygon{
		{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		{{1, 1}, {2, 1}, {2, 2}, {1, 2}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diagonal mismatch (-want +got):\n%s", diff)
	}
}

func TestTraceRasterOrder(t *testing.T) {
	img := grid(
		"......##",
		"......##",
		"##......",
		"##....#.",
	)

	first := Trace(img)
	require.Len(t, first, 3)
	assert.Equal(t, image.Pt(6, 0), first[0][0])
	assert.Equal(t, image.Pt(0, 2), first[1][0])
	assert.Equal(t, image.Pt(6, 3), first[2][0])

	if diff := cmp.Diff(first, Trace(img)); diff != "" {
		t.Errorf("Trace is not deterministic:\n%s", diff)
	}
}

func TestTraceEmpty(t *testing.T) {
	assert.Empty(t, Trace(grid("....", "....")))
	assert.Nil(t, Trace(nil))
}

func TestTraceSubImageUsesParentCoordinates(t *testing.T) {
	img := grid(
		"##....",
		"##..##",
		"....##",
	)

	sub := img.SubImage(image.Rect(3, 0, 6, 3)).(*image.Gray)
	got := Trace(sub)

	want := []Polygon{{{4, 1}, {6, 1}, {6, 3}, {4, 3}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sub-image mismatch (-want +got):\n%s", diff)
	}
}

func TestPolygonHelpers(t *testing.T) {
	p := Polygon{{0, 0}, {3, 0}, {3, 2}, {0, 2}}

	moved := p.Translate(10, -1)
	assert.Equal(t, Polygon{{10, -1}, {13, -1}, {13, 1}, {10, 1}}, moved)
	assert.Equal(t, image.Pt(0, 0), p[0], "Translate must not modify the receiver")

	c := p.Clone()
	c[0] = image.Pt(9, 9)
	assert.Equal(t, image.Pt(0, 0), p[0])

	assert.Equal(t, 6.0, p.Area())
	assert.Equal(t, image.Rectangle{}, Polygon(nil).Bounds())
	assert.Zero(t, Polygon{{0, 0}, {1, 1}}.Area())

	pv := p.PointVector()
	defer pv.Close()
	assert.Equal(t, 4, pv.Size())
}

func newMask(t *testing.T, rows, cols int) *safe.Mat {
	t.Helper()
	m, err := safe.NewMat(rows, cols, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestExtractContoursFromMat(t *testing.T) {
	m := newMask(t, 10, 12)
	mat := m.GetMat()
	gocv.Rectangle(&mat, image.Rect(2, 3, 7, 8), fill, -1)

	got, err := ExtractContours(m)
	require.NoError(t, err)

	want := []Polygon{{{2, 3}, {7, 3}, {7, 8}, {2, 8}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractContours() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractContoursRejectsColor(t *testing.T) {
	m, err := safe.NewMat(3, 3, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	defer m.Close()

	_, err = ExtractContours(m)
	assert.Error(t, err)
}

func TestRasterizeRoundTrip(t *testing.T) {
	shapes := map[string]func(*gocv.Mat){
		"circle": func(m *gocv.Mat) {
			gocv.Circle(m, image.Pt(20, 18), 11, fill, -1)
		},
		"touching circles": func(m *gocv.Mat) {
			gocv.Circle(m, image.Pt(12, 12), 8, fill, -1)
			gocv.Circle(m, image.Pt(26, 14), 8, fill, -1)
		},
		"edge blob": func(m *gocv.Mat) {
			gocv.Circle(m, image.Pt(0, 0), 9, fill, -1)
			gocv.Rectangle(m, image.Rect(30, 25, 40, 36), fill, -1)
		},
		"staircase": func(m *gocv.Mat) {
			for i := 0; i < 8; i++ {
				gocv.Rectangle(m, image.Rect(5+2*i, 5+3*i, 9+2*i, 8+3*i), fill, -1)
			}
		},
	}

	for name, draw := range shapes {
		t.Run(name, func(t *testing.T) {
			src := newMask(t, 36, 40)
			srcMat := src.GetMat()
			draw(&srcMat)

			polygons, err := ExtractContours(src)
			require.NoError(t, err)
			require.NotEmpty(t, polygons)

			mem := memory.NewManager(nil)
			dst := newMask(t, 36, 40)
			require.NoError(t, NewRasterizer(mem).Draw(dst, polygons))

			want, err := src.Bytes()
			require.NoError(t, err)
			got, err := dst.Bytes()
			require.NoError(t, err)
			assert.True(t, cmp.Equal(want, got), "rasterized mask differs from source")

			var pixels float64
			for _, p := range polygons {
				pixels += p.Area()
			}
			assert.Equal(t, float64(gocv.CountNonZero(srcMat)), pixels)
			assert.Zero(t, mem.GetStats().ActiveMats)
		})
	}
}

func TestRasterizerKeepsExistingForeground(t *testing.T) {
	m := newMask(t, 8, 8)
	require.NoError(t, m.SetUCharAt(0, 7, 255))

	square := Polygon{{2, 2}, {5, 2}, {5, 5}, {2, 5}}
	require.NoError(t, NewRasterizer(nil).Draw(m, []Polygon{square}))

	got, err := m.Bytes()
	require.NoError(t, err)
	want := strings.Join([]string{
		".......#",
		"........",
		"..###...",
		"..###...",
		"..###...",
		"........",
		"........",
		"........",
	}, "")
	for i, c := range want {
		assert.Equal(t, c == '#', got[i] == 255, "pixel %d", i)
	}
}

func TestRasterizerOverlappingPolygonsUnion(t *testing.T) {
	m := newMask(t, 10, 10)
	a := Polygon{{1, 1}, {6, 1}, {6, 6}, {1, 6}}
	b := Polygon{{4, 4}, {9, 4}, {9, 9}, {4, 9}}

	require.NoError(t, NewRasterizer(nil).Draw(m, []Polygon{a, b}))
	assert.Equal(t, 25+25-4, gocv.CountNonZero(m.GetMat()))
}
