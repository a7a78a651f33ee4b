package geometry

import (
	"fmt"
	"image"
	"image/color"

	"globule-detector/internal/opencv/conversion"
	"globule-detector/internal/opencv/memory"
	"globule-detector/internal/opencv/safe"

	"gocv.io/x/gocv"
)

var fill = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Rasterizer paints polygons back into a mask so that Trace of the result
// reproduces them exactly. Drawing happens on a 2x canvas where corner
// (x, y) lands on (2x-1, 2y-1); nearest-neighbour downsampling then reads
// every pixel at its centre.
type Rasterizer struct {
	mem *memory.Manager
}

func NewRasterizer(mem *memory.Manager) *Rasterizer {
	if mem == nil {
		mem = memory.NewManager(nil)
	}
	return &Rasterizer{mem: mem}
}

// Draw fills polygons into mask with 255, keeping existing foreground.
func (r *Rasterizer) Draw(mask *safe.Mat, polygons []Polygon) error {
	if err := safe.ValidateMask(mask, "polygon rasterization"); err != nil {
		return err
	}
	if len(polygons) == 0 {
		return nil
	}

	canvas, err := r.mem.GetMat(mask.Rows()*2, mask.Cols()*2, gocv.MatTypeCV8UC1)
	if err != nil {
		return fmt.Errorf("2x canvas allocation failed: %w", err)
	}
	defer r.mem.ReleaseMat(canvas)

	if err := conversion.ResizeInto(mask, canvas, gocv.InterpolationNearestNeighbor); err != nil {
		return err
	}

	canvasMat := canvas.GetMat()
	for _, p := range polygons {
		if len(p) < 3 {
			continue
		}
		// one call per polygon; fillPoly applies even-odd across a batch
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{upscale(p)})
		gocv.FillPoly(&canvasMat, pv, fill)
		pv.Close()
	}

	return conversion.ResizeInto(canvas, mask, gocv.InterpolationNearestNeighbor)
}

func upscale(p Polygon) []image.Point {
	out := make([]image.Point, len(p))
	for i, pt := range p {
		out[i] = image.Pt(2*pt.X-1, 2*pt.Y-1)
	}
	return out
}
