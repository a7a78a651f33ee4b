// Package geometry converts between binary masks and closed integer polygons.
//
// Polygon vertices sit on pixel corners: the pixel at (x, y) spans the unit
// square from (x, y) to (x+1, y+1). A polygon encloses exactly the pixels
// whose squares lie inside it, so its shoelace area equals its pixel count.
package geometry

import (
	"image"

	"gocv.io/x/gocv"
)

// Polygon is a closed ring of pixel-corner vertices. The closing edge from
// the last vertex back to the first is implicit.
type Polygon []image.Point

// SignedArea is positive for rings that run clockwise on screen (y down).
func (p Polygon) SignedArea() float64 {
	if len(p) < 3 {
		return 0
	}

	var sum int64
	for i := range p {
		a := p[i]
		b := p[(i+1)%len(p)]
		sum += int64(a.X)*int64(b.Y) - int64(b.X)*int64(a.Y)
	}
	return float64(sum) / 2
}

func (p Polygon) Area() float64 {
	a := p.SignedArea()
	if a < 0 {
		return -a
	}
	return a
}

// Bounds returns the smallest rectangle containing every vertex. For a
// polygon produced by ExtractContours this is the bounding box of its pixels.
func (p Polygon) Bounds() image.Rectangle {
	if len(p) == 0 {
		return image.Rectangle{}
	}

	r := image.Rectangle{Min: p[0], Max: p[0]}
	for _, pt := range p[1:] {
		r.Min.X = min(r.Min.X, pt.X)
		r.Min.Y = min(r.Min.Y, pt.Y)
		r.Max.X = max(r.Max.X, pt.X)
		r.Max.Y = max(r.Max.Y, pt.Y)
	}
	return r
}

// Translate returns a copy shifted by (dx, dy).
func (p Polygon) Translate(dx, dy int) Polygon {
	out := make(Polygon, len(p))
	offset := image.Pt(dx, dy)
	for i, pt := range p {
		out[i] = pt.Add(offset)
	}
	return out
}

func (p Polygon) Clone() Polygon {
	return append(Polygon(nil), p...)
}

// PointVector copies the vertices into a gocv.PointVector. The caller closes it.
func (p Polygon) PointVector() gocv.PointVector {
	return gocv.NewPointVectorFromPoints(p)
}

func (p Polygon) reverse() {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}
