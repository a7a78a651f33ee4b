package geometry

import (
	"fmt"
	"image"

	"globule-detector/internal/opencv/safe"
)

// Headings double as pixel side indices: a boundary edge walked with
// heading h is side h of the pixel on its right.
const (
	east = iota
	south
	west
	north
)

var step = [4]image.Point{
	east:  {1, 0},
	south: {0, 1},
	west:  {-1, 0},
	north: {0, -1},
}

// ExtractContours returns one polygon per boundary of mask, outer boundaries
// and holes alike, in raster order of their first edge. Foreground pixels
// (non-zero) are 4-connected: pixels touching only at a corner belong to
// different polygons.
func ExtractContours(mask *safe.Mat) ([]Polygon, error) {
	if err := safe.ValidateMask(mask, "contour extraction"); err != nil {
		return nil, err
	}

	img, err := mask.Gray()
	if err != nil {
		return nil, fmt.Errorf("mask read failed: %w", err)
	}
	return Trace(img), nil
}

// Trace extracts contours from img. Coordinates are in img's own space, so
// a SubImage yields polygons positioned in its parent. Pixels outside
// img.Bounds() count as background.
func Trace(img *image.Gray) []Polygon {
	return trace(img, true)
}

// TraceOuter is Trace without hole rings.
func TraceOuter(img *image.Gray) []Polygon {
	return trace(img, false)
}

func trace(img *image.Gray, withHoles bool) []Polygon {
	t := newTracer(img)
	if t == nil {
		return nil
	}

	var polygons []Polygon
	for y := t.rect.Min.Y; y < t.rect.Max.Y; y++ {
		for x := t.rect.Min.X; x < t.rect.Max.X; x++ {
			if !t.inside(x, y) {
				continue
			}
			for side := east; side <= north; side++ {
				if t.visited[t.edgeIndex(x, y, side)] || !t.isBoundary(x, y, side) {
					continue
				}
				poly, hole := t.follow(x, y, side)
				if len(poly) > 0 && (withHoles || !hole) {
					polygons = append(polygons, poly)
				}
			}
		}
	}
	return polygons
}

type tracer struct {
	img     *image.Gray
	rect    image.Rectangle
	visited []bool
}

func newTracer(img *image.Gray) *tracer {
	if img == nil {
		return nil
	}
	rect := img.Bounds()
	if rect.Empty() {
		return nil
	}
	return &tracer{
		img:     img,
		rect:    rect,
		visited: make([]bool, rect.Dx()*rect.Dy()*4),
	}
}

func (t *tracer) inside(x, y int) bool {
	if x < t.rect.Min.X || y < t.rect.Min.Y || x >= t.rect.Max.X || y >= t.rect.Max.Y {
		return false
	}
	return t.img.Pix[t.img.PixOffset(x, y)] != 0
}

func (t *tracer) edgeIndex(x, y, side int) int {
	return ((y-t.rect.Min.Y)*t.rect.Dx()+(x-t.rect.Min.X))*4 + side
}

// isBoundary reports whether side of foreground pixel (x, y) faces background.
func (t *tracer) isBoundary(x, y, side int) bool {
	if !t.inside(x, y) {
		return false
	}
	var across image.Point
	switch side {
	case east: // top
		across = image.Pt(x, y-1)
	case south: // right
		across = image.Pt(x+1, y)
	case west: // bottom
		across = image.Pt(x, y+1)
	default: // left
		across = image.Pt(x-1, y)
	}
	return !t.inside(across.X, across.Y)
}

// edgePixel returns the pixel to the right of an edge leaving vertex v
// with heading h.
func edgePixel(v image.Point, h int) image.Point {
	switch h {
	case east:
		return v
	case south:
		return image.Pt(v.X-1, v.Y)
	case west:
		return image.Pt(v.X-1, v.Y-1)
	default:
		return image.Pt(v.X, v.Y-1)
	}
}

// startVertex is the inverse of edgePixel.
func startVertex(x, y, side int) image.Point {
	switch side {
	case east:
		return image.Pt(x, y)
	case south:
		return image.Pt(x+1, y)
	case west:
		return image.Pt(x+1, y+1)
	default:
		return image.Pt(x, y+1)
	}
}

// follow walks one closed boundary starting at side of pixel (x, y),
// keeping foreground on the right and preferring right turns. Only corner
// vertices are kept. Hole rings come out counter-clockwise and are reversed.
func (t *tracer) follow(x, y, side int) (poly Polygon, hole bool) {
	start := startVertex(x, y, side)
	v, h := start, side

	prev := -1
	maxSteps := len(t.visited) + 1

	for steps := 0; steps < maxSteps; steps++ {
		p := edgePixel(v, h)
		t.visited[t.edgeIndex(p.X, p.Y, h)] = true

		if h != prev {
			poly = append(poly, v)
		}
		prev = h
		v = v.Add(step[h])

		next := -1
		for _, c := range [3]int{(h + 1) % 4, h, (h + 3) % 4} {
			q := edgePixel(v, c)
			if t.isBoundary(q.X, q.Y, c) {
				next = c
				break
			}
		}
		if next < 0 {
			return nil, false
		}
		h = next

		if v == start && h == side {
			break
		}
	}

	// the start vertex is not a corner when the walk closes straight into it
	if len(poly) > 1 && prev == side {
		poly = poly[1:]
	}
	if len(poly) < 4 {
		return nil, false
	}
	if poly.SignedArea() < 0 {
		poly.reverse()
		hole = true
	}
	return poly, hole
}
