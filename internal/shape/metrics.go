package shape

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"

	"globule-detector/internal/geometry"
	"globule-detector/internal/logger"

	"gocv.io/x/gocv"
)

const component = "ShapeMetrics"

// Metrics are derived from one polygon and never cached.
type Metrics struct {
	Elongation float64
	Solidity   float64
	// Diameter is in the units of the scale passed to Measure.
	Diameter float64
}

// Analyzer computes shape metrics. Degenerate input yields 0 for the
// affected metric and a warning; no method panics or returns an error.
type Analyzer struct {
	logger logger.Logger
}

func NewAnalyzer(log logger.Logger) *Analyzer {
	return &Analyzer{logger: logger.OrNoOp(log)}
}

// Measure computes every metric for p. Diameter is scaled by pixelScale.
func (a *Analyzer) Measure(p geometry.Polygon, pixelScale float64) Metrics {
	return Metrics{
		Elongation: a.Elongation(p),
		Solidity:   a.Solidity(p),
		Diameter:   a.EquivalentDiameter(p, pixelScale),
	}
}

// Elongation is (x-y)/(x+y) with x = mu20+mu02 and
// y = sqrt(4*mu11² + (mu20-mu02)²), from the polygon's area moments.
// A disc scores 1 and a thin line approaches 0.
func (a *Analyzer) Elongation(p geometry.Polygon) (e float64) {
	defer a.guard("elongation", p, &e)

	if len(p) < 3 {
		a.degenerate("elongation", p, "too few points")
		return 0
	}

	contour, data, err := contourMat(p)
	if err != nil {
		a.degenerate("elongation", p, err.Error())
		return 0
	}
	defer contour.Close()

	m := gocv.Moments(contour, false)
	runtime.KeepAlive(data)

	mu20, mu02, mu11 := m["mu20"], m["mu02"], m["mu11"]
	x := mu20 + mu02
	y := math.Sqrt(4*mu11*mu11 + (mu20-mu02)*(mu20-mu02))

	if x+y == 0 || math.IsNaN(x+y) {
		a.degenerate("elongation", p, "zero second moments")
		return 0
	}
	return (x - y) / (x + y)
}

// Solidity is area(p) / area(convexHull(p)).
func (a *Analyzer) Solidity(p geometry.Polygon) (s float64) {
	defer a.guard("solidity", p, &s)

	if len(p) < 3 {
		a.degenerate("solidity", p, "too few points")
		return 0
	}

	pv := p.PointVector()
	defer pv.Close()

	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(pv, &hull, false, true)
	if hull.Empty() {
		a.degenerate("solidity", p, "empty convex hull")
		return 0
	}

	hullPoints := gocv.NewPointVectorFromMat(hull)
	defer hullPoints.Close()

	hullArea := gocv.ContourArea(hullPoints)
	if hullArea <= 0 {
		a.degenerate("solidity", p, "zero-area convex hull")
		return 0
	}

	return gocv.ContourArea(pv) / hullArea
}

// EquivalentDiameter is the minimum enclosing circle's diameter times
// pixelScale. An empty polygon has diameter 0.
func (a *Analyzer) EquivalentDiameter(p geometry.Polygon, pixelScale float64) (d float64) {
	defer a.guard("diameter", p, &d)

	if len(p) == 0 {
		a.degenerate("diameter", p, "no points")
		return 0
	}

	pv := p.PointVector()
	defer pv.Close()

	_, _, radius := gocv.MinEnclosingCircle(pv)
	r := float64(radius)
	if math.IsNaN(r) || r < 0 {
		a.degenerate("diameter", p, "no enclosing circle")
		return 0
	}
	return 2 * r * pixelScale
}

func (a *Analyzer) degenerate(metric string, p geometry.Polygon, reason string) {
	a.logger.Warning(component, "degenerate polygon", map[string]interface{}{
		"metric": metric,
		"points": len(p),
		"reason": reason,
	})
}

func (a *Analyzer) guard(metric string, p geometry.Polygon, result *float64) {
	if r := recover(); r != nil {
		a.degenerate(metric, p, fmt.Sprint(r))
		*result = 0
	}
}

// contourMat packs p as an Nx1 CV_32SC2 Mat. The Mat borrows the returned
// buffer, which must stay reachable until the Mat is no longer read.
func contourMat(p geometry.Polygon) (gocv.Mat, []byte, error) {
	data := make([]byte, len(p)*8)
	for i, pt := range p {
		binary.LittleEndian.PutUint32(data[i*8:], uint32(int32(pt.X)))
		binary.LittleEndian.PutUint32(data[i*8+4:], uint32(int32(pt.Y)))
	}

	mat, err := gocv.NewMatFromBytes(len(p), 1, gocv.MatTypeCV32SC2, data)
	if err != nil {
		return gocv.Mat{}, nil, fmt.Errorf("contour Mat creation failed: %w", err)
	}
	return mat, data, nil
}
