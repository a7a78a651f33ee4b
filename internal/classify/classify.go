package classify

import (
	"globule-detector/internal/geometry"
	"globule-detector/internal/logger"
	"globule-detector/internal/params"
	"globule-detector/internal/shape"
)

const component = "GlobuleClassifier"

type Classification int

const (
	Rejected Classification = iota
	Isolated
	Overlapping
)

func (c Classification) String() string {
	switch c {
	case Isolated:
		return "isolated"
	case Overlapping:
		return "overlapping"
	default:
		return "rejected"
	}
}

// Classify applies the decision rule in order, first match wins:
// isolated needs all strict floors and a bounded diameter, overlapping
// needs the looser floors and only the lower diameter bound.
func Classify(m shape.Metrics, p *params.GlobuleParameters) Classification {
	if m.Elongation > p.MinIsolatedElongation() &&
		m.Solidity > p.MinIsolatedSolidity() &&
		m.Diameter > p.MinDiameter() && m.Diameter < p.MaxDiameter() {
		return Isolated
	}

	if m.Elongation > p.MinOverlappingElongation() &&
		m.Solidity > p.MinOverlappingSolidity() &&
		m.Diameter > p.MinDiameter() {
		return Overlapping
	}

	return Rejected
}

// Result partitions a batch. Rejected polygons are counted and dropped.
type Result struct {
	Isolated    []geometry.Polygon
	Overlapping []geometry.Polygon
	Rejected    int
}

func (r Result) Total() int {
	return len(r.Isolated) + len(r.Overlapping) + r.Rejected
}

type Classifier struct {
	analyzer *shape.Analyzer
	logger   logger.Logger
}

func NewClassifier(log logger.Logger) *Classifier {
	log = logger.OrNoOp(log)
	return &Classifier{
		analyzer: shape.NewAnalyzer(log),
		logger:   log,
	}
}

// ClassifyAll measures and classifies each polygon independently. A polygon
// whose metrics could not be computed scores 0 and is normally rejected;
// it never stops the rest of the batch.
func (c *Classifier) ClassifyAll(polygons []geometry.Polygon, p *params.GlobuleParameters) Result {
	var res Result

	for i, poly := range polygons {
		m := c.analyzer.Measure(poly, p.PixelSize())

		class := Classify(m, p)
		switch class {
		case Isolated:
			res.Isolated = append(res.Isolated, poly)
		case Overlapping:
			res.Overlapping = append(res.Overlapping, poly)
		default:
			res.Rejected++
		}

		c.logger.Debug(component, "polygon classified", map[string]interface{}{
			"index":      i,
			"class":      class.String(),
			"elongation": m.Elongation,
			"solidity":   m.Solidity,
			"diameter":   m.Diameter,
		})
	}

	return res
}
