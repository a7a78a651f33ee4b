package detector

import (
	"errors"
	"fmt"

	"globule-detector/internal/classify"
	"globule-detector/internal/geometry"
	"globule-detector/internal/logger"
	"globule-detector/internal/opencv/memory"
	"globule-detector/internal/opencv/safe"
	"globule-detector/internal/params"
	"globule-detector/internal/separation"
	"globule-detector/internal/timing"
)

const component = "GlobuleDetector"

// Stage names recorded by the timing tracker.
const (
	StageExtract    = "extract"
	StageClassify   = "classify"
	StageSeparate   = "separate"
	StageReclassify = "reclassify"
)

// Stats counts polygons through both classification passes.
type Stats struct {
	Contours             int `json:"contours" yaml:"contours"`
	FirstPassIsolated    int `json:"first_pass_isolated" yaml:"first_pass_isolated"`
	FirstPassOverlapping int `json:"first_pass_overlapping" yaml:"first_pass_overlapping"`
	FirstPassRejected    int `json:"first_pass_rejected" yaml:"first_pass_rejected"`
	SeparatedPieces      int `json:"separated_pieces" yaml:"separated_pieces"`
	SecondPassIsolated   int `json:"second_pass_isolated" yaml:"second_pass_isolated"`
	SecondPassDiscarded  int `json:"second_pass_discarded" yaml:"second_pass_discarded"`
}

type Result struct {
	// Globules are in the mask's pixel coordinates.
	Globules []geometry.Polygon
	Stats    Stats
}

// Detector runs the globule pipeline on one tile mask at a time. A single
// Detector may serve concurrent calls for distinct masks.
type Detector struct {
	logger     logger.Logger
	mem        *memory.Manager
	classifier *classify.Classifier
	timings    *timing.Tracker
}

func NewDetector(log logger.Logger, mem *memory.Manager) *Detector {
	log = logger.OrNoOp(log)
	if mem == nil {
		mem = memory.NewManager(log)
	}
	return &Detector{
		logger:     log,
		mem:        mem,
		classifier: classify.NewClassifier(log),
		timings:    timing.NewTracker(),
	}
}

func (d *Detector) Timings() *timing.Tracker {
	return d.timings
}

func (d *Detector) MemoryManager() *memory.Manager {
	return d.mem
}

// DetectGlobules returns the accepted globules of mask.
func (d *Detector) DetectGlobules(mask *safe.Mat, p *params.GlobuleParameters) ([]geometry.Polygon, error) {
	res, err := d.Detect(mask, p)
	if err != nil {
		return nil, err
	}
	return res.Globules, nil
}

// Detect classifies every contour of mask, separates the overlapping ones
// once and reclassifies the pieces. Accepted globules are the isolated
// polygons of both passes; pieces that are still overlapping are dropped
// rather than split again. mask is not modified.
func (d *Detector) Detect(mask *safe.Mat, p *params.GlobuleParameters) (*Result, error) {
	if p == nil {
		return nil, errors.New("globule parameters are required")
	}
	if err := safe.ValidateMask(mask, "globule detection"); err != nil {
		return nil, fmt.Errorf("input validation failed: %w", err)
	}

	stop := d.timings.Start(StageExtract)
	contours, err := geometry.ExtractContours(mask)
	stop()
	if err != nil {
		return nil, fmt.Errorf("contour extraction failed: %w", err)
	}

	res := &Result{}
	res.Stats.Contours = len(contours)

	stop = d.timings.Start(StageClassify)
	first := d.classifier.ClassifyAll(contours, p)
	stop()

	res.Stats.FirstPassIsolated = len(first.Isolated)
	res.Stats.FirstPassOverlapping = len(first.Overlapping)
	res.Stats.FirstPassRejected = first.Rejected
	res.Globules = append(res.Globules, first.Isolated...)

	if len(first.Overlapping) > 0 {
		separator := separation.NewSeparator(d.logger, d.mem, p.WatershedMarkerRatio())

		stop = d.timings.Start(StageSeparate)
		pieces, err := separator.Separate(first.Overlapping, mask.Rows(), mask.Cols())
		stop()
		if err != nil {
			return nil, fmt.Errorf("cluster separation failed: %w", err)
		}

		stop = d.timings.Start(StageReclassify)
		second := d.classifier.ClassifyAll(pieces, p)
		stop()

		res.Stats.SeparatedPieces = len(pieces)
		res.Stats.SecondPassIsolated = len(second.Isolated)
		res.Stats.SecondPassDiscarded = len(second.Overlapping) + second.Rejected
		res.Globules = append(res.Globules, second.Isolated...)
	}

	d.logger.Info(component, "globules detected", map[string]interface{}{
		"contours":               res.Stats.Contours,
		"first_pass_isolated":    res.Stats.FirstPassIsolated,
		"first_pass_overlapping": res.Stats.FirstPassOverlapping,
		"first_pass_rejected":    res.Stats.FirstPassRejected,
		"separated_pieces":       res.Stats.SeparatedPieces,
		"second_pass_isolated":   res.Stats.SecondPassIsolated,
		"globules":               len(res.Globules),
	})

	return res, nil
}
