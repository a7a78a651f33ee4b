package detector

import (
	"context"
	"fmt"

	"globule-detector/internal/geometry"
	"globule-detector/internal/opencv/safe"
	"globule-detector/internal/params"
	"globule-detector/internal/processing/chain"
	"globule-detector/internal/processing/mask"
	"globule-detector/internal/processing/segmentation"
)

// PrepareGlobuleMask thresholds a BGR(A) tile in HSV, optionally opens the
// result, and fills every hole. The caller owns the returned mask.
func (d *Detector) PrepareGlobuleMask(ctx context.Context, bgr *safe.Mat, p *params.GlobuleParameters) (*safe.Mat, error) {
	if p == nil {
		return nil, fmt.Errorf("globule parameters are required")
	}

	pc := chain.NewProcessingChain(d.logger,
		segmentation.NewColorRangeStep(p.LowerBound(), p.UpperBound()),
	)
	if k := p.CleanupKernel(); k > 0 {
		pc.AddStep(mask.NewOpenStep(k))
	}
	pc.AddStep(mask.NewFillHolesStep(mask.HoleOptions{}, d.logger))

	out, err := pc.Execute(ctx, bgr)
	if err != nil {
		return nil, fmt.Errorf("globule mask preparation failed: %w", err)
	}
	return out, nil
}

// DetectTissue outlines tissue in a BGR(A) image. Background is found by
// HSV range; tissue islands smaller than the minimum area are folded into
// the background and holes inside tissue are filled.
func (d *Detector) DetectTissue(ctx context.Context, bgr *safe.Mat, tp *params.TissueParameters) ([]geometry.Polygon, error) {
	if tp == nil {
		return nil, fmt.Errorf("tissue parameters are required")
	}

	pc := chain.NewProcessingChain(d.logger,
		segmentation.NewColorRangeStep(tp.LowerBound(), tp.UpperBound()),
	)
	// background touching the border encloses every tissue island, so the
	// islands are its holes
	if tp.MinTissueArea() > 0 {
		pc.AddStep(mask.NewAddBorderStep(255))
		pc.AddStep(mask.NewFillHolesStep(mask.HoleOptions{
			MaxHoleArea: tp.MinTissueArea(),
			PixelScale:  tp.PixelSize(),
		}, d.logger))
		pc.AddStep(mask.RemoveBorderStep{})
	}
	pc.AddStep(mask.InvertStep{})
	pc.AddStep(mask.NewFillHolesStep(mask.HoleOptions{}, d.logger))

	tissue, err := pc.Execute(ctx, bgr)
	if err != nil {
		return nil, fmt.Errorf("tissue mask preparation failed: %w", err)
	}
	defer tissue.Close()

	polygons, err := geometry.ExtractContours(tissue)
	if err != nil {
		return nil, fmt.Errorf("tissue contour extraction failed: %w", err)
	}

	d.logger.Info(component, "tissue detected", map[string]interface{}{
		"regions": len(polygons),
	})
	return polygons, nil
}
