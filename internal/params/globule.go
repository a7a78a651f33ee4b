package params

import (
	"errors"
	"math"
)

// GlobuleParameters is a validated, read-only parameter set. It is safe to
// share between goroutines.
type GlobuleParameters struct {
	cfg GlobuleConfig
}

// NewGlobuleParameters validates cfg and freezes a copy of it.
func NewGlobuleParameters(cfg GlobuleConfig) (*GlobuleParameters, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &GlobuleParameters{cfg: cfg}, nil
}

func DefaultGlobuleParameters() *GlobuleParameters {
	return &GlobuleParameters{cfg: DefaultGlobuleConfig()}
}

func (c GlobuleConfig) Validate() error {
	errs := validateRange("", c.LowerBound, c.UpperBound)

	finite := map[string]float64{
		"min_isolated_elongation":    c.MinIsolatedElongation,
		"min_overlapping_elongation": c.MinOverlappingElongation,
		"min_isolated_solidity":      c.MinIsolatedSolidity,
		"min_overlapping_solidity":   c.MinOverlappingSolidity,
	}
	for _, name := range []string{
		"min_isolated_elongation",
		"min_overlapping_elongation",
		"min_isolated_solidity",
		"min_overlapping_solidity",
	} {
		if v := finite[name]; math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, NewValidationError(name, v, "must be a finite number"))
		}
	}

	if !(c.PixelSize > 0) || math.IsInf(c.PixelSize, 0) {
		errs = append(errs, NewValidationError("pixel_size", c.PixelSize, "must be a positive finite number"))
	}

	if !(c.MinDiameter >= 0) {
		errs = append(errs, NewValidationError("min_diameter", c.MinDiameter, "must not be negative"))
	}
	if !(c.MaxDiameter > c.MinDiameter) {
		errs = append(errs, NewValidationError("max_diameter", c.MaxDiameter, "must be greater than min_diameter"))
	}

	if c.TileWidth < 0 {
		errs = append(errs, NewValidationError("tile_width", c.TileWidth, "is less than 0"))
	}
	if c.TileHeight < 0 {
		errs = append(errs, NewValidationError("tile_height", c.TileHeight, "is less than 0"))
	}
	if c.Padding < 0 {
		errs = append(errs, NewValidationError("padding", c.Padding, "is less than 0"))
	}

	if !(c.BoundaryThreshold >= 0 && c.BoundaryThreshold <= 1) {
		errs = append(errs, NewValidationError("boundary_threshold", c.BoundaryThreshold,
			"not within the required range [0, 1]"))
	}

	if c.CleanupKernel != 0 && (c.CleanupKernel < 3 || c.CleanupKernel%2 == 0) {
		errs = append(errs, NewValidationError("cleanup_kernel", c.CleanupKernel, "must be 0 or an odd number >= 3"))
	}

	if !(c.WatershedMarkerRatio > 0 && c.WatershedMarkerRatio < 1) {
		errs = append(errs, NewValidationError("watershed_marker_ratio", c.WatershedMarkerRatio,
			"not within the required range (0, 1)"))
	}

	return errors.Join(errs...)
}

func (p *GlobuleParameters) Config() GlobuleConfig          { return p.cfg }
func (p *GlobuleParameters) LowerBound() HSV                { return p.cfg.LowerBound }
func (p *GlobuleParameters) UpperBound() HSV                { return p.cfg.UpperBound }
func (p *GlobuleParameters) PixelSize() float64             { return p.cfg.PixelSize }
func (p *GlobuleParameters) MinIsolatedElongation() float64 { return p.cfg.MinIsolatedElongation }
func (p *GlobuleParameters) MinIsolatedSolidity() float64   { return p.cfg.MinIsolatedSolidity }
func (p *GlobuleParameters) MinDiameter() float64           { return p.cfg.MinDiameter }
func (p *GlobuleParameters) MaxDiameter() float64           { return p.cfg.MaxDiameter }
func (p *GlobuleParameters) TileWidth() int                 { return p.cfg.TileWidth }
func (p *GlobuleParameters) TileHeight() int                { return p.cfg.TileHeight }
func (p *GlobuleParameters) Padding() int                   { return p.cfg.Padding }
func (p *GlobuleParameters) BoundaryThreshold() float64     { return p.cfg.BoundaryThreshold }
func (p *GlobuleParameters) WatershedMarkerRatio() float64  { return p.cfg.WatershedMarkerRatio }
func (p *GlobuleParameters) CleanupKernel() int             { return p.cfg.CleanupKernel }

func (p *GlobuleParameters) MinOverlappingElongation() float64 {
	return p.cfg.MinOverlappingElongation
}

func (p *GlobuleParameters) MinOverlappingSolidity() float64 {
	return p.cfg.MinOverlappingSolidity
}
