package params

import (
	"errors"
	"math"
)

type TissueParameters struct {
	cfg TissueConfig
}

func NewTissueParameters(cfg TissueConfig) (*TissueParameters, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TissueParameters{cfg: cfg}, nil
}

func (c TissueConfig) Validate() error {
	errs := validateRange("tissue.", c.LowerBound, c.UpperBound)

	if !(c.PixelSize > 0) || math.IsInf(c.PixelSize, 0) {
		errs = append(errs, NewValidationError("tissue.pixel_size", c.PixelSize, "must be a positive finite number"))
	}
	if !(c.MinTissueArea >= 0) || math.IsInf(c.MinTissueArea, 0) {
		errs = append(errs, NewValidationError("tissue.min_tissue_area", c.MinTissueArea, "must be a non-negative finite number"))
	}

	return errors.Join(errs...)
}

func (p *TissueParameters) LowerBound() HSV        { return p.cfg.LowerBound }
func (p *TissueParameters) UpperBound() HSV        { return p.cfg.UpperBound }
func (p *TissueParameters) PixelSize() float64     { return p.cfg.PixelSize }
func (p *TissueParameters) MinTissueArea() float64 { return p.cfg.MinTissueArea }
