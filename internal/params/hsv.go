package params

import "fmt"

// Inclusive channel limits. Hue follows OpenCV's 8-bit convention (0-179)
// but 180 is accepted as an upper bound so that "all hues" can be written.
const (
	MaxHue        = 180
	MaxSaturation = 255
	MaxValue      = 255
)

// HSV is a pixel value in OpenCV's 8-bit HSV space.
type HSV struct {
	Hue        int `yaml:"hue" json:"hue"`
	Saturation int `yaml:"saturation" json:"saturation"`
	Value      int `yaml:"value" json:"value"`
}

func (h HSV) String() string {
	return fmt.Sprintf("(%d, %d, %d)", h.Hue, h.Saturation, h.Value)
}

func (h HSV) validate(name string) []error {
	var errs []error
	if h.Hue < 0 || h.Hue > MaxHue {
		errs = append(errs, NewValidationError(name+".hue", h.Hue,
			fmt.Sprintf("not within the required range [0, %d]", MaxHue)))
	}
	if h.Saturation < 0 || h.Saturation > MaxSaturation {
		errs = append(errs, NewValidationError(name+".saturation", h.Saturation,
			fmt.Sprintf("not within the required range [0, %d]", MaxSaturation)))
	}
	if h.Value < 0 || h.Value > MaxValue {
		errs = append(errs, NewValidationError(name+".value", h.Value,
			fmt.Sprintf("not within the required range [0, %d]", MaxValue)))
	}
	return errs
}

func validateRange(prefix string, lower, upper HSV) []error {
	errs := append(lower.validate(prefix+"lower_bound"), upper.validate(prefix+"upper_bound")...)
	if len(errs) > 0 {
		return errs
	}

	if lower.Hue > upper.Hue || lower.Saturation > upper.Saturation || lower.Value > upper.Value {
		errs = append(errs, NewValidationError(prefix+"lower_bound", lower,
			"must not exceed upper bound "+upper.String()))
	}
	return errs
}
