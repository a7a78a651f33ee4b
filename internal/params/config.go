package params

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const maxConfigSize = 1 * 1024 * 1024

// GlobuleConfig is the editable form of GlobuleParameters.
type GlobuleConfig struct {
	LowerBound HSV `yaml:"lower_bound"`
	UpperBound HSV `yaml:"upper_bound"`

	// PixelSize is the mask resolution in microns per pixel.
	PixelSize float64 `yaml:"pixel_size"`

	MinIsolatedElongation    float64 `yaml:"min_isolated_elongation"`
	MinOverlappingElongation float64 `yaml:"min_overlapping_elongation"`
	MinIsolatedSolidity      float64 `yaml:"min_isolated_solidity"`
	MinOverlappingSolidity   float64 `yaml:"min_overlapping_solidity"`

	// Diameters are in microns.
	MinDiameter float64 `yaml:"min_diameter"`
	MaxDiameter float64 `yaml:"max_diameter"`

	TileWidth         int     `yaml:"tile_width"`
	TileHeight        int     `yaml:"tile_height"`
	Padding           int     `yaml:"padding"`
	BoundaryThreshold float64 `yaml:"boundary_threshold"`

	// CleanupKernel is the size of the opening applied to the thresholded
	// mask before holes are filled. 0 disables it.
	CleanupKernel int `yaml:"cleanup_kernel"`

	// WatershedMarkerRatio is the fraction of a component's peak distance
	// a pixel must reach to seed the watershed.
	WatershedMarkerRatio float64 `yaml:"watershed_marker_ratio"`
}

// TissueConfig is the editable form of TissueParameters.
type TissueConfig struct {
	LowerBound HSV `yaml:"lower_bound"`
	UpperBound HSV `yaml:"upper_bound"`

	PixelSize float64 `yaml:"pixel_size"`

	// MinTissueArea is in square microns; smaller tissue islands are dropped.
	MinTissueArea float64 `yaml:"min_tissue_area"`
}

type Config struct {
	Globule GlobuleConfig `yaml:"globule"`
	Tissue  TissueConfig  `yaml:"tissue"`
}

func DefaultGlobuleConfig() GlobuleConfig {
	return GlobuleConfig{
		LowerBound:               HSV{Hue: 0, Saturation: 0, Value: 200},
		UpperBound:               HSV{Hue: 180, Saturation: 25, Value: 255},
		PixelSize:                0.5,
		MinIsolatedElongation:    0.4,
		MinOverlappingElongation: 0.05,
		MinIsolatedSolidity:      0.85,
		MinOverlappingSolidity:   0.7,
		MinDiameter:              5,
		MaxDiameter:              100,
		TileWidth:                512,
		TileHeight:               512,
		Padding:                  64,
		BoundaryThreshold:        0.5,
		WatershedMarkerRatio:     0.7,
	}
}

func DefaultTissueConfig() TissueConfig {
	return TissueConfig{
		LowerBound:    HSV{Hue: 0, Saturation: 0, Value: 200},
		UpperBound:    HSV{Hue: 180, Saturation: 10, Value: 255},
		PixelSize:     16,
		MinTissueArea: 5e5,
	}
}

func DefaultConfig() Config {
	return Config{
		Globule: DefaultGlobuleConfig(),
		Tissue:  DefaultTissueConfig(),
	}
}

// LoadConfig reads a YAML file. Omitted keys keep their defaults and
// unknown keys are rejected. The result is validated before it is returned.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c Config) Validate() error {
	return errors.Join(c.Globule.Validate(), c.Tissue.Validate())
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
