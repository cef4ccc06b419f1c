package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/offaxis/internal/offaxis"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the solver tolerances and batch settings.
// Every field is optional; the Get* methods supply defaults for nil fields.
type TuningConfig struct {
	// Solver params
	OrthogonalityTolerance *float64 `json:"orthogonality_tolerance,omitempty"`
	AspectTolerance        *float64 `json:"aspect_tolerance,omitempty"`
	PixelAspectX           *float64 `json:"pixel_aspect_x,omitempty"`
	PixelAspectY           *float64 `json:"pixel_aspect_y,omitempty"`
	RejectBehindPlane      *bool    `json:"reject_behind_plane,omitempty"`

	// Rig params
	Workers    *int    `json:"workers,omitempty"`
	RigTimeout *string `json:"rig_timeout,omitempty"` // duration string like "30s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its default.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		OrthogonalityTolerance: ptrFloat64(1e-7),
		AspectTolerance:        ptrFloat64(1e-7),
		PixelAspectX:           ptrFloat64(1),
		PixelAspectY:           ptrFloat64(1),
		RejectBehindPlane:      ptrBool(true),
		Workers:                ptrInt(4),
		RigTimeout:             ptrString("30s"),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the JSON file fall back to defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it is non-empty and returns an empty
// (all-defaults) config otherwise.
func LoadOrDefault(path string) (*TuningConfig, error) {
	if path == "" {
		return EmptyTuningConfig(), nil
	}
	return LoadTuningConfig(path)
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.OrthogonalityTolerance != nil && *c.OrthogonalityTolerance <= 0 {
		return fmt.Errorf("orthogonality_tolerance must be positive, got %g", *c.OrthogonalityTolerance)
	}
	if c.AspectTolerance != nil && *c.AspectTolerance <= 0 {
		return fmt.Errorf("aspect_tolerance must be positive, got %g", *c.AspectTolerance)
	}
	if c.PixelAspectX != nil && *c.PixelAspectX <= 0 {
		return fmt.Errorf("pixel_aspect_x must be positive, got %g", *c.PixelAspectX)
	}
	if c.PixelAspectY != nil && *c.PixelAspectY <= 0 {
		return fmt.Errorf("pixel_aspect_y must be positive, got %g", *c.PixelAspectY)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.RigTimeout != nil && *c.RigTimeout != "" {
		if _, err := time.ParseDuration(*c.RigTimeout); err != nil {
			return fmt.Errorf("invalid rig_timeout '%s': %w", *c.RigTimeout, err)
		}
	}
	return nil
}

// GetOrthogonalityTolerance returns the orthogonality_tolerance value or the default.
func (c *TuningConfig) GetOrthogonalityTolerance() float64 {
	if c.OrthogonalityTolerance == nil {
		return 1e-7
	}
	return *c.OrthogonalityTolerance
}

// GetAspectTolerance returns the aspect_tolerance value or the default.
func (c *TuningConfig) GetAspectTolerance() float64 {
	if c.AspectTolerance == nil {
		return 1e-7
	}
	return *c.AspectTolerance
}

// GetPixelAspectX returns the pixel_aspect_x value or the default.
func (c *TuningConfig) GetPixelAspectX() float64 {
	if c.PixelAspectX == nil {
		return 1
	}
	return *c.PixelAspectX
}

// GetPixelAspectY returns the pixel_aspect_y value or the default.
func (c *TuningConfig) GetPixelAspectY() float64 {
	if c.PixelAspectY == nil {
		return 1
	}
	return *c.PixelAspectY
}

// GetRejectBehindPlane returns the reject_behind_plane value or the default.
func (c *TuningConfig) GetRejectBehindPlane() bool {
	if c.RejectBehindPlane == nil {
		return true
	}
	return *c.RejectBehindPlane
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetRigTimeout parses and returns the RigTimeout as a time.Duration.
func (c *TuningConfig) GetRigTimeout() time.Duration {
	if c.RigTimeout == nil || *c.RigTimeout == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.RigTimeout)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}

// SolverOptions converts the config into solver options.
func (c *TuningConfig) SolverOptions() offaxis.Options {
	return offaxis.Options{
		OrthogonalityTolerance: c.GetOrthogonalityTolerance(),
		AspectTolerance:        c.GetAspectTolerance(),
		PixelAspectX:           c.GetPixelAspectX(),
		PixelAspectY:           c.GetPixelAspectY(),
		RejectBehindPlane:      c.GetRejectBehindPlane(),
	}
}
