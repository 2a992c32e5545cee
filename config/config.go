// Package config holds the parsed configuration consumed by the engine: the
// landmark index map, cascade locations, detector tuning, estimator
// calibration, photo standards, print sheets and enabled compliance checks.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/libppp/ppp/pkg/compliance"
	"github.com/libppp/ppp/pkg/crownchin"
	"github.com/libppp/ppp/pkg/detector"
	"github.com/libppp/ppp/pkg/landmark"
	"github.com/libppp/ppp/pkg/pose"
	"github.com/libppp/ppp/pkg/standard"
)

// Config is immutable once handed to the engine.
type Config struct {
	// LandmarkPreset names a built-in index map ("pigo" or "ibug68").
	LandmarkPreset string `json:"landmark_preset" yaml:"landmark_preset"`
	// LandmarkMap, when set, replaces the preset's map. Keys are landmark type
	// names, values are indices into the refiner's raw point list.
	LandmarkMap map[string][]int `json:"landmark_map,omitempty" yaml:"landmark_map,omitempty"`

	Models      detector.ModelPaths   `json:"models" yaml:"models"`
	Tuning      detector.Tuning       `json:"tuning" yaml:"tuning"`
	Calibration crownchin.Calibration `json:"calibration" yaml:"calibration"`
	Pose        pose.Options          `json:"pose" yaml:"pose"`

	// Standards and Prints extend the built-in sets; an entry with a built-in
	// name replaces it.
	Standards []standard.PhotoStandard   `json:"standards,omitempty" yaml:"standards,omitempty"`
	Prints    []standard.PrintDefinition `json:"prints,omitempty" yaml:"prints,omitempty"`

	// Checks are run when a compliance request names none.
	Checks []string `json:"checks" yaml:"checks"`
}

// DefaultConfig returns a configuration for the pigo cascades with the
// built-in standards and every compliance check enabled.
func DefaultConfig() *Config {
	return &Config{
		LandmarkPreset: "pigo",
		Models: detector.ModelPaths{
			FaceFinder: filepath.Join("cascade", "facefinder"),
			Puploc:     filepath.Join("cascade", "puploc"),
			FlpDir:     filepath.Join("cascade", "lps"),
		},
		Tuning:      detector.DefaultTuning(),
		Calibration: crownchin.DefaultCalibration(),
		Pose:        pose.DefaultOptions(),
		Standards:   DefaultStandards(),
		Prints:      DefaultPrints(),
		Checks: []string{
			compliance.HeadHeightRatio,
			compliance.EyeLinePosition,
			compliance.HeadCentered,
			compliance.Margins,
			compliance.EyesLevel,
			compliance.CropInBounds,
		},
	}
}

// Load reads a YAML or JSON configuration file. Missing keys keep their
// defaults. Relative model paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolveModels(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Standards = nil
	cfg.Prints = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	cfg.Standards = mergeStandards(DefaultStandards(), cfg.Standards)
	cfg.Prints = mergePrints(DefaultPrints(), cfg.Prints)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for DefaultConfigFile in the current directory
// 3. Look for DefaultConfigFile in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}
	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) resolveModels(dir string) {
	for _, p := range []*string{&c.Models.FaceFinder, &c.Models.Puploc, &c.Models.FlpDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// IndexMap returns the configured landmark index map and the raw point count
// it was written for. The point count is zero for an explicit map, whose
// bounds are checked against the refiner when the engine is configured.
func (c *Config) IndexMap() (landmark.IndexMap, int, error) {
	if len(c.LandmarkMap) > 0 {
		m, err := landmark.NewIndexMap(c.LandmarkMap)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		return m, 0, nil
	}
	m, n, err := landmark.Preset(c.LandmarkPreset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return m, n, nil
}

// Validate checks every section. Errors wrap ErrConfiguration.
func (c *Config) Validate() error {
	if _, _, err := c.IndexMap(); err != nil {
		return err
	}
	if c.Tuning.ScaleFactor <= 1 || c.Tuning.ShiftFactor <= 0 {
		return fmt.Errorf("%w: tuning scale_factor must exceed 1 and shift_factor must be positive", ErrConfiguration)
	}
	if c.Tuning.MinSizePct <= 0 || c.Tuning.MaxSizePct < c.Tuning.MinSizePct {
		return fmt.Errorf("%w: tuning size range is empty", ErrConfiguration)
	}
	if c.Calibration.CrownEyeChinRatio <= 0 || c.Calibration.ChinMouthRatio <= 0 {
		return fmt.Errorf("%w: calibration ratios must be positive", ErrConfiguration)
	}
	if f := c.Calibration.EyeLineFaceFraction; f <= 0 || f >= c.Calibration.ChinFaceFraction {
		return fmt.Errorf("%w: eye line must lie above the chin in the face box", ErrConfiguration)
	}
	if c.Pose.MaxResidual <= 0 {
		return fmt.Errorf("%w: pose max_residual must be positive", ErrConfiguration)
	}

	seen := make(map[string]bool)
	for i := range c.Standards {
		ps := &c.Standards[i]
		if err := ps.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		if seen[ps.Name] {
			return fmt.Errorf("%w: duplicate photo standard %s", ErrConfiguration, ps.Name)
		}
		seen[ps.Name] = true
	}
	for i := range c.Prints {
		if err := c.Prints[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	if err := compliance.NewChecker(compliance.DefaultRegistry()).Resolve(c.Checks); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}

// Standard returns the named photo standard.
func (c *Config) Standard(name string) (*standard.PhotoStandard, error) {
	for i := range c.Standards {
		if c.Standards[i].Name == name {
			ps := c.Standards[i]
			return &ps, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStandard, name)
}

// Print returns the named print definition.
func (c *Config) Print(name string) (*standard.PrintDefinition, error) {
	for i := range c.Prints {
		if c.Prints[i].Name == name {
			pd := c.Prints[i]
			return &pd, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPrint, name)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func mergeStandards(base, override []standard.PhotoStandard) []standard.PhotoStandard {
	out := append([]standard.PhotoStandard(nil), base...)
	for _, ps := range override {
		replaced := false
		for i := range out {
			if out[i].Name == ps.Name {
				out[i] = ps
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, ps)
		}
	}
	return out
}

func mergePrints(base, override []standard.PrintDefinition) []standard.PrintDefinition {
	out := append([]standard.PrintDefinition(nil), base...)
	for _, pd := range override {
		replaced := false
		for i := range out {
			if out[i].Name == pd.Name {
				out[i] = pd
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, pd)
		}
	}
	return out
}
