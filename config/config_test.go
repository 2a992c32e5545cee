package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libppp/ppp/pkg/landmark"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	m, n, err := cfg.IndexMap()
	require.NoError(t, err)
	assert.Equal(t, landmark.PigoPointCount, n)
	assert.NoError(t, m.Validate(n))
}

func TestParseOverridesDefaults(t *testing.T) {
	doc := `
landmark_preset: ibug68
tuning:
  confidence: 5
calibration:
  crown_eye_chin_ratio: 1.1
checks: [head-height-ratio, margins]
standards:
  - name: schengen
    picture_width: 35
    picture_height: 45
    units: mm
    dpi: 600
    head_height: {min: 0.7, max: 0.8}
    eye_line: {min: 0.6, max: 0.7}
  - name: custom
    picture_width: 600
    picture_height: 600
    units: pixel
    head_height: {min: 0.5, max: 0.69}
    eye_line: {min: 0.56, max: 0.69}
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	_, n, err := cfg.IndexMap()
	require.NoError(t, err)
	assert.Equal(t, landmark.IBUG68PointCount, n)

	// Unset keys in a section keep their defaults.
	assert.Equal(t, float32(5), cfg.Tuning.Confidence)
	assert.Equal(t, 1.1, cfg.Tuning.ScaleFactor)
	assert.Equal(t, 1.1, cfg.Calibration.CrownEyeChinRatio)
	assert.Equal(t, 0.8, cfg.Calibration.ChinMouthRatio)
	assert.Equal(t, []string{"head-height-ratio", "margins"}, cfg.Checks)

	schengen, err := cfg.Standard("schengen")
	require.NoError(t, err)
	assert.Equal(t, 600.0, schengen.Dpi)

	_, err = cfg.Standard("custom")
	assert.NoError(t, err)
	_, err = cfg.Standard("us-passport")
	assert.NoError(t, err)
	assert.Len(t, cfg.Standards, len(DefaultStandards())+1)

	_, err = cfg.Print("4x6")
	assert.NoError(t, err)
}

func TestParseExplicitLandmarkMap(t *testing.T) {
	doc := `
landmark_map:
  eye-pupil-center-left: [0]
  eye-pupil-center-right: [1]
  nose-tip-point: [2, 3]
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	m, n, err := cfg.IndexMap()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []int{2, 3}, m[landmark.NoseTipPoint])
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"malformed":       "tuning: [",
		"unknown preset":  "landmark_preset: dlib5",
		"unknown type":    "landmark_map: {ear-lobe: [1]}",
		"unknown check":   "checks: [ears-visible]",
		"bad tuning":      "tuning: {scale_factor: 0.9}",
		"bad calibration": "calibration: {eye_line_face_fraction: 1.2}",
		"bad standard":    "standards: [{name: broken, picture_width: 0, picture_height: 1}]",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ppp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  facefinder: models/facefinder\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "models", "facefinder"), cfg.Models.FaceFinder)
	assert.Equal(t, filepath.Join(dir, "cascade", "puploc"), cfg.Models.Puploc)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ppp.yaml")
	cfg := DefaultConfig()
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Checks, loaded.Checks)
	assert.Equal(t, cfg.Standards, loaded.Standards)
}

func TestLookupErrors(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.Standard("atlantis")
	assert.True(t, errors.Is(err, ErrUnknownStandard))
	_, err = cfg.Print("a0")
	assert.True(t, errors.Is(err, ErrUnknownPrint))
}

func TestFindConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ppp.yaml")
	assert.Empty(t, FindConfigFile(path))

	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
	assert.Equal(t, path, FindConfigFile(path))
}
