package config

import "github.com/libppp/ppp/pkg/standard"

// DefaultStandards returns the built-in photo standards. Head height and eye
// line bands are fractions of the picture height; the eye line is measured
// from the bottom edge.
func DefaultStandards() []standard.PhotoStandard {
	return []standard.PhotoStandard{
		{
			Name:            "us-passport",
			PictureWidth:    2,
			PictureHeight:   2,
			Units:           standard.Inch,
			Dpi:             300,
			HeadHeight:      standard.Range{Min: 1.0 / 2, Max: 1.375 / 2},
			EyeLine:         standard.Range{Min: 1.125 / 2, Max: 1.375 / 2},
			MinMargin:       0.04,
			CenterTolerance: 0.05,
			MaxEyeTilt:      5,
		},
		{
			Name:            "schengen",
			PictureWidth:    35,
			PictureHeight:   45,
			Units:           standard.Millimeter,
			Dpi:             300,
			HeadHeight:      standard.Range{Min: 32.0 / 45, Max: 36.0 / 45},
			EyeLine:         standard.Range{Min: 0.6, Max: 0.7},
			MinMargin:       0.03,
			CenterTolerance: 0.05,
			MaxEyeTilt:      5,
		},
		{
			Name:            "uk-passport",
			PictureWidth:    35,
			PictureHeight:   45,
			Units:           standard.Millimeter,
			Dpi:             300,
			HeadHeight:      standard.Range{Min: 29.0 / 45, Max: 34.0 / 45},
			EyeLine:         standard.Range{Min: 0.6, Max: 0.7},
			MinMargin:       0.04,
			CenterTolerance: 0.05,
			MaxEyeTilt:      5,
		},
		{
			Name:            "canada-passport",
			PictureWidth:    50,
			PictureHeight:   70,
			Units:           standard.Millimeter,
			Dpi:             300,
			HeadHeight:      standard.Range{Min: 31.0 / 70, Max: 36.0 / 70},
			EyeLine:         standard.Range{Min: 0.55, Max: 0.65},
			MinMargin:       0.1,
			CenterTolerance: 0.05,
			MaxEyeTilt:      5,
		},
	}
}

// DefaultPrints returns the built-in print sheets.
func DefaultPrints() []standard.PrintDefinition {
	return []standard.PrintDefinition{
		{Name: "4x6", Width: 6, Height: 4, Dpi: 300, Units: standard.Inch, Padding: 0.1, Gutter: 0.05},
		{Name: "5x7", Width: 7, Height: 5, Dpi: 300, Units: standard.Inch, Padding: 0.1, Gutter: 0.05},
		{Name: "10x15", Width: 150, Height: 100, Dpi: 300, Units: standard.Millimeter, Padding: 2, Gutter: 1},
	}
}
