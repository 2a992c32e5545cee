// Command debug_crop runs the detection pipeline on one photo and writes an
// annotated copy (face, eye windows, landmarks, crown, chin and crop frame)
// plus a preview of the photo cropped to a standard.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/libppp/ppp/config"
	"github.com/libppp/ppp/pkg/detector"
	"github.com/libppp/ppp/pkg/engine"
	"github.com/libppp/ppp/util/log"
)

func newRootCmd() *cobra.Command {
	var configPath, standardName, outDir string
	cmd := &cobra.Command{
		Use:           "debug_crop <image>",
		Short:         "Visualise landmarks and the standard's crop frame on a photo",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, configPath, standardName, outDir, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file")
	cmd.Flags().StringVarP(&standardName, "standard", "s", "us-passport", "photo standard")
	cmd.Flags().StringVarP(&outDir, "out", "o", "debug_output", "output directory")
	return cmd
}

func run(cmd *cobra.Command, configPath, standardName, outDir, path string) error {
	cfg := config.DefaultConfig()
	if found := config.FindConfigFile(configPath); found != "" {
		loaded, err := config.Load(found)
		if err != nil {
			return err
		}
		cfg = loaded
	} else if configPath != "" {
		return config.ErrConfigNotFound
	}
	ps, err := cfg.Standard(standardName)
	if err != nil {
		return err
	}

	models, err := detector.LoadPigo(cfg.Models, cfg.Tuning)
	if err != nil {
		return err
	}
	eng := engine.New(engine.Components{
		FaceDetector: models.Face(),
		EyesDetector: models.Eyes(),
		LipsDetector: models.Lips(),
		Refiner:      models.Refiner(),
	})
	if err := eng.Configure(cfg); err != nil {
		return err
	}

	key, err := eng.LoadImage(path)
	if err != nil {
		return err
	}
	img, err := eng.Store().Image(key)
	if err != nil {
		return err
	}
	res, err := eng.Analyze(key, ps, nil)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	annotated := filepath.Join(outDir, base+"_annotated.png")
	if err := imaging.Save(annotate(img, res), annotated); err != nil {
		return err
	}
	w, h, err := ps.CanvasSize()
	if err != nil {
		return err
	}
	preview := filepath.Join(outDir, base+"_"+ps.Name+".png")
	if err := imaging.Save(cropPreview(img, res.Crop, w, h), preview); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Input:   %dx%d\n", img.Bounds().Dx(), img.Bounds().Dy())
	fmt.Fprintf(out, "Face:    %+v\n", res.LandMarks.FaceRect)
	fmt.Fprintf(out, "Crown:   %+v (%s)\n", *res.LandMarks.Crown, res.CrownChin.Confidence)
	fmt.Fprintf(out, "Chin:    %+v\n", *res.LandMarks.Chin)
	if res.Pose != nil {
		fmt.Fprintf(out, "Pose:    %s\n", res.Pose)
	}
	fmt.Fprintf(out, "Crop:    %+v\n", res.Crop)
	for _, o := range res.Compliance.Outcomes {
		status := "PASS"
		if !o.Passed {
			status = "FAIL " + o.Reason
		}
		fmt.Fprintf(out, "  %-18s %.3f %s %s\n", o.Name, o.Measured, o.Expected, status)
	}
	for _, w := range res.Warnings {
		log.Println(w)
	}
	fmt.Fprintf(out, "Wrote %s and %s\n", annotated, preview)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
