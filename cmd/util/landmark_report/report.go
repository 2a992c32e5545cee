package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/libppp/ppp/config"
	"github.com/libppp/ppp/pkg/compliance"
	"github.com/libppp/ppp/pkg/detector"
	"github.com/libppp/ppp/pkg/engine"
	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/imagestore"
	"github.com/libppp/ppp/pkg/landmark"
	"github.com/libppp/ppp/pkg/pose"
	"github.com/libppp/ppp/pkg/standard"
	"github.com/libppp/ppp/util"
	"github.com/libppp/ppp/util/log"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true,
}

// row is the report line for one image.
type row struct {
	File       string             `json:"file"`
	Error      string             `json:"error,omitempty"`
	Stage      string             `json:"stage,omitempty"`
	Face       geometry.Rect      `json:"face"`
	Crown      *geometry.Point    `json:"crown,omitempty"`
	Chin       *geometry.Point    `json:"chin,omitempty"`
	Confidence string             `json:"confidence,omitempty"`
	Cached     bool               `json:"cached,omitempty"`
	Landmarks  int                `json:"landmarks"`
	Pose       *pose.Pose         `json:"pose,omitempty"`
	Compliance *compliance.Result `json:"compliance,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

func loadConfig(path string) (*config.Config, error) {
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("%s: %w", path, config.ErrConfigNotFound)
		}
		log.Println("No configuration file found, using defaults")
		return config.DefaultConfig(), nil
	}
	log.Printf("Using configuration %s", found)
	return config.Load(found)
}

func runReport(w io.Writer, opts *options, args []string) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	ps, err := cfg.Standard(opts.standard)
	if err != nil {
		return err
	}
	files, err := collectImages(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no images found")
	}

	models, err := detector.LoadPigo(cfg.Models, cfg.Tuning)
	if err != nil {
		return err
	}
	if !models.HasLandmarkCascades() {
		log.Println("No landmark cascade directory configured; lips detection and mouth points disabled.")
	}

	store := imagestore.NewImageStore()
	store.SetCacheFile(opts.cacheFile)
	if opts.cacheFile != "" {
		keys, err := store.LoadCache()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			log.Printf("Resuming %d cached images from %s", len(keys), opts.cacheFile)
		}
	}
	eng := engine.New(engine.Components{
		FaceDetector: models.Face(),
		EyesDetector: models.Eyes(),
		LipsDetector: models.Lips(),
		Refiner:      models.Refiner(),
		Store:        store,
	})
	if err := eng.Configure(cfg); err != nil {
		return err
	}

	rows := analyzeAll(eng, store, ps, opts.checks, files, opts.workers)

	if opts.jsonOutput {
		err = writeJSON(w, rows)
	} else {
		err = writeText(w, rows)
	}
	if err != nil {
		return err
	}
	if opts.cacheFile != "" {
		return store.SaveCache()
	}
	return nil
}

// analyzeAll processes files with at most workers in flight. Rows keep the
// order of files.
func analyzeAll(eng *engine.Engine, store *imagestore.ImageStore, ps *standard.PhotoStandard, checks, files []string, workers int) []row {
	if workers < 1 {
		workers = 1
	}
	rows := make([]row, len(files))
	tally := util.NewTally()
	var g errgroup.Group
	g.SetLimit(workers)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if key, lm, ok := cached(store, file); ok {
				rows[i] = resume(eng, key, lm, ps, checks, file)
			} else {
				rows[i] = analyze(eng, ps, checks, file)
			}
			tally.Inc(rows[i].outcome())
			return nil
		})
	}
	_ = g.Wait()
	log.Printf("Analyzed %d images: %s", tally.Total(), tally)
	return rows
}

// outcome labels the row for the run summary.
func (r row) outcome() string {
	switch {
	case r.Stage != "":
		return r.Stage
	case r.Error != "":
		return "error"
	case r.Compliance != nil && !r.Compliance.Passed:
		return "non-compliant"
	default:
		return "compliant"
	}
}

func analyze(eng *engine.Engine, ps *standard.PhotoStandard, checks []string, file string) row {
	r := row{File: file}
	key, err := eng.LoadImage(file)
	if err != nil {
		return r.fail(err)
	}
	res, err := eng.Analyze(key, ps, checks)
	if err != nil {
		return r.fail(err)
	}
	log.Debugf("%s: %d landmarks, crown %v, chin %v", filepath.Base(file), res.LandMarks.Count(), *res.LandMarks.Crown, *res.LandMarks.Chin)

	r.Face = res.LandMarks.FaceRect
	r.Crown = res.LandMarks.Crown
	r.Chin = res.LandMarks.Chin
	r.Confidence = res.CrownChin.Confidence.String()
	r.Landmarks = res.LandMarks.Count()
	r.Pose = res.Pose
	r.Compliance = res.Compliance
	r.Warnings = res.Warnings
	return r
}

// cached returns the cache entry for file when it has a crown and chin.
func cached(store *imagestore.ImageStore, file string) (string, *landmark.LandMarks, bool) {
	key, ok := store.KeyForSource(file)
	if !ok {
		return "", nil, false
	}
	lm, ok := store.LandMarks(key)
	if !ok || lm.Crown == nil || lm.Chin == nil {
		return "", nil, false
	}
	return key, lm, true
}

// resume checks a cached image against ps without running detection again.
func resume(eng *engine.Engine, key string, lm *landmark.LandMarks, ps *standard.PhotoStandard, checks []string, file string) row {
	r := row{File: file, Cached: true, Confidence: "cached"}
	crown, chin := *lm.Crown, *lm.Chin
	if _, err := eng.CropRegion(key, ps, crown, chin); err != nil {
		return r.fail(err)
	}
	res, err := eng.CheckCompliance(key, ps, crown, chin, checks)
	if err != nil {
		return r.fail(err)
	}
	r.Face = lm.FaceRect
	r.Crown = &crown
	r.Chin = &chin
	r.Landmarks = lm.Count()
	r.Compliance = &res
	return r
}

func (r row) fail(err error) row {
	r.Error = err.Error()
	var ee *engine.Error
	if errors.As(err, &ee) {
		r.Stage = string(ee.Stage)
		r.Error = ee.Reason
	}
	return r
}

// collectImages expands directories (non-recursively) to their image files.
func collectImages(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func writeJSON(w io.Writer, rows []row) error {
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func writeText(w io.Writer, rows []row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tCROWN\tCHIN\tCONF\tPOSE\tRESULT")
	for _, r := range rows {
		name := filepath.Base(r.File)
		if r.Error != "" {
			failure := "FAILED: " + r.Error
			if r.Stage != "" {
				failure = fmt.Sprintf("FAILED at %s: %s", r.Stage, r.Error)
			}
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%s\n", name, failure)
			continue
		}
		poseText := "-"
		if r.Pose != nil {
			poseText = r.Pose.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", name, formatPoint(r.Crown), formatPoint(r.Chin), r.Confidence, poseText, verdict(r.Compliance))
	}
	return tw.Flush()
}

func formatPoint(p *geometry.Point) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("(%.0f,%.0f)", p.X, p.Y)
}

func verdict(res *compliance.Result) string {
	if res == nil {
		return "-"
	}
	if res.Passed {
		return "PASS"
	}
	var failed []string
	for _, o := range res.Failed() {
		failed = append(failed, o.Name)
	}
	return "FAIL " + strings.Join(failed, ",")
}
