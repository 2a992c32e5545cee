// Command landmark_report runs landmark detection over a set of photos and
// prints the estimated crown, chin, pose and compliance of each.
//
// Usage:
//
//	landmark_report --standard schengen photos/
//	landmark_report --config ppp.yaml --json a.jpg b.png
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/libppp/ppp/config"
)

type options struct {
	configPath string
	standard   string
	checks     []string
	workers    int
	jsonOutput bool
	cacheFile  string
}

// NewRootCmd creates the landmark_report command.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "landmark_report [image or directory]...",
		Short: "Report facial landmarks and photo compliance",
		Long: `landmark_report detects the face and landmarks of each photo with the pigo
cascades, estimates crown, chin and head pose, and checks the photo against a
photo standard. Directories are scanned for jpg, png, bmp, tiff and webp files.`,
		Args:          cobra.MinimumNArgs(1),
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.OutOrStdout(), opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (default: "+config.DefaultConfigFile+" in the working or home directory)")
	cmd.Flags().StringVarP(&opts.standard, "standard", "s", "us-passport", "photo standard to check against")
	cmd.Flags().StringSliceVar(&opts.checks, "checks", nil, "compliance checks to run (default: configured checks)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "images processed in parallel")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "write one JSON object per image")
	cmd.Flags().StringVar(&opts.cacheFile, "cache", "", "landmark cache file; cached images skip detection and new results are saved to it")
	return cmd
}

func versionString() string {
	if config.AppVersion != "" {
		return config.AppVersion
	}
	return "(devel)"
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
