package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spigell/resume-butler/internal/document"
	"github.com/spigell/resume-butler/internal/export"

	"github.com/spf13/cobra"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and supported file formats",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s (%s)\n", app, version, runtime.Version())

		if verbose, _ := cmd.Flags().GetBool("formats"); !verbose {
			return
		}

		exports := make([]string, 0, len(export.Formats))
		for _, f := range export.Formats {
			exports = append(exports, string(f))
		}
		fmt.Printf("upload formats: %s\n", strings.Join(document.NewRegistry(nil).Formats(), ", "))
		fmt.Printf("export formats: %s\n", strings.Join(exports, ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().Bool("formats", false, "also list supported upload and export formats")
}
