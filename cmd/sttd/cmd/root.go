package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dmlat/STT-Telegram/cmd/sttd/cmd/export"
	"github.com/dmlat/STT-Telegram/cmd/sttd/cmd/serve"
	"github.com/dmlat/STT-Telegram/cmd/sttd/cmd/version"
)

var Verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sttd",
	Short: "Audio transcription service with per-user usage accounting",
	Long: `Audio transcription service with per-user usage accounting.
- serve runs the HTTP API: it accepts transcription jobs, bills them
  against free and purchased quota and settles payment callbacks
- export writes the stored job history to an xlsx workbook`,
	TraverseChildren: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serve.Cmd)
	rootCmd.AddCommand(export.Cmd)
	rootCmd.AddCommand(version.Cmd)

	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
}
