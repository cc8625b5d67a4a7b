package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "legisbot",
	Short: "Question answering over legislative documents",
	Long: `Legisbot ingests legislative PDFs into a semantic index and answers
natural-language questions about them, grounding every answer in the
ingested text and citing its sources.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	settingDefaultConfig()
}
