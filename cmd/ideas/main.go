// ideas harvests automation ideas from public template catalogs into a
// local, deduplicated store with an optional remote mirror.
//
// Usage:
//
//	ideas run [--yes]            scrape every enabled platform and persist new records
//	ideas run test               dry run: scrape and report, write nothing
//	ideas run single <platform>  scrape one platform and persist
//	ideas run help               list run modes and platforms
//	ideas stats                  show the statistics table and recent runs
//	ideas mark-used <record-id> <idea-slug>
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"idea-harvest/pkg/config"
	"idea-harvest/pkg/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// cfg is loaded once before any command runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "ideas",
	Short: "Harvest automation ideas from public template catalogs",
	Long: "ideas scrapes workflow and template catalogs (n8n, Zapier, Make, Power Automate,\n" +
		"IFTTT, Airtable, curated awesome lists and the n8n community), deduplicates\n" +
		"them against everything seen before and appends the new ones to a local store.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Init(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(markUsedCmd)
	rootCmd.Version = version
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})
}

// usageError is a command-line mistake; it exits with status 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}
