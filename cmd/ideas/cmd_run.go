package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/pipeline"
	"idea-harvest/pkg/sources"
)

var runFlags struct {
	yes bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape every enabled platform and persist new records",
	Args:  cobra.NoArgs,
	RunE:  runFull,
}

var runTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Dry run: scrape and report without writing anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return execute(cmd, pipeline.ModeTest, "")
	},
}

var runSingleCmd = &cobra.Command{
	Use:   "single <platform>",
	Short: "Scrape one platform and persist its new records",
	RunE:  runSingle,
}

var runHelpCmd = &cobra.Command{
	Use:   "help",
	Short: "List run modes and platform names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		printRunUsage(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runFlags.yes, "yes", "y", false, "Skip the confirmation prompt")
	runCmd.AddCommand(runTestCmd, runSingleCmd, runHelpCmd)
}

func runFull(cmd *cobra.Command, _ []string) error {
	if !runFlags.yes {
		prompt := fmt.Sprintf("Scrape %d platforms and append new records to %s? [y/N] ", len(sources.Enabled(cfg)), cfg.RecordsPath())
		if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}
	return execute(cmd, pipeline.ModeFull, "")
}

func runSingle(cmd *cobra.Command, args []string) error {
	enabled := sources.Enabled(cfg)
	if len(args) != 1 {
		return &usageError{msg: "run single needs exactly one platform name\n" + platformList(enabled)}
	}
	name, ok := knownPlatform(enabled, args[0])
	if !ok {
		return &usageError{msg: fmt.Sprintf("unknown or disabled platform %q\n%s", args[0], platformList(enabled))}
	}
	return execute(cmd, pipeline.ModeSingle, name)
}

func execute(cmd *cobra.Command, mode pipeline.Mode, platform string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(cfg, mode)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	report, runErr := a.orch.Run(ctx, mode, platform)
	if report != nil {
		if err := pipeline.WriteReport(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	return runErr
}

// confirm reads one line from in; only "y" or "yes" proceeds.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// knownPlatform matches name against platforms, ignoring case.
func knownPlatform(platforms []domain.Platform, name string) (string, bool) {
	for _, p := range platforms {
		if strings.EqualFold(string(p), name) {
			return string(p), true
		}
	}
	return "", false
}

func platformList(platforms []domain.Platform) string {
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}
	return "platforms: " + strings.Join(names, ", ")
}

func printRunUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: ideas run [--yes] | run test | run single <platform> | run help")
	fmt.Fprintln(w, "  run                    scrape every enabled platform, persist new records")
	fmt.Fprintln(w, "  run test               scrape and report only; nothing is written")
	fmt.Fprintln(w, "  run single <platform>  scrape one platform, persist new records")
	fmt.Fprintln(w, "  run help               show this message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, platformList(sources.Order))
}
