package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/metorial/runhistory/internal/catalog"
	"github.com/metorial/runhistory/internal/cli"
	"github.com/metorial/runhistory/internal/config"
	"github.com/metorial/runhistory/internal/versions"
	"github.com/spf13/cobra"
)

var (
	scriptsDir string
	outputJSON bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "viewer",
	Short:         "Inspect the recorded outputs of runall",
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		viewer, _, err := newViewer(cmd)
		if err != nil {
			return err
		}

		if len(args) > 0 {
			viewer.UnknownCommand(args[0])
			return nil
		}

		return viewer.List("")
	},
}

var listCmd = &cobra.Command{
	Use:   "list [file]",
	Short: "List all versions, optionally filtered by file name substring",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		viewer, _, err := newViewer(cmd)
		if err != nil {
			return err
		}

		return viewer.List(argAt(args, 0))
	},
}

var showCmd = &cobra.Command{
	Use:   "show <file> [version]",
	Short: "Show the output of one version (1 = most recent)",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		viewer, _, err := newViewer(cmd)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			viewer.UsageError("you must specify a file")
			return nil
		}

		version, ok := parseVersion(viewer, argAt(args, 1), 1)
		if !ok {
			return nil
		}

		return viewer.Show(args[0], version)
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <file> [v1] [v2]",
	Short: "Compare the outputs of two versions",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		viewer, _, err := newViewer(cmd)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			viewer.UsageError("you must specify a file")
			return nil
		}

		version1, ok := parseVersion(viewer, argAt(args, 1), 1)
		if !ok {
			return nil
		}
		version2, ok := parseVersion(viewer, argAt(args, 2), 2)
		if !ok {
			return nil
		}

		return viewer.Compare(args[0], version1, version2)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [file]",
	Short: "Per-script run totals from the run catalog",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		viewer, cfg, err := newViewer(cmd)
		if err != nil {
			return err
		}

		path := filepath.Join(cfg.VersionsPath(), catalog.FileName)
		if !config.FileExists(path) {
			return viewer.Stats(nil, argAt(args, 0))
		}

		db, err := catalog.NewDB(path)
		if err != nil {
			return err
		}
		defer db.Close()

		return viewer.Stats(db, argAt(args, 0))
	},
}

var helpCmd = &cobra.Command{
	Use:   "help",
	Short: "Show usage",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), cli.HelpText)
	},
}

func newViewer(cmd *cobra.Command) (*cli.Viewer, *config.Config, error) {
	cfg, err := config.Load(scriptsDir)
	if err != nil {
		return nil, nil, err
	}

	viewer := cli.NewViewer(versions.NewStore(cfg.VersionsPath()), cmd.OutOrStdout())
	viewer.JSON = outputJSON
	return viewer, cfg, nil
}

// parseVersion reports a usage error for non-numeric input.
func parseVersion(viewer *cli.Viewer, arg string, fallback int) (int, bool) {
	if arg == "" {
		return fallback, true
	}

	version, err := strconv.Atoi(arg)
	if err != nil {
		viewer.UsageError(fmt.Sprintf("version must be a number, got %q", arg))
		return 0, false
	}
	return version, true
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&scriptsDir, "dir", "d", config.GetEnv("RUNHISTORY_DIR", "."), "Scripts directory holding the versions store")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "Output in JSON format")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(helpCmd)
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), cli.HelpText)
	})
	// Negative versions such as "show a.py -1" reach here as unknown flags.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		viewer, _, loadErr := newViewer(cmd)
		if loadErr != nil {
			return err
		}
		viewer.UsageError(fmt.Sprintf("invalid arguments: %v", err))
		return nil
	})

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(statsCmd)
}
