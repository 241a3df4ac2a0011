package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taglme/console/am"
	"github.com/taglme/console/cmd/tagconsole/commands"
	"github.com/taglme/console/errors"
	"github.com/taglme/console/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tagconsole",
	Short: "tagconsole - job console for the nfcd NFC service",
	Long: `tagconsole - submit and follow NFC jobs on an nfcd host.

Jobs are checked against the host license before they are sent, submissions
are throttled by the license rate limit, and a submitted job can be followed
live over the nfcd event stream.

Available commands:
  submit   - Submit a job and optionally follow it
  enforce  - Check a job draft against the host license without sending it
  policy   - Show the host license and its job policy
  adapters - List and select NFC adapters
  watch    - Follow the nfcd event stream
  am       - Manage console configuration
  version  - Show version information

Examples:
  tagconsole adapters                               # List adapters
  tagconsole submit --step get_tags --repeat 3      # Read tags three times
  tagconsole submit -f job.yaml --watch             # Submit from a file and follow it
  tagconsole am set locale ru                       # Persist a setting`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		am.SetConfigFile(configPath)

		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if !jsonLogs {
			if cfg, err := am.Load(); err == nil {
				jsonLogs = cfg.Log.JSON
			}
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		logger.Debugw("Logger initialized", "level", logger.LevelName(verbosity), "json", jsonLogs)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().String("config", "", "Use only this config file")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")

	rootCmd.AddCommand(commands.SubmitCmd)
	rootCmd.AddCommand(commands.EnforceCmd)
	rootCmd.AddCommand(commands.PolicyCmd)
	rootCmd.AddCommand(commands.AdaptersCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, commands.FormatError(err))
		os.Exit(commands.ExitCode(err))
	}
}
