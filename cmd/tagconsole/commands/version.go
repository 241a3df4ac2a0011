package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/taglme/console/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show tagconsole version information",
	Long: `Display version, build time, commit hash, and platform information for the tagconsole binary.
With --check, also query nfcd and verify its version is supported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		check, _ := cmd.Flags().GetBool("check")

		info := version.Get()

		if jsonOutput {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error formatting JSON: %v\n", err)
				return nil
			}
			fmt.Println(string(output))
		} else {
			fmt.Println(info.String())
			fmt.Printf("Platform: %s\n", info.Platform)
			fmt.Printf("Go: %s\n", info.GoVersion)
		}

		if !check {
			return nil
		}
		return checkNFCD(cmd)
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
	VersionCmd.Flags().Bool("check", false, "Check the nfcd version against "+version.NFCDConstraint)
}

func checkNFCD(cmd *cobra.Command) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	store := sess.About()
	if err := store.Refresh(cmd.Context()); err != nil {
		return err
	}
	info := store.Info()
	if err := store.Compatible(version.NFCDConstraint); err != nil {
		return err
	}
	pterm.Success.Printfln("%s %s is supported (%s)", orDash(info.Name), info.Version, version.NFCDConstraint)
	return nil
}
