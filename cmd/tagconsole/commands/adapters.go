package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/taglme/console/devices"
	"github.com/taglme/console/errors"
)

// AdaptersCmd lists NFC adapters attached to nfcd
var AdaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List NFC adapters",
	Long: `List the NFC adapters attached to the nfcd host.
The selected adapter is used by submit when --adapter is not given.

Examples:
  tagconsole adapters
  tagconsole adapters select acr122-0`,
	RunE: runAdaptersList,
}

var adaptersSelectCmd = &cobra.Command{
	Use:   "select <adapter-id>",
	Short: "Select the default adapter",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdaptersSelect,
}

func init() {
	AdaptersCmd.AddCommand(adaptersSelectCmd)
}

func runAdaptersList(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	store := sess.Devices()
	if err := store.Refresh(cmd.Context()); err != nil {
		return err
	}

	list := store.List()
	if len(list) == 0 {
		pterm.Info.Println("No adapters attached")
		return nil
	}

	selected := store.Selected()
	rows := pterm.TableData{{"", "ID", "Adapter", "Driver"}}
	for _, a := range list {
		mark := ""
		if a.AdapterID == selected {
			mark = pterm.Green("*")
		}
		rows = append(rows, []string{mark, a.AdapterID, devices.Label(a), orDash(a.Driver)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runAdaptersSelect(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	store := sess.Devices()
	if err := store.Refresh(cmd.Context()); err != nil {
		return err
	}

	id := args[0]
	for _, a := range store.List() {
		if a.AdapterID == id {
			store.Select(id)
			pterm.Success.Printfln("Selected %s", devices.Label(a))
			return nil
		}
	}
	return errors.WithHint(
		errors.Mark(errors.Newf("adapter %q is not attached", id), errors.ErrNotFound),
		"run 'tagconsole adapters' to list attached adapters")
}
