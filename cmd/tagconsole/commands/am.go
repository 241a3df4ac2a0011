package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/taglme/console/am"
	"github.com/taglme/console/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage console configuration",
	Long: `Display and manage console configuration.

Configuration sources (later overrides earlier):
1. Built-in defaults
2. User config (~/.tagconsole/tagconsole.toml)
3. Saved settings (~/.tagconsole/settings.toml, written by am set)
4. Project config (tagconsole.toml, searched up from the working directory)
5. Environment variables (TAGCONSOLE_* prefix, NFC_CONSOLE_X_APP_KEY, X_APP_KEY)

--config replaces steps 2 to 4 with a single file.

Examples:
  tagconsole am show                    # Show current configuration
  tagconsole am show --format json      # Show configuration in JSON format
  tagconsole am set locale ru           # Persist a setting
  tagconsole am where                   # Show where each value comes from
  tagconsole am validate                # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective configuration from all sources. The app key is redacted.",
	RunE:  runAmShow,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a setting",
	Long:  "Persist a setting to ~/.tagconsole/settings.toml. Keys: " + strings.Join(settingKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE:  runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long:  "List every effective setting with the file or variable it came from.",
	RunE:  runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	settings, err := am.GetConfigIntrospection()
	if err != nil {
		return err
	}
	tree := nestSettings(settings)

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(tree)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Printf("# tagconsole configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(tree)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Printf("# tagconsole configuration\n%s", string(data))

	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	update, ok := am.SettingKeys[key]
	if !ok {
		return errors.WithHintf(
			errors.Mark(errors.Newf("unknown setting %q", key), errors.ErrInvalidRequest),
			"settable keys: %s", strings.Join(settingKeys(), ", "))
	}
	if err := update(value); err != nil {
		return err
	}
	pterm.Success.Printfln("%s = %s saved to %s", key, value, am.GetSettingsPath())
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	settings, err := am.GetConfigIntrospection()
	if err != nil {
		return err
	}

	pterm.Println("Files checked (later overrides earlier):")
	for _, path := range am.WatchedConfigFiles() {
		pterm.Println("  " + path)
	}
	pterm.Println()

	rows := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range settings {
		rows = append(rows, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), orDash(s.SourcePath)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// nestSettings turns dotted keys back into nested maps for marshaling
func nestSettings(settings []am.SettingInfo) map[string]any {
	tree := map[string]any{}
	for _, s := range settings {
		parts := strings.Split(s.Key, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = s.Value
	}
	return tree
}

func settingKeys() []string {
	keys := make([]string, 0, len(am.SettingKeys))
	for k := range am.SettingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
