package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/taglme/console/errors"
	"github.com/taglme/console/license"
)

// PolicyCmd shows the host license and the job policy derived from it
var PolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show the host license job policy",
	Long: `Show the host license tier, granted scopes and the job policy the console enforces.

Examples:
  tagconsole policy
  tagconsole policy --json`,
	RunE: runPolicy,
}

var policyJSON bool

func init() {
	PolicyCmd.Flags().BoolVar(&policyJSON, "json", false, "Output the policy as JSON")
}

func runPolicy(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	store := sess.License()
	if err := store.Refresh(cmd.Context()); err != nil {
		return err
	}
	policy := store.Policy()

	if policyJSON {
		data, err := json.MarshalIndent(struct {
			HostTier string                `json:"host_tier"`
			Policy   *license.AccessPolicy `json:"policy"`
		}{store.HostTier(), policy}, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal policy")
		}
		fmt.Println(string(data))
		return nil
	}

	pterm.DefaultHeader.WithFullWidth().Printfln("Host license: %s", store.HostTier())

	rows := pterm.TableData{
		{"Setting", "Value"},
		{"Multi-step jobs", allowed(policy.MultistepDenied())},
		{"Repeat", allowed(policy.RepeatDenied())},
		{"Max repeat", limitText(policy.MaxRepeat())},
		{"Max steps", limitText(policy.MaxSteps())},
		{"Scopes", listText(policy.Scopes(), "-")},
		{"Command scopes", listText(policy.CommandScopes(), "any")},
		{"Job delete", allowed(!license.HasScope(policy.Scopes(), license.ScopeJobDelete))},
	}
	rows = append(rows, rateRows(policy.Limits())...)
	if sess.Orchestrator().IgnoresHostLicense() {
		rows = append(rows, []string{"Enforcement", pterm.Yellow("bypassed (policy.ignore_host_license)")})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func rateRows(cfg *license.RateLimit) [][]string {
	if cfg == nil {
		return [][]string{{"Rate limit", "none"}}
	}
	var rows [][]string
	if cfg.MinIntervalMs != nil && *cfg.MinIntervalMs > 0 {
		rows = append(rows, []string{"Min interval", strconv.FormatInt(*cfg.MinIntervalMs, 10) + " ms"})
	}
	if cfg.WindowMs != nil && cfg.MaxInWindow != nil && *cfg.WindowMs > 0 && *cfg.MaxInWindow > 0 {
		rows = append(rows, []string{"Window", fmt.Sprintf("%d jobs / %d ms", *cfg.MaxInWindow, *cfg.WindowMs)})
	}
	if len(rows) == 0 {
		rows = append(rows, []string{"Rate limit", "none"})
	}
	return rows
}

func allowed(denied bool) string {
	if denied {
		return pterm.Red("denied")
	}
	return pterm.Green("allowed")
}

func limitText(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

func listText(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}
