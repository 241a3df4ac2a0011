package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/taglme/console/capability"
	"github.com/taglme/console/errors"
	"github.com/taglme/console/license"
)

// EnforceCmd checks a draft against a license policy without submitting it
var EnforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Check a job draft against the host license",
	Long: `Check a job draft against a license policy and print the job that would be sent.

Without --policy the policy is read from the configured nfcd host. With
--policy the check runs offline against the "nfcd" policy object in the file.

Examples:
  tagconsole enforce -f job.yaml
  tagconsole enforce --step get_tags --repeat 100 --policy nfcd-policy.json`,
	RunE: runEnforce,
}

var (
	enforceFile   string
	enforceSteps  []string
	enforceRepeat float64
	enforcePolicy string
)

func init() {
	EnforceCmd.Flags().StringVarP(&enforceFile, "file", "f", "", "Job draft file (YAML or JSON)")
	EnforceCmd.Flags().StringArrayVarP(&enforceSteps, "step", "s", nil, "Job step as \"command key=value ...\" (repeatable)")
	EnforceCmd.Flags().Float64VarP(&enforceRepeat, "repeat", "r", 1, "Number of runs")
	EnforceCmd.Flags().StringVar(&enforcePolicy, "policy", "", "nfcd policy JSON file (offline check)")
}

func runEnforce(cmd *cobra.Command, args []string) error {
	draft, err := readDraft(enforceFile, enforceSteps, enforceRepeat, cmd.Flags().Changed("repeat"))
	if err != nil {
		return err
	}

	policy, source, err := enforcementPolicy(cmd)
	if err != nil {
		return err
	}
	pterm.Info.Printfln("Policy: %s", source)

	res := capability.Enforce(policy, draft)
	for _, w := range res.Warnings {
		pterm.Warning.Println(w)
	}
	if !res.Accepted {
		return errors.NewPolicyRejection(res.Reason)
	}

	out, err := yaml.Marshal(struct {
		Repeat int               `yaml:"repeat"`
		Steps  []capability.Step `yaml:"steps"`
	}{res.Job.Repeat, res.Job.Steps})
	if err != nil {
		return errors.Wrap(err, "failed to render job")
	}
	pterm.Success.Println("Job accepted")
	fmt.Print(string(out))
	return nil
}

// enforcementPolicy reads --policy or fetches the host license
func enforcementPolicy(cmd *cobra.Command) (*license.AccessPolicy, string, error) {
	if enforcePolicy != "" {
		data, err := os.ReadFile(enforcePolicy)
		if err != nil {
			return nil, "", errors.Wrapf(err, "failed to read %s", enforcePolicy)
		}
		policy, err := license.FromNFCDPolicy(data)
		if err != nil {
			return nil, "", errors.Wrapf(err, "invalid policy %s", enforcePolicy)
		}
		return policy, enforcePolicy, nil
	}

	sess, err := openSession()
	if err != nil {
		return nil, "", err
	}
	defer sess.Close()

	store := sess.License()
	if err := store.Refresh(cmd.Context()); err != nil {
		return nil, "", errors.WithHint(err, "pass --policy to check offline")
	}
	return store.Policy(), fmt.Sprintf("%s license of %s", store.HostTier(), sess.Identity().BaseURL), nil
}
