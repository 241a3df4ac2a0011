package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/taglme/console/capability"
	"github.com/taglme/console/errors"
	"github.com/taglme/console/lifecycle"
	"github.com/taglme/console/logger"
	"github.com/taglme/console/session"
)

// SubmitCmd submits a job to an adapter queue
var SubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a job to an adapter",
	Long: `Submit a job to an nfcd adapter queue.

The job is checked against the host license first. Repeat counts above the
license maximum are clamped with a warning, forbidden commands block the job.
Submissions are throttled by the license rate limit.

A job is described either by a YAML/JSON draft file:

  repeat: 3
  steps:
    - command: get_tags
    - command: write_ndef
      params: {message: "https://tagl.me"}

or by one --step per command, written as "command key=value ...".

Examples:
  tagconsole submit --step get_tags
  tagconsole submit --step get_tags --step "write_ndef url=https://tagl.me" --repeat 5
  tagconsole submit -f job.yaml --adapter acr122-0 --watch`,
	RunE: runSubmit,
}

var (
	submitFile    string
	submitSteps   []string
	submitAdapter string
	submitName    string
	submitRepeat  float64
	submitWatch   bool
	submitTimeout time.Duration
)

func init() {
	SubmitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "Job draft file (YAML or JSON)")
	SubmitCmd.Flags().StringArrayVarP(&submitSteps, "step", "s", nil, "Job step as \"command key=value ...\" (repeatable)")
	SubmitCmd.Flags().StringVarP(&submitAdapter, "adapter", "a", "", "Adapter id (default: job.adapter_id)")
	SubmitCmd.Flags().StringVarP(&submitName, "name", "n", "", "Job name (default: generated)")
	SubmitCmd.Flags().Float64VarP(&submitRepeat, "repeat", "r", 1, "Number of runs")
	SubmitCmd.Flags().BoolVarP(&submitWatch, "watch", "w", false, "Follow the job until it finishes")
	SubmitCmd.Flags().DurationVar(&submitTimeout, "timeout", 0, "Stop watching after this long (0 = no limit)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	draft, err := readDraft(submitFile, submitSteps, submitRepeat, cmd.Flags().Changed("repeat"))
	if err != nil {
		return err
	}

	name := submitName
	if name == "" {
		name = "job-" + uuid.NewString()[:8]
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := signalContext(logger.WithComponent(cmd.Context(), "cli.submit"))
	defer cancel()

	if submitWatch {
		// Listen before submitting so the first events are not missed
		if err := sess.Connect(ctx); err != nil {
			return err
		}
	}

	if err := sess.License().Refresh(ctx); err != nil {
		pterm.Warning.Printfln("Host license unavailable, submitting without a policy: %v", err)
	}

	res, err := sess.Submit(ctx, submitAdapter, name, draft, func(w string) {
		pterm.Warning.Println(w)
	})
	if err != nil {
		return err
	}
	if blocked := res.Err(); blocked != nil {
		return blocked
	}

	pterm.Success.Printfln("Submitted %s (job %s, repeat %d, %d step(s))", name, res.JobID, res.Job.Repeat, len(res.Job.Steps))

	if !submitWatch {
		return nil
	}
	return followJob(ctx, sess)
}

// readDraft builds the draft from a draft file or from step lines.
// repeat overrides the file's repeat only when set explicitly.
func readDraft(file string, steps []string, repeat float64, repeatSet bool) (capability.Draft, error) {
	if file != "" && len(steps) > 0 {
		return capability.Draft{}, errors.WithHint(
			errors.Mark(errors.New("--file and --step are mutually exclusive"), errors.ErrInvalidRequest),
			"describe the job either in a file or with --step flags")
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return capability.Draft{}, errors.Wrapf(err, "failed to read %s", file)
		}
		draft, err := capability.ParseDraft(data)
		if err != nil {
			return capability.Draft{}, errors.Wrapf(err, "invalid draft %s", file)
		}
		if repeatSet {
			draft.Repeat = repeat
		}
		return draft, nil
	}

	if len(steps) == 0 {
		return capability.Draft{}, errors.WithHint(
			errors.Mark(errors.New("no job steps given"), errors.ErrInvalidRequest),
			"pass --file job.yaml or at least one --step")
	}

	draft := capability.Draft{Repeat: repeat}
	for _, line := range steps {
		step, err := capability.ParseStep(line)
		if err != nil {
			return capability.Draft{}, err
		}
		draft.Steps = append(draft.Steps, step)
	}
	return draft, nil
}

// followJob prints tracker snapshots until the job closes.
// Interrupting closes tracking as the user, which deletes a job that is still running.
func followJob(ctx context.Context, sess *session.Session) error {
	tracker := sess.Tracker()
	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	var deadline <-chan time.Time
	if submitTimeout > 0 {
		timer := time.NewTimer(submitTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	last := tracker.State()
	printState(last)
	for {
		select {
		case st := <-updates:
			if st != last {
				printState(st)
				last = st
			}
			if !st.Open {
				if st.Status == lifecycle.StatusDeleted {
					return errors.Newf("job %s was deleted", st.JobID)
				}
				pterm.Success.Printfln("Job %s closed (%d run(s), %d ok, %d failed)",
					orDash(st.JobID), st.Counters.TotalRuns, st.Counters.SuccessRuns, st.Counters.ErrorRuns)
				return nil
			}

		case <-deadline:
			tracker.Close(context.Background(), lifecycle.CloseAuto)
			pterm.Info.Printfln("Stopped watching after %s; the job stays queued", submitTimeout)
			return nil

		case <-ctx.Done():
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			tracker.Close(closeCtx, lifecycle.CloseUser)
			cancel()
			pterm.Warning.Println("Interrupted, stopped tracking")
			return nil
		}
	}
}

func printState(st lifecycle.State) {
	line := fmt.Sprintf("%-9s runs %d/%d ok %d failed %d",
		st.Status, st.Counters.TotalRuns, st.Counters.Repeat, st.Counters.SuccessRuns, st.Counters.ErrorRuns)
	if st.ErrorMessage != "" {
		line += "  " + pterm.Red(st.ErrorMessage)
	}
	switch st.Status {
	case lifecycle.StatusError, lifecycle.StatusDeleted:
		pterm.Error.Println(line)
	case lifecycle.StatusFinished:
		pterm.Success.Println(line)
	default:
		pterm.Info.Println(line)
	}
}
