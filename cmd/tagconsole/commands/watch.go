package commands

import (
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/taglme/console/am"
	"github.com/taglme/console/logger"
	"github.com/taglme/console/nfc"
	"github.com/taglme/console/session"
)

// WatchCmd follows the nfcd event stream
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the nfcd event stream",
	Long: `Print nfcd events as they arrive.

Config files are watched while running: changing the base URL, locale or
app key reconnects to the new host.

Examples:
  tagconsole watch
  tagconsole watch --job 6f1c2a`,
	RunE: runWatch,
}

var watchJob string

func init() {
	WatchCmd.Flags().StringVar(&watchJob, "job", "", "Only show events for this job id")
}

func runWatch(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	sess.OnEvent(func(ev nfc.Event) {
		if watchJob != "" && ev.JobID() != watchJob {
			return
		}
		printEvent(ev)
	})

	stopWatcher := watchConfig(sess)
	defer stopWatcher()

	if err := sess.Connect(ctx); err != nil {
		return err
	}
	pterm.Info.Printfln("Listening on %s (Ctrl-C to stop)", sess.Stream().URL())

	<-ctx.Done()
	return nil
}

// watchConfig reconfigures the session when a config file changes
func watchConfig(sess *session.Session) func() {
	log := logger.Named("watch")
	watcher, err := am.NewConfigWatcher(am.WatchedConfigFiles()...)
	if err != nil {
		log.Warnw("Config reload disabled", logger.FieldError, err)
		return func() {}
	}
	watcher.OnReload(func(cfg *am.Config) error {
		changed, err := sess.Reconfigure(cfg)
		if err != nil {
			return err
		}
		if changed {
			pterm.Info.Printfln("Reconnected to %s", sess.Identity().BaseURL)
		}
		return nil
	})
	am.SetGlobalWatcher(watcher)
	watcher.Start()
	return func() {
		am.SetGlobalWatcher(nil)
		if err := watcher.Stop(); err != nil {
			log.Debugw("Config watcher stop failed", logger.FieldError, err)
		}
	}
}

func printEvent(ev nfc.Event) {
	line := pterm.Gray(time.Now().Format("15:04:05")) + " " + string(ev.Name)
	if id := ev.JobID(); id != "" {
		line += " job=" + id
	}

	if !ev.IsRunCompletion() {
		pterm.Println(line)
		return
	}

	run, err := nfc.ParseJobRun(ev.Data)
	if err != nil {
		pterm.Warning.Printfln("%s (unreadable run: %v)", line, err)
		return
	}
	line += " adapter=" + orDash(run.AdapterID)
	if ev.Name == nfc.EventRunError {
		if msgs := run.FailedMessages(); len(msgs) > 0 {
			line += " " + pterm.Red(strings.Join(msgs, ", "))
		}
		pterm.Error.Println(line)
		return
	}
	pterm.Success.Println(line)
}
