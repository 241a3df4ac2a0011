package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/taglme/console/am"
	"github.com/taglme/console/errors"
	"github.com/taglme/console/logger"
	"github.com/taglme/console/session"
)

// Exit codes
const (
	exitFailure     = 1
	exitPolicy      = 3
	exitRateLimited = 4
	exitTransport   = 5
)

// loadConfig loads and validates the effective configuration
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(err, "run 'tagconsole am where' to see where each setting comes from")
	}
	return cfg, nil
}

// openSession builds a session from the current configuration
func openSession() (*session.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	sess, err := session.New(cfg, session.Options{
		Logger:         logger.Named("console"),
		PersistAdapter: am.UpdateAdapterID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	return sess, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// FormatError renders an error with its hints for the terminal
func FormatError(err error) string {
	msg := pterm.Red("Error: ") + err.Error()
	for _, hint := range errors.GetAllHints(err) {
		msg += "\n" + pterm.Yellow("Hint: ") + hint
	}
	return msg
}

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	switch {
	case errors.IsPolicyRejectedError(err):
		return exitPolicy
	case errors.IsRateLimitedError(err):
		return exitRateLimited
	case errors.IsTransportError(err):
		return exitTransport
	default:
		return exitFailure
	}
}

// orDash renders empty values as "-"
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
