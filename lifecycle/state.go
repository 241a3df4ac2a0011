// Package lifecycle tracks one in-flight job from the nfcd event stream.
//
// A Tracker follows a single job at a time: Open starts tracking, stream
// events drive the status, and quiet-period timers revert terminal run
// results to pending or close tracking after a delete.
package lifecycle

import "github.com/taglme/console/nfc"

// Status of the tracked job
type Status string

const (
	StatusPending   Status = "pending"
	StatusActivated Status = "activated"
	StatusFinished  Status = "finished"
	StatusError     Status = "error"
	StatusDeleted   Status = "deleted"
)

// CloseReason says who stopped tracking
type CloseReason string

const (
	// CloseUser may delete a still-running job remotely
	CloseUser CloseReason = "user"
	// CloseAuto never touches the remote queue
	CloseAuto CloseReason = "auto"
)

// ErrorJobDeleted is the error message shown after a job_deleted event
const ErrorJobDeleted = "job_deleted"

// State is a snapshot of the tracker
type State struct {
	Open         bool
	AdapterID    string
	JobID        string
	JobName      string
	Status       Status
	ErrorMessage string
	Counters     nfc.Counters
}

// Active reports whether the job may still run on the adapter
func (s State) Active() bool {
	return s.Status == StatusPending || s.Status == StatusActivated
}
