package nfc

import (
	"encoding/json"
	"strings"
)

// Adapter is an NFC reader attached to nfcd
type Adapter struct {
	AdapterID string `json:"adapter_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Driver    string `json:"driver,omitempty"`
}

// AppInfo describes the running nfcd instance
type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	SDKInfo   string `json:"sdk_info,omitempty"`
	Platform  string `json:"platform,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

// License is the host license as returned by /licenses/access.
// Policies are keyed by service; the console reads the "nfcd" entry.
type License struct {
	HostTier string                     `json:"host_tier"`
	Policies map[string]json.RawMessage `json:"policies"`
}

// PolicyNFCD is the policies key consumed by the console
const PolicyNFCD = "nfcd"

// JobStep is one command in a job
type JobStep struct {
	Command string `json:"command"`
	Params  any    `json:"params"`
}

// NewJob is the body of a job submission
type NewJob struct {
	JobName     string    `json:"job_name"`
	Repeat      int       `json:"repeat"`
	ExpireAfter int       `json:"expire_after"`
	Steps       []JobStep `json:"steps"`
}

// Job is a queued job with its run counters normalized
type Job struct {
	JobID     string    `json:"job_id"`
	JobName   string    `json:"job_name"`
	AdapterID string    `json:"adapter_id"`
	Repeat    int       `json:"repeat"`
	Steps     []JobStep `json:"steps,omitempty"`
	Counters  Counters  `json:"-"`
}

// Counters are the authoritative run counters of a job
type Counters struct {
	TotalRuns   int `json:"total_runs"`
	SuccessRuns int `json:"success_runs"`
	ErrorRuns   int `json:"error_runs"`
	Repeat      int `json:"repeat"`
}

// CommandStatus is the outcome of one step within a run
type CommandStatus string

const (
	CommandStatusSuccess CommandStatus = "success"
	CommandStatusError   CommandStatus = "error"
)

// StepResult is the outcome of one command in a run
type StepResult struct {
	Command string          `json:"command"`
	Status  CommandStatus   `json:"status"`
	Message string          `json:"message,omitempty"`
	Output  json.RawMessage `json:"output,omitempty"`
}

// JobRun is one execution of a job on an adapter
type JobRun struct {
	RunID       string       `json:"run_id"`
	JobID       string       `json:"job_id"`
	JobName     string       `json:"job_name"`
	AdapterID   string       `json:"adapter_id"`
	AdapterName string       `json:"adapter_name"`
	Status      string       `json:"status"`
	Success     bool         `json:"success"`
	Results     []StepResult `json:"results"`
	CreatedAt   string       `json:"created_at,omitempty"`
}

// FailedMessages returns the trimmed, non-empty messages of failed steps in order
func (r *JobRun) FailedMessages() []string {
	var out []string
	for _, res := range r.Results {
		if res.Status != CommandStatusError {
			continue
		}
		if msg := strings.TrimSpace(res.Message); msg != "" {
			out = append(out, msg)
		}
	}
	return out
}
