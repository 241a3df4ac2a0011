package nfc

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/taglme/console/errors"
)

// EventName identifies a stream event
type EventName string

const (
	EventJobSubmitted EventName = "job_submitted"
	EventRunStarted   EventName = "run_started"
	EventRunSuccess   EventName = "run_success"
	EventRunError     EventName = "run_error"
	EventJobFinished  EventName = "job_finished"
	EventJobDeleted   EventName = "job_deleted"
)

// Event is one message from the nfcd event stream.
// Names outside the known set are passed through untouched.
type Event struct {
	Name EventName       `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IsRunCompletion reports whether the event closes a run
func (e Event) IsRunCompletion() bool {
	return e.Name == EventRunSuccess || e.Name == EventRunError
}

// JobID returns the job id the event refers to, or "" if it carries none
func (e Event) JobID() string {
	return JobIDFrom(e.Data)
}

// jobIDKeys are the spellings nfcd uses for a job id, in lookup order
var jobIDKeys = []string{"job_id", "jobID", "jobId"}

// JobIDFrom extracts a job id from a JSON object accepting snake and camel case keys.
// Non-object payloads and non-string ids yield "".
func JobIDFrom(data []byte) string {
	fields, ok := objectFields(data)
	if !ok {
		return ""
	}
	for _, key := range jobIDKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			continue
		}
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

// ParseJobRun decodes a run payload from a run_success or run_error event
func ParseJobRun(data []byte) (*JobRun, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, errors.New("run payload is empty")
	}

	var run JobRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrap(err, "invalid run payload")
	}
	if run.JobID == "" {
		run.JobID = JobIDFrom(data)
	}
	if run.AdapterID == "" {
		run.AdapterID = stringField(data, "adapterID", "adapterId")
	}
	return &run, nil
}

// counterKeys maps each counter to its accepted spellings, camel case first
var counterKeys = struct {
	total, success, errs, repeat []string
}{
	total:   []string{"totalRuns", "total_runs"},
	success: []string{"successRuns", "success_runs"},
	errs:    []string{"errorRuns", "error_runs"},
	repeat:  []string{"repeat"},
}

// CountersFromJob normalizes job counters from either spelling.
// Missing or non-numeric counters read as zero.
func CountersFromJob(data []byte) Counters {
	fields, ok := objectFields(data)
	if !ok {
		return Counters{}
	}
	return Counters{
		TotalRuns:   intField(fields, counterKeys.total...),
		SuccessRuns: intField(fields, counterKeys.success...),
		ErrorRuns:   intField(fields, counterKeys.errs...),
		Repeat:      intField(fields, counterKeys.repeat...),
	}
}

func objectFields(data []byte) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func intField(fields map[string]json.RawMessage, keys ...string) int {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || bytes.Equal(raw, []byte("null")) {
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		return int(n)
	}
	return 0
}

func stringField(data []byte, keys ...string) string {
	fields, ok := objectFields(data)
	if !ok {
		return ""
	}
	for _, key := range keys {
		var s string
		if raw, ok := fields[key]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}
