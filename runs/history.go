// Package runs keeps the most recent job run per adapter and per job,
// fed from run completion events on the nfcd stream.
package runs

import (
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/taglme/console/nfc"
)

// History is a last-write-wins cache of completed runs
type History struct {
	byAdapter  *cache.Cache
	byJob      *cache.Cache
	eventByJob *cache.Cache

	mu         sync.RWMutex
	parseError string
}

// NewHistory creates an empty history. Entries never expire; Clear drops them.
func NewHistory() *History {
	return &History{
		byAdapter:  cache.New(cache.NoExpiration, 0),
		byJob:      cache.New(cache.NoExpiration, 0),
		eventByJob: cache.New(cache.NoExpiration, 0),
	}
}

// Ingest records run_success and run_error events and ignores everything else.
// A payload that fails to parse is kept as ParseError and leaves earlier runs in place.
func (h *History) Ingest(ev nfc.Event) {
	if !ev.IsRunCompletion() || len(ev.Data) == 0 {
		return
	}

	run, err := nfc.ParseJobRun(ev.Data)
	if err != nil {
		h.mu.Lock()
		h.parseError = err.Error()
		h.mu.Unlock()
		return
	}

	if run.AdapterID != "" {
		h.byAdapter.SetDefault(run.AdapterID, run)
	}
	if run.JobID != "" {
		h.byJob.SetDefault(run.JobID, run)
		h.eventByJob.SetDefault(run.JobID, ev.Name)
	}

	h.mu.Lock()
	h.parseError = ""
	h.mu.Unlock()
}

// LastRunByAdapter returns the latest run on an adapter
func (h *History) LastRunByAdapter(adapterID string) (*nfc.JobRun, bool) {
	return lookup(h.byAdapter, adapterID)
}

// LastRunByJob returns the latest run of a job
func (h *History) LastRunByJob(jobID string) (*nfc.JobRun, bool) {
	return lookup(h.byJob, jobID)
}

// LastEventByJob returns the name of the latest run event of a job
func (h *History) LastEventByJob(jobID string) (nfc.EventName, bool) {
	v, ok := h.eventByJob.Get(jobID)
	if !ok {
		return "", false
	}
	return v.(nfc.EventName), true
}

// ParseError returns the last payload parse failure, empty after a good event
func (h *History) ParseError() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.parseError
}

// Clear drops every recorded run
func (h *History) Clear() {
	h.byAdapter.Flush()
	h.byJob.Flush()
	h.eventByJob.Flush()

	h.mu.Lock()
	h.parseError = ""
	h.mu.Unlock()
}

func lookup(c *cache.Cache, key string) (*nfc.JobRun, bool) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*nfc.JobRun), true
}
