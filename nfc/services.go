package nfc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/taglme/console/errors"
)

// JobsService manages the per-adapter job queue
type JobsService struct{ c *Client }

// AddResult is the response to a job submission
type AddResult struct {
	JobID string
}

// Add queues a job on an adapter
func (s *JobsService) Add(ctx context.Context, adapterID string, job NewJob) (AddResult, error) {
	data, err := s.c.do(ctx, http.MethodPost, jobsPath(adapterID), job, nil)
	if err != nil {
		return AddResult{}, err
	}
	id := JobIDFrom(data)
	if id == "" {
		return AddResult{}, errors.New("nfcd accepted the job but returned no job id")
	}
	return AddResult{JobID: id}, nil
}

// Get fetches a job with normalized counters
func (s *JobsService) Get(ctx context.Context, adapterID, jobID string) (*Job, error) {
	var job Job
	data, err := s.c.do(ctx, http.MethodGet, jobPath(adapterID, jobID), nil, &job)
	if err != nil {
		return nil, err
	}
	if job.JobID == "" {
		job.JobID = JobIDFrom(data)
	}
	job.Counters = CountersFromJob(data)
	return &job, nil
}

// Delete removes one job from an adapter's queue
func (s *JobsService) Delete(ctx context.Context, adapterID, jobID string) error {
	_, err := s.c.do(ctx, http.MethodDelete, jobPath(adapterID, jobID), nil, nil)
	return err
}

// DeleteAll clears an adapter's queue
func (s *JobsService) DeleteAll(ctx context.Context, adapterID string) error {
	_, err := s.c.do(ctx, http.MethodDelete, jobsPath(adapterID), nil, nil)
	return err
}

// AdaptersService lists adapters
type AdaptersService struct{ c *Client }

// GetAll returns every adapter known to nfcd
func (s *AdaptersService) GetAll(ctx context.Context) ([]Adapter, error) {
	var raw json.RawMessage
	if _, err := s.c.do(ctx, http.MethodGet, "adapters", nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[Adapter](raw)
}

// AboutService reads application info
type AboutService struct{ c *Client }

// Get returns nfcd version information
func (s *AboutService) Get(ctx context.Context) (*AppInfo, error) {
	var info AppInfo
	if _, err := s.c.do(ctx, http.MethodGet, "about", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// LicensesService reads the host license
type LicensesService struct{ c *Client }

// GetAccess returns the active host license and its policies
func (s *LicensesService) GetAccess(ctx context.Context) (*License, error) {
	var lic License
	if _, err := s.c.do(ctx, http.MethodGet, "licenses/access", nil, &lic); err != nil {
		return nil, err
	}
	return &lic, nil
}

// decodeList accepts either a bare array or an {"items": [...]} envelope
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var envelope struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrap(err, "unexpected list response")
	}
	return envelope.Items, nil
}

func jobsPath(adapterID string) string {
	return fmt.Sprintf("adapters/%s/jobs", url.PathEscape(adapterID))
}

func jobPath(adapterID, jobID string) string {
	return fmt.Sprintf("adapters/%s/jobs/%s", url.PathEscape(adapterID), url.PathEscape(jobID))
}
