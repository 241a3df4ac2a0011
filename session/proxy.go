package session

import (
	"context"

	"github.com/taglme/console/nfc"
)

// The stores and the tracker outlive a client rebuild, so they reach nfcd
// through these proxies, which resolve the current client on every call.

type jobsProxy struct{ s *Session }

func (p jobsProxy) Get(ctx context.Context, adapterID, jobID string) (*nfc.Job, error) {
	return p.s.Client().Jobs.Get(ctx, adapterID, jobID)
}

func (p jobsProxy) Delete(ctx context.Context, adapterID, jobID string) error {
	return p.s.Client().Jobs.Delete(ctx, adapterID, jobID)
}

func (p jobsProxy) Add(ctx context.Context, adapterID string, job nfc.NewJob) (nfc.AddResult, error) {
	return p.s.Client().Jobs.Add(ctx, adapterID, job)
}

func (p jobsProxy) DeleteAll(ctx context.Context, adapterID string) error {
	return p.s.Client().Jobs.DeleteAll(ctx, adapterID)
}

type adaptersProxy struct{ s *Session }

func (p adaptersProxy) GetAll(ctx context.Context) ([]nfc.Adapter, error) {
	return p.s.Client().Adapters.GetAll(ctx)
}

type aboutProxy struct{ s *Session }

func (p aboutProxy) Get(ctx context.Context) (*nfc.AppInfo, error) {
	return p.s.Client().About.Get(ctx)
}

type licenseProxy struct{ s *Session }

func (p licenseProxy) GetAccess(ctx context.Context) (*nfc.License, error) {
	return p.s.Client().Licenses.GetAccess(ctx)
}
