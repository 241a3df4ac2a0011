package nfc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taglme/console/errors"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

type recorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (r *recorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.reqs...)
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body), Header: r.Header.Clone()})
		rec.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL + "/", Locale: "en", AppKey: "key-1", UserAgent: "tagconsole/test"})
	require.NoError(t, err)
	return c, rec
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "ftp://127.0.0.1"})
	assert.Error(t, err)

	_, err = NewClient(Options{BaseURL: "http://user:pw@127.0.0.1:3011"})
	assert.Error(t, err)
}

func TestJobsAdd(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"jobID":"job-42"}`))
	})

	res, err := c.Jobs.Add(context.Background(), "adapter/1", NewJob{
		JobName:     "Read tag",
		Repeat:      3,
		ExpireAfter: 60,
		Steps:       []JobStep{{Command: "get_tags", Params: map[string]any{}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-42", res.JobID)

	require.Len(t, reqs.all(), 1)
	req := reqs.all()[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/adapters/adapter/1/jobs", req.Path)
	assert.Equal(t, "key-1", req.Header.Get("X-App-Key"))
	assert.Equal(t, "en", req.Header.Get("Accept-Language"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Body), &body))
	assert.Equal(t, "Read tag", body["job_name"])
	assert.Equal(t, float64(3), body["repeat"])
	assert.Equal(t, float64(60), body["expire_after"])
}

func TestJobsAddWithoutJobID(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.Jobs.Add(context.Background(), "a1", NewJob{})
	assert.Error(t, err)
}

func TestJobsGetNormalizesCounters(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Counters
	}{
		{
			name: "snake case",
			body: `{"job_id":"j1","total_runs":5,"success_runs":4,"error_runs":1,"repeat":10}`,
			want: Counters{TotalRuns: 5, SuccessRuns: 4, ErrorRuns: 1, Repeat: 10},
		},
		{
			name: "camel case wins over snake case",
			body: `{"jobId":"j1","totalRuns":7,"total_runs":1,"successRuns":6,"errorRuns":1,"repeat":7}`,
			want: Counters{TotalRuns: 7, SuccessRuns: 6, ErrorRuns: 1, Repeat: 7},
		},
		{
			name: "missing counters read as zero",
			body: `{"job_id":"j1"}`,
			want: Counters{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			job, err := c.Jobs.Get(context.Background(), "a1", "j1")
			require.NoError(t, err)
			assert.Equal(t, "j1", job.JobID)
			assert.Equal(t, tt.want, job.Counters)
			assert.Equal(t, "/adapters/a1/jobs/j1", reqs.all()[0].Path)
		})
	}
}

func TestJobsDelete(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Jobs.Delete(context.Background(), "a1", "j1"))
	require.NoError(t, c.Jobs.DeleteAll(context.Background(), "a1"))

	require.Len(t, reqs.all(), 2)
	assert.Equal(t, http.MethodDelete, reqs.all()[0].Method)
	assert.Equal(t, "/adapters/a1/jobs/j1", reqs.all()[0].Path)
	assert.Equal(t, "/adapters/a1/jobs", reqs.all()[1].Path)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusNotFound, errors.ErrNotFound},
		{http.StatusUnauthorized, errors.ErrUnauthorized},
		{http.StatusForbidden, errors.ErrForbidden},
		{http.StatusServiceUnavailable, errors.ErrServiceUnavailable},
		{http.StatusUnprocessableEntity, errors.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})

			err := c.Jobs.DeleteAll(context.Background(), "a1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Contains(t, apiErr.Body, "nope")
		})
	}
}

func TestServerErrorHasNoSentinel(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.About.Get(context.Background())
	require.Error(t, err)
	assert.False(t, errors.IsAny(err, errors.ErrNotFound, errors.ErrInvalidRequest))
	assert.Contains(t, err.Error(), "status=500")
}

func TestAdaptersGetAll(t *testing.T) {
	for name, body := range map[string]string{
		"bare array": `[{"adapter_id":"a1","name":"ACR122","kind":"usb"}]`,
		"envelope":   `{"items":[{"adapter_id":"a1","name":"ACR122","kind":"usb"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			adapters, err := c.Adapters.GetAll(context.Background())
			require.NoError(t, err)
			require.Len(t, adapters, 1)
			assert.Equal(t, Adapter{AdapterID: "a1", Name: "ACR122", Kind: "usb"}, adapters[0])
		})
	}
}

func TestAboutAndLicense(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/about":
			_, _ = w.Write([]byte(`{"name":"nfcd","version":"1.4.2"}`))
		case "/licenses/access":
			_, _ = w.Write([]byte(`{"host_tier":"pro","policies":{"nfcd":{"allowed_scopes":["job:*"]}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	info, err := c.About.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", info.Version)

	lic, err := c.Licenses.GetAccess(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pro", lic.HostTier)
	assert.JSONEq(t, `{"allowed_scopes":["job:*"]}`, string(lic.Policies[PolicyNFCD]))
}

func TestSetLocaleChangesHeader(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	c.SetLocale("ru")
	_, err := c.About.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ru", reqs.all()[0].Header.Get("Accept-Language"))
}
