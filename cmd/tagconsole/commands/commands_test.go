package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taglme/console/am"
	"github.com/taglme/console/errors"
	"github.com/taglme/console/internal/util"
	"github.com/taglme/console/license"
)

func TestReadDraftFromSteps(t *testing.T) {
	draft, err := readDraft("", []string{"get_tags", `write_ndef text="hello world" lock=true`}, 3, false)
	require.NoError(t, err)

	assert.Equal(t, 3.0, draft.Repeat)
	require.Len(t, draft.Steps, 2)
	assert.Equal(t, "get_tags", draft.Steps[0].Command)
	assert.Equal(t, "write_ndef", draft.Steps[1].Command)
	assert.Equal(t, map[string]any{"text": "hello world", "lock": true}, draft.Steps[1].Params)
}

func TestReadDraftFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repeat: 4\nsteps:\n  - command: get_tags\n"), 0o600))

	draft, err := readDraft(path, nil, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 4.0, draft.Repeat)

	draft, err = readDraft(path, nil, 9, true)
	require.NoError(t, err)
	assert.Equal(t, 9.0, draft.Repeat, "an explicit --repeat overrides the file")
}

func TestReadDraftErrors(t *testing.T) {
	_, err := readDraft("", nil, 1, false)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = readDraft("job.yaml", []string{"get_tags"}, 1, false)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = readDraft(filepath.Join(t.TempDir(), "missing.yaml"), nil, 1, false)
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"policy", errors.NewPolicyRejection("no"), exitPolicy},
		{"rate limited", errors.NewRateLimited(2, "window"), exitRateLimited},
		{"transport", errors.WrapTransport(errors.New("refused"), "add job"), exitTransport},
		{"other", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestFormatErrorIncludesHints(t *testing.T) {
	err := errors.WithHint(errors.New("no adapter selected"), "pass --adapter")
	out := FormatError(err)
	assert.Contains(t, out, "no adapter selected")
	assert.Contains(t, out, "pass --adapter")
}

func TestNestSettings(t *testing.T) {
	tree := nestSettings([]am.SettingInfo{
		{Key: "service.base_url", Value: "http://127.0.0.1:3011"},
		{Key: "service.locale", Value: "en"},
		{Key: "log.json", Value: false},
	})
	assert.Equal(t, map[string]any{
		"service": map[string]any{"base_url": "http://127.0.0.1:3011", "locale": "en"},
		"log":     map[string]any{"json": false},
	}, tree)
}

func TestRateRows(t *testing.T) {
	assert.Equal(t, [][]string{{"Rate limit", "none"}}, rateRows(nil))
	assert.Equal(t, [][]string{{"Rate limit", "none"}}, rateRows(&license.RateLimit{MinIntervalMs: util.Ptr(int64(0))}))

	rows := rateRows(&license.RateLimit{
		MinIntervalMs: util.Ptr(int64(500)),
		WindowMs:      util.Ptr(int64(1000)),
		MaxInWindow:   util.Ptr(int64(2)),
	})
	assert.Equal(t, [][]string{
		{"Min interval", "500 ms"},
		{"Window", "2 jobs / 1000 ms"},
	}, rows)
}

func TestLimitText(t *testing.T) {
	assert.Equal(t, "unlimited", limitText(0))
	assert.Equal(t, "5", limitText(5))
	assert.Equal(t, "any", listText(nil, "any"))
	assert.Equal(t, "a, b", listText([]string{"a", "b"}, "-"))
}
