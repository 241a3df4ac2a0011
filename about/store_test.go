package about

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taglme/console/errors"
	"github.com/taglme/console/nfc"
)

type fakeGetter struct {
	info *nfc.AppInfo
	err  error
}

func (f *fakeGetter) Get(context.Context) (*nfc.AppInfo, error) {
	return f.info, f.err
}

func TestStoreRefresh(t *testing.T) {
	getter := &fakeGetter{info: &nfc.AppInfo{Name: "nfcd", Version: "1.4.2"}}
	store := NewStore(getter, nil)

	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, "1.4.2", store.Info().Version)
	assert.Empty(t, store.Err())

	getter.err = errors.New("timeout")
	require.Error(t, store.Refresh(context.Background()))
	assert.Nil(t, store.Info())
	assert.Equal(t, "timeout", store.Err())
}

func TestStoreCompatible(t *testing.T) {
	store := NewStore(&fakeGetter{info: &nfc.AppInfo{Version: "v1.4.2"}}, nil)

	assert.Error(t, store.Compatible(">= 1.0"), "unknown before refresh")
	require.NoError(t, store.Refresh(context.Background()))

	assert.NoError(t, store.Compatible(""))
	assert.NoError(t, store.Compatible(">= 1.2, < 2"))
	assert.Error(t, store.Compatible(">= 2"))
	assert.Error(t, store.Compatible("not a constraint"))
}

func TestStoreCompatibleInvalidVersion(t *testing.T) {
	store := NewStore(&fakeGetter{info: &nfc.AppInfo{Version: "dev"}}, nil)
	require.NoError(t, store.Refresh(context.Background()))
	assert.Error(t, store.Compatible(">= 1.0"))
}
