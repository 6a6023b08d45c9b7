package update

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	catalogmocks "github.com/stacklok/plugin-updater/internal/catalog/mocks"
	installermocks "github.com/stacklok/plugin-updater/internal/installer/mocks"
	"github.com/stacklok/plugin-updater/internal/status"
)

func newNamedCoordinator(t *testing.T, name string) *Coordinator {
	t.Helper()

	ctrl := gomock.NewController(t)
	c, err := New(context.Background(), name,
		catalogmocks.NewMockFetcher(ctrl), installermocks.NewMockInstaller(ctrl), nil)
	require.NoError(t, err)
	return c
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	assert.Empty(t, registry.Names())

	beta := newNamedCoordinator(t, "beta")
	alpha := newNamedCoordinator(t, "alpha")
	require.NoError(t, registry.Register(beta))
	require.NoError(t, registry.Register(alpha))

	err := registry.Register(newNamedCoordinator(t, "alpha"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"alpha" is already registered`)
	require.Error(t, registry.Register(nil))

	assert.Equal(t, []string{"alpha", "beta"}, registry.Names())

	got, ok := registry.Get("beta")
	require.True(t, ok)
	assert.Same(t, beta, got)

	_, ok = registry.Get("gamma")
	assert.False(t, ok)

	require.NoError(t, registry.CloseAll(context.Background()))

	resp := alpha.Submit(context.Background(), Request{ResourceID: "1", Lookup: true})
	assert.Equal(t, OutcomeFailBusy, resp.Result)
	assert.Equal(t, status.CodeReady, alpha.Status().Status)
}

func TestRegistriesAreIndependent(t *testing.T) {
	t.Parallel()

	first := NewRegistry()
	second := NewRegistry()

	require.NoError(t, first.Register(newNamedCoordinator(t, "myplugin")))
	require.NoError(t, second.Register(newNamedCoordinator(t, "myplugin")))

	a, _ := first.Get("myplugin")
	b, _ := second.Get("myplugin")
	assert.NotSame(t, a, b)
}
