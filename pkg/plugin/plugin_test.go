package plugin_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/plugin"
)

// fakePlugin is a scripted plugin for registry tests.
type fakePlugin struct {
	info      plugin.Info
	functions []plugin.Function

	initCalls    int
	cleanupCalls int
	initErr      error
}

func (f *fakePlugin) PluginInfo() plugin.Info { return f.info }

func (f *fakePlugin) AdvertisedFunctions() []plugin.Function { return f.functions }

func (f *fakePlugin) Initialize(*plugin.Context) error {
	f.initCalls++

	return f.initErr
}

func (f *fakePlugin) Execute(plugin.Request) (plugin.Response, error) {
	exp, err := export.NewBuilder(f.info.Name, "Test").Build()
	if err != nil {
		return plugin.Response{}, err
	}

	return plugin.Response{Export: exp}, nil
}

func (f *fakePlugin) Cleanup() error {
	f.cleanupCalls++

	return nil
}

func newFake(name string, activeByDefault bool, functions ...plugin.Function) *fakePlugin {
	if len(functions) == 0 {
		functions = []plugin.Function{{Name: name + "-run", IsDefault: true}}
	}

	return &fakePlugin{
		info: plugin.Info{
			Name:            name,
			Version:         "1.0.0",
			APIVersion:      plugin.APIVersion,
			Type:            plugin.Processing,
			ActiveByDefault: activeByDefault,
		},
		functions: functions,
	}
}

func TestRegisterRejectsDuplicatePluginNames(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()

	require.NoError(t, reg.Register(newFake("commits", false)))

	err := reg.Register(newFake("commits", false))
	require.ErrorIs(t, err, plugin.ErrDuplicatePlugin)
}

func TestRegisterRejectsDuplicateFunctionNames(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()

	require.NoError(t, reg.Register(newFake("a", false, plugin.Function{Name: "run", IsDefault: true})))

	err := reg.Register(newFake("b", false, plugin.Function{Name: "run", IsDefault: true}))
	require.ErrorIs(t, err, plugin.ErrDuplicateFunction)
}

func TestRegisterRequiresExactlyOneDefault(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()

	none := newFake("none", false, plugin.Function{Name: "x"})
	require.ErrorIs(t, reg.Register(none), plugin.ErrNoDefaultFunction)

	two := newFake("two", false,
		plugin.Function{Name: "y", IsDefault: true},
		plugin.Function{Name: "z", IsDefault: true},
	)
	require.ErrorIs(t, reg.Register(two), plugin.ErrNoDefaultFunction)
}

func TestActivation(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()

	require.NoError(t, reg.Register(newFake("default-on", true)))
	require.NoError(t, reg.Register(newFake("opt-in", false)))

	reg.ActivateDefaults()
	assert.Equal(t, []string{"default-on"}, reg.ActiveNames())

	// Activation by function name.
	name, err := reg.Activate("opt-in-run")
	require.NoError(t, err)
	assert.Equal(t, "opt-in", name)

	assert.Equal(t, []string{"default-on", "opt-in"}, reg.ActiveNames())

	_, err = reg.Activate("nope")
	require.ErrorIs(t, err, plugin.ErrUnknownFunction)
}

func TestInitializeOncePerPlugin(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()
	fake := newFake("p", true)

	require.NoError(t, reg.Register(fake))
	reg.ActivateDefaults()

	ctx := &plugin.Context{ScanID: "scan-1"}
	require.NoError(t, reg.InitializeActive(ctx))
	require.NoError(t, reg.InitializeActive(ctx))

	assert.Equal(t, 1, fake.initCalls)
}

func TestExecuteBeforeInitializeFails(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(newFake("p", false)))

	_, err := reg.Execute("p-run", plugin.Request{})
	require.ErrorIs(t, err, plugin.ErrNotInitialized)
}

func TestExecuteDispatchesToOwner(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(newFake("p", true)))

	reg.ActivateDefaults()
	require.NoError(t, reg.InitializeActive(&plugin.Context{}))

	resp, err := reg.Execute("p-run", plugin.Request{})
	require.NoError(t, err)
	require.NotNil(t, resp.Export)
	assert.Equal(t, "p", resp.Export.PluginID)
}

func TestCleanupIdempotent(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()
	fake := newFake("p", true)

	require.NoError(t, reg.Register(fake))
	reg.ActivateDefaults()
	require.NoError(t, reg.InitializeActive(&plugin.Context{}))

	require.NoError(t, reg.CleanupAll())
	require.NoError(t, reg.CleanupAll())

	assert.Equal(t, 1, fake.cleanupCalls)
}

func TestInitializeFailureIsFatal(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()
	fake := newFake("broken", true)
	fake.initErr = errors.New("bad config")

	require.NoError(t, reg.Register(fake))
	reg.ActivateDefaults()

	err := reg.InitializeActive(&plugin.Context{})
	require.Error(t, err)
}

func TestResolveFunction(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(newFake("commits", false,
		plugin.Function{Name: "commits", IsDefault: true},
		plugin.Function{Name: "authors"},
	)))

	pluginName, functionName, err := reg.ResolveFunction("authors")
	require.NoError(t, err)
	assert.Equal(t, "commits", pluginName)
	assert.Equal(t, "authors", functionName)

	// A plugin name resolves to its default function.
	pluginName, functionName, err = reg.ResolveFunction("commits")
	require.NoError(t, err)
	assert.Equal(t, "commits", pluginName)
	assert.Equal(t, "commits", functionName)

	_, _, err = reg.ResolveFunction("missing")
	require.ErrorIs(t, err, plugin.ErrUnknownPlugin)
}
