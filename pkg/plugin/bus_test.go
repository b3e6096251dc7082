package plugin_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/plugin"
)

func testExport(t *testing.T, pluginID string) *export.PluginDataExport {
	t.Helper()

	exp, err := export.NewBuilder(pluginID, "Title").Build()
	require.NoError(t, err)

	return exp
}

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	t.Parallel()

	bus := plugin.NewBus()

	var order []string

	bus.Subscribe(func(plugin.DataReady) error {
		order = append(order, "first")

		return nil
	})
	bus.Subscribe(func(plugin.DataReady) error {
		order = append(order, "second")

		return nil
	})

	errs := bus.Publish(plugin.DataReady{PluginID: "p", Export: testExport(t, "p")})
	assert.Empty(t, errs)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBusHandlerErrorDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	bus := plugin.NewBus()
	delivered := false

	bus.Subscribe(func(plugin.DataReady) error {
		return errors.New("subscriber gone")
	})
	bus.Subscribe(func(plugin.DataReady) error {
		delivered = true

		return nil
	})

	errs := bus.Publish(plugin.DataReady{PluginID: "p"})
	assert.Len(t, errs, 1)
	assert.True(t, delivered)
}

func TestBusUnsubscribe(t *testing.T) {
	t.Parallel()

	bus := plugin.NewBus()

	calls := 0
	id := bus.Subscribe(func(plugin.DataReady) error {
		calls++

		return nil
	})

	bus.Publish(plugin.DataReady{})
	bus.Unsubscribe(id)
	bus.Publish(plugin.DataReady{})

	assert.Equal(t, 1, calls)
	assert.Zero(t, bus.SubscriberCount())
}

func TestDataCoordinatorCompletion(t *testing.T) {
	t.Parallel()

	coord := plugin.NewDataCoordinator("scan-1")
	coord.Expect("commits", "metrics")

	assert.False(t, coord.IsComplete())
	assert.Equal(t, []string{"commits", "metrics"}, coord.PendingPlugins())

	coord.AddData("commits", testExport(t, "commits"))
	assert.False(t, coord.IsComplete())
	assert.Equal(t, []string{"metrics"}, coord.PendingPlugins())

	coord.AddData("metrics", testExport(t, "metrics"))
	assert.True(t, coord.IsComplete())
	assert.Empty(t, coord.PendingPlugins())
}

func TestDataCoordinatorNoExpectationsCompletesOnAnyData(t *testing.T) {
	t.Parallel()

	coord := plugin.NewDataCoordinator("scan-1")

	assert.False(t, coord.IsComplete())

	coord.AddData("anything", testExport(t, "anything"))
	assert.True(t, coord.IsComplete())
}

func TestDataCoordinatorClearThenReplayReproduces(t *testing.T) {
	t.Parallel()

	coord := plugin.NewDataCoordinator("scan-1")

	exports := []*export.PluginDataExport{
		testExport(t, "beta"),
		testExport(t, "alpha"),
	}

	addAll := func() {
		coord.AddData("beta", exports[0])
		coord.AddData("alpha", exports[1])
	}

	addAll()

	first := coord.AllData()

	coord.Clear()
	assert.False(t, coord.IsComplete())

	addAll()
	assert.Equal(t, first, coord.AllData())
}

func TestDataCoordinatorAllDataOrderedByPlugin(t *testing.T) {
	t.Parallel()

	coord := plugin.NewDataCoordinator("scan-1")

	coord.AddData("zeta", testExport(t, "zeta"))
	coord.AddData("alpha", testExport(t, "alpha"))

	data := coord.AllData()
	require.Len(t, data, 2)
	assert.Equal(t, "alpha", data[0].PluginID)
	assert.Equal(t, "zeta", data[1].PluginID)
}
