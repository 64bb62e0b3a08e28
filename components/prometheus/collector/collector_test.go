package collector

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/ierrors"
)

func TestCollector(t *testing.T) {
	var tips float64
	initialized := false

	c := New()
	require.NoError(t, c.RegisterCollection(NewCollection("tangle",
		WithMetric(NewMetric("tips",
			WithType(Gauge),
			WithCollectFunc(func() (float64, []string) {
				return tips, nil
			}),
		)),
		WithMetric(NewMetric("blocks_total",
			WithType(Counter),
			WithInitFunc(func() {
				initialized = true
			}),
		)),
		WithMetric(NewMetric("conflicts_total",
			WithType(Counter),
			WithLabels("reason"),
		)),
		WithMetric(NewMetric("confirmation_seconds",
			WithType(Histogram),
			WithBuckets(0.1, 1),
		)),
	)))
	require.True(t, initialized)

	tips = 3
	require.NoError(t, c.Collect())
	require.EqualValues(t, 3, testutil.ToFloat64(c.collections["tangle"].Metric("tips").promMetric))

	require.NoError(t, c.Increment("tangle", "blocks_total"))
	require.NoError(t, c.Update("tangle", "blocks_total", 2))
	require.EqualValues(t, 3, testutil.ToFloat64(c.collections["tangle"].Metric("blocks_total").promMetric))

	require.NoError(t, c.Increment("tangle", "conflicts_total", "inputSpent"))
	require.True(t, ierrors.Is(c.Increment("tangle", "conflicts_total"), ErrLabelMismatch))

	require.NoError(t, c.Update("tangle", "confirmation_seconds", 0.5))
	require.Equal(t, 1, testutil.CollectAndCount(c.collections["tangle"].Metric("confirmation_seconds").promMetric))

	require.True(t, ierrors.Is(c.Increment("tangle", "unknown"), ErrMetricNotFound))
	require.True(t, ierrors.Is(c.Increment("ledger", "tips"), ErrMetricNotFound))

	require.Error(t, c.RegisterCollection(NewCollection("tangle")))
}

func TestCollection_MetricOrder(t *testing.T) {
	coll := NewCollection("milestones",
		WithMetric(NewMetric("ledger_index")),
		WithMetric(NewMetric("confirmed_total", WithType(Counter))),
		WithMetric(NewMetric("ledger_index", WithHelp("replaced"))),
		WithMetric(nil),
	)

	require.Equal(t, "milestones", coll.Namespace())
	require.Equal(t, []string{"ledger_index", "confirmed_total"}, coll.MetricNames())
	require.Equal(t, "milestones", coll.Metric("confirmed_total").Namespace)
	require.Nil(t, coll.Metric("unknown"))

	var visited []string
	coll.ForEachMetric(func(m *Metric) {
		visited = append(visited, m.Name)
	})
	require.Equal(t, coll.MetricNames(), visited)
}
