package dag

import "github.com/prometheus/client_golang/prometheus"

type dagMetrics struct {
	admitted prometheus.Counter
	rejected prometheus.Counter
	loose    prometheus.Counter
	pruned   prometheus.Counter
	epochs   prometheus.Counter

	poolSize     prometheus.Gauge
	tips         prometheus.Gauge
	looseNodes   prometheus.Gauge
	currentEpoch prometheus.Gauge
}

// newMetrics registers the collectors when reg is not nil
func newMetrics(reg *prometheus.Registry) dagMetrics {
	m := dagMetrics{
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dag_nodes_admitted",
			Help: "nodes inserted into the node pool",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dag_nodes_rejected",
			Help: "duplicate, stale or invalid nodes",
		}),
		loose: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dag_nodes_loose",
			Help: "nodes recorded as loose",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dag_nodes_pruned",
			Help: "stale nodes dropped from the pool",
		}),
		epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dag_epochs_committed",
			Help: "epochs committed",
		}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dag_pool_size",
			Help: "nodes in the node pool",
		}),
		tips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dag_tips",
			Help: "size of the tip index",
		}),
		looseNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dag_loose_nodes",
			Help: "nodes waiting on missing references",
		}),
		currentEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dag_current_epoch",
			Help: "block number of the most recent epoch",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.admitted, m.rejected, m.loose, m.pruned, m.epochs,
			m.poolSize, m.tips, m.looseNodes, m.currentEpoch)
	}
	return m
}

func (d *DAG) updateGaugesNoLock() {
	d.metrics.poolSize.Set(float64(len(d.pool)))
	d.metrics.tips.Set(float64(len(d.tips)))
	d.metrics.looseNodes.Set(float64(len(d.loose)))
	d.metrics.currentEpoch.Set(float64(d.mostRecentEpoch))
}
