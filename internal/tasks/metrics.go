package tasks

import "github.com/prometheus/client_golang/prometheus"

var (
	storeMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_store_mutations_total",
			Help: "Task store mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	storeWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_store_writes_total",
			Help: "Persistence writes issued by the task store",
		},
		[]string{"key", "result"},
	)
)

func init() {
	prometheus.MustRegister(storeMutationsTotal, storeWritesTotal)
}
