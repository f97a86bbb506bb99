package checkpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WritesTotal tracks successful artifact writes.
	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_checkpoint_writes_total",
			Help: "Total number of checkpoint artifact writes",
		},
		[]string{"artifact"}, // "references", "records", "progress"
	)

	// ArtifactBytes tracks the size of the last write per artifact.
	ArtifactBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scraper_checkpoint_bytes",
			Help: "Size in bytes of the last checkpoint artifact write",
		},
		[]string{"artifact"},
	)

	// ErrorsTotal tracks failed checkpoint operations.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_checkpoint_errors_total",
			Help: "Total number of checkpoint operation errors",
		},
		[]string{"operation"}, // "read", "write", "remove"
	)
)
