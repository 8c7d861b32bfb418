package consensus

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "consensus"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Logical time of the current branch.
	CurrentBranchTime metrics.Gauge
	// Number of known branches.
	KnownBranches metrics.Gauge
	// Number of stored nodes.
	StoredNodes metrics.Gauge
	// Length of the maximal known committed node.
	CommittedLength metrics.Gauge
	// 1 while leading the current branch.
	Leading metrics.Gauge

	BranchesStarted metrics.Counter
	Abandonments    metrics.Counter
	CommitsAdvanced metrics.Counter

	// Inbound messages by msg_type.
	ReceivedMessages metrics.Counter
	DroppedMessages  metrics.Counter
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	gauge := func(name, help string) metrics.Gauge {
		return prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      name,
			Help:      help,
		}, labels).With(labelsAndValues...)
	}
	counter := func(name, help string, extra ...string) metrics.Counter {
		return prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      name,
			Help:      help,
		}, append(append([]string{}, labels...), extra...)).With(labelsAndValues...)
	}

	return &Metrics{
		CurrentBranchTime: gauge("current_branch_lt", "Logical time of the current branch."),
		KnownBranches:     gauge("known_branches", "Number of known branches."),
		StoredNodes:       gauge("stored_nodes", "Number of stored nodes."),
		CommittedLength:   gauge("committed_length", "Length of the maximal known committed node."),
		Leading:           gauge("leading", "Whether the process leads its current branch."),

		BranchesStarted: counter("branches_started", "Number of branches started by this process."),
		Abandonments:    counter("abandonments", "Number of own branches abandoned."),
		CommitsAdvanced: counter("commits_advanced", "Number of node ids added to the known committed set."),

		ReceivedMessages: counter("received_messages", "Number of handled messages.", "msg_type"),
		DroppedMessages:  counter("dropped_messages", "Number of dropped messages.", "msg_type"),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		CurrentBranchTime: discard.NewGauge(),
		KnownBranches:     discard.NewGauge(),
		StoredNodes:       discard.NewGauge(),
		CommittedLength:   discard.NewGauge(),
		Leading:           discard.NewGauge(),
		BranchesStarted:   discard.NewCounter(),
		Abandonments:      discard.NewCounter(),
		CommitsAdvanced:   discard.NewCounter(),
		ReceivedMessages:  discard.NewCounter(),
		DroppedMessages:   discard.NewCounter(),
	}
}
