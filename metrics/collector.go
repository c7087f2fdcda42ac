// Package metrics exports a running phase.Instance's state as
// Prometheus metrics: current phase/topology, ring-delay gauges,
// per-slave activity, and address-scan/topology-edge instrumentation
// (SPEC_FULL.md §11).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sercos3/csmd/phase"
	"github.com/sercos3/csmd/topology"
)

type info struct {
	description *prometheus.Desc
	supplier    func(in *phase.Instance, labelValues []string) prometheus.Metric
}

type instanceEntry struct {
	labels []string
}

// Collector is the counterpart of the teacher's TCPInfoCollector
// (pkg/exporter): a live set of tracked instances, each re-scraped on
// every Collect call, with metric descriptions built once up front.
type Collector struct {
	instances map[*phase.Instance]instanceEntry
	mu        sync.Mutex
	logger    func(error)
	infos     []info

	topologyEdges       *prometheus.CounterVec
	addressScanDuration prometheus.Histogram
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	for _, i := range c.infos {
		descs <- i.description
	}
	c.topologyEdges.Describe(descs)
	c.addressScanDuration.Describe(descs)
}

// Collect implements prometheus.Collector, scraping every tracked
// instance's current state. Unlike the teacher's version (which drops a
// connection on a read error), an Instance read never fails: state is
// plain in-memory bookkeeping, not a live socket.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for in, entry := range c.instances {
		for _, i := range c.infos {
			metrics <- i.supplier(in, entry.labels)
		}
	}
	c.topologyEdges.Collect(metrics)
	c.addressScanDuration.Collect(metrics)
}

// Add starts tracking in, with the given label values (positional,
// matching the instanceLabels passed to NewCollector).
func (c *Collector) Add(in *phase.Instance, labels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.instances[in] = instanceEntry{labels: labels}
}

// Remove stops tracking in.
func (c *Collector) Remove(in *phase.Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.instances, in)
}

// ObserveTopologyEdge increments the topology-edge counter for a
// from->to transition (SPEC_FULL.md §11.1 item 3: ring-configuration
// change tracking), called by the driver loop whenever topology.Edge
// fires.
func (c *Collector) ObserveTopologyEdge(from, to topology.Topology) {
	c.topologyEdges.WithLabelValues(from.String(), to.String()).Inc()
}

// ObserveAddressScanDuration records how long one CP0 address scan
// took to stabilize or time out.
func (c *Collector) ObserveAddressScanDuration(seconds float64) {
	c.addressScanDuration.Observe(seconds)
}

// NewCollector builds a Collector. prefix namespaces every metric name
// (e.g. "sercos3"); instanceLabels names the per-instance label
// dimensions whose values are supplied positionally to Add;
// constLabels carries values constant for the whole process (e.g.
// hostname); errorLoggingCallback receives any non-fatal collection
// errors (reserved for future HAL-backed collectors; the in-memory
// Instance path never produces one).
func NewCollector(
	prefix string,
	instanceLabels []string,
	constLabels prometheus.Labels,
	errorLoggingCallback func(error),
) *Collector {
	c := &Collector{
		instances: make(map[*phase.Instance]instanceEntry),
		logger:    errorLoggingCallback,
	}
	c.addMetrics(prefix, instanceLabels, constLabels)
	return c
}

func (c *Collector) addMetrics(prefix string, labels []string, constLabels prometheus.Labels) {
	gauge := func(name, help string, value func(in *phase.Instance) float64) info {
		d := prometheus.NewDesc(prefix+"_"+name, help, labels, constLabels)
		return info{
			description: d,
			supplier: func(in *phase.Instance, lv []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(d, prometheus.GaugeValue, value(in), lv...)
			},
		}
	}
	counter := func(name, help string, value func(in *phase.Instance) float64) info {
		d := prometheus.NewDesc(prefix+"_"+name, help, labels, constLabels)
		return info{
			description: d,
			supplier: func(in *phase.Instance, lv []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(d, prometheus.CounterValue, value(in), lv...)
			},
		}
	}

	c.infos = []info{
		gauge("phase", "Current communication phase (NRT=0..CP4=5).", func(in *phase.Instance) float64 {
			return float64(in.Phase())
		}),
		gauge("topology", "Current recognized topology (NoLink=0..DefectRing(secondary)=6).", func(in *phase.Instance) float64 {
			return float64(in.Topology())
		}),
		gauge("recognized_slaves", "Number of recognized Sercos addresses.", func(in *phase.Instance) float64 {
			return float64(len(in.Slaves.Recognized))
		}),
		gauge("active_slaves", "Number of slaves with non-Inactive activity.", func(in *phase.Instance) float64 {
			return float64(len(in.Slaves.ActiveIndices()))
		}),
		gauge("multiple_saddress", "1 if the last address scan observed a duplicate recognized address.", func(in *phase.Instance) float64 {
			if in.MultipleSAddress() {
				return 1
			}
			return 0
		}),
		gauge("ring_delay_tsref_ns", "Derived TSref reference time, nanoseconds.", func(in *phase.Instance) float64 {
			return float64(in.RingDelayResult.TSref)
		}),
		gauge("ring_delay_s01015_p1_ns", "Derived S-0-1015 ring delay for port 1, nanoseconds.", func(in *phase.Instance) float64 {
			return float64(in.RingDelayResult.S0_1015_P1)
		}),
		gauge("ring_delay_s01015_p2_ns", "Derived S-0-1015 ring delay for port 2, nanoseconds.", func(in *phase.Instance) float64 {
			return float64(in.RingDelayResult.S0_1015_P2)
		}),
		gauge("ring_delay_avg_p1_ns", "Average measured port-1 propagation sample, nanoseconds.", func(in *phase.Instance) float64 {
			p1, _ := in.RingDelayAccumulators()
			return float64(p1.Average())
		}),
		gauge("ring_delay_avg_p2_ns", "Average measured port-2 propagation sample, nanoseconds.", func(in *phase.Instance) float64 {
			_, p2 := in.RingDelayAccumulators()
			return float64(p2.Average())
		}),
		gauge("ring_delay_min_p1_ns", "Minimum measured port-1 propagation sample, nanoseconds.", func(in *phase.Instance) float64 {
			p1, _ := in.RingDelayAccumulators()
			return float64(p1.Min())
		}),
		gauge("ring_delay_max_p1_ns", "Maximum measured port-1 propagation sample, nanoseconds.", func(in *phase.Instance) float64 {
			p1, _ := in.RingDelayAccumulators()
			return float64(p1.Max())
		}),
		gauge("ring_delay_min_p2_ns", "Minimum measured port-2 propagation sample, nanoseconds.", func(in *phase.Instance) float64 {
			_, p2 := in.RingDelayAccumulators()
			return float64(p2.Min())
		}),
		gauge("ring_delay_max_p2_ns", "Maximum measured port-2 propagation sample, nanoseconds.", func(in *phase.Instance) float64 {
			_, p2 := in.RingDelayAccumulators()
			return float64(p2.Max())
		}),
		gauge("diag_pending_slaves", "Number of distinct slave indices with a pending extended-diagnostic entry.", func(in *phase.Instance) float64 {
			return float64(in.Diag.NbrSlaves())
		}),
		counter("cycle_count", "Free-running cyclic-processing counter since init.", func(in *phase.Instance) float64 {
			return float64(in.CycleCount())
		}),
	}

	c.topologyEdges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        prefix + "_topology_edges_total",
		Help:        "Count of topology transitions, labeled by from/to topology.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})

	c.addressScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        prefix + "_address_scan_duration_seconds",
		Help:        "CP0 address-scan duration until stable or timeout.",
		ConstLabels: constLabels,
		Buckets:     prometheus.DefBuckets,
	})
}
