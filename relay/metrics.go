package relay

import (
	"osc-relay/frame"
	"osc-relay/gate"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	DirectionHostToDevice = "host_to_device"
	DirectionDeviceToHost = "device_to_host"
)

const (
	ReasonMalformed   = "malformed"
	ReasonFraming     = "framing"
	ReasonTranslation = "translation"
	ReasonOther       = "other"
)

var dropReasons = []string{ReasonMalformed, ReasonFraming, ReasonTranslation, ReasonOther}

type Metrics struct {
	received  *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	forwarded *prometheus.CounterVec
	depth     *prometheus.GaugeVec
}

// NewMetrics creates the relay collectors and registers them on reg.
// A nil reg leaves them unregistered, which is handy for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "oscrelay",
				Name:      "packets_received_total",
				Help:      "Datagrams received from a peer.",
			},
			[]string{"direction"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "oscrelay",
				Name:      "packets_dropped_total",
				Help:      "Datagrams dropped because they could not be decoded.",
			},
			[]string{"direction", "reason"},
		),
		forwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "oscrelay",
				Name:      "packets_forwarded_total",
				Help:      "Datagrams sent on to the other peer.",
			},
			[]string{"direction"},
		),
		depth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "oscrelay",
				Name:      "queue_depth",
				Help:      "Items waiting in the relay queue.",
			},
			[]string{"direction"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.received, m.dropped, m.forwarded, m.depth)
	}

	return m
}

// directionMetrics is the slice of [Metrics] one direction writes to.
type directionMetrics struct {
	received  prometheus.Counter
	forwarded prometheus.Counter
	dropped   map[string]prometheus.Counter
	depth     prometheus.Gauge
}

func (m *Metrics) direction(dir string) directionMetrics {
	dm := directionMetrics{
		received:  m.received.WithLabelValues(dir),
		forwarded: m.forwarded.WithLabelValues(dir),
		dropped:   make(map[string]prometheus.Counter, len(dropReasons)),
		depth:     m.depth.WithLabelValues(dir),
	}
	for _, reason := range dropReasons {
		dm.dropped[reason] = m.dropped.WithLabelValues(dir, reason)
	}
	return dm
}

func (dm directionMetrics) drop(err error) {
	dm.dropped[dropReason(err)].Inc()
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, frame.ErrMalformedPacket):
		return ReasonMalformed
	case errors.Is(err, frame.ErrEmptyEnvelope),
		errors.Is(err, frame.ErrMultiplexedEnvelope),
		errors.Is(err, frame.ErrNestedEnvelope),
		errors.Is(err, frame.ErrBareMessage):
		return ReasonFraming
	case errors.Is(err, gate.ErrUnknownAddress),
		errors.Is(err, gate.ErrArityMismatch):
		return ReasonTranslation
	default:
		return ReasonOther
	}
}

// snapshot reads the current totals for the stats log.
type snapshot struct {
	received, forwarded, dropped float64
}

func (dm directionMetrics) snapshot() snapshot {
	s := snapshot{
		received:  counterValue(dm.received),
		forwarded: counterValue(dm.forwarded),
	}
	for _, c := range dm.dropped {
		s.dropped += counterValue(c)
	}
	return s
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
