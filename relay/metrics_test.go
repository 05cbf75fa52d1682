package relay

import (
	"testing"

	"osc-relay/frame"
	"osc-relay/gate"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropReason(t *testing.T) {
	tests := []struct {
		err    error
		reason string
	}{
		{errors.Wrap(frame.ErrMalformedPacket, "short"), ReasonMalformed},
		{frame.ErrEmptyEnvelope, ReasonFraming},
		{frame.ErrMultiplexedEnvelope, ReasonFraming},
		{frame.ErrNestedEnvelope, ReasonFraming},
		{frame.ErrBareMessage, ReasonFraming},
		{errors.Wrap(gate.ErrUnknownAddress, "/Foo"), ReasonTranslation},
		{gate.ErrArityMismatch, ReasonTranslation},
		{errors.New("boom"), ReasonOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.reason, dropReason(tt.err), tt.err.Error())
	}
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	dm := m.direction(DirectionHostToDevice)
	dm.received.Inc()
	dm.received.Inc()
	dm.forwarded.Inc()
	dm.drop(frame.ErrEmptyEnvelope)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"oscrelay_packets_received_total",
		"oscrelay_packets_dropped_total",
		"oscrelay_packets_forwarded_total",
		"oscrelay_queue_depth",
	}, names)

	assert.Equal(t, snapshot{received: 2, forwarded: 1, dropped: 1}, dm.snapshot())
}

func TestMetricsUnregistered(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(nil).direction(DirectionDeviceToHost).drop(errors.New("boom"))
	})
}
