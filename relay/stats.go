package relay

import (
	"context"

	"osc-relay/gate"
	"osc-relay/lib/ds/queue"
)

// reportStats logs per-direction totals every StatsInterval until ctx is done.
func (r *Relay) reportStats(ctx context.Context, h2d *queue.Queue[gate.Command], d2h *queue.Queue[gate.Response]) {
	ticker := r.clock.Ticker(r.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logStats(DirectionHostToDevice, r.h2d.snapshot(), h2d.Len())
			r.logStats(DirectionDeviceToHost, r.d2h.snapshot(), d2h.Len())
		}
	}
}

func (r *Relay) logStats(dir string, s snapshot, depth uint) {
	r.logger.Info().
		Str("direction", dir).
		Float64("received", s.received).
		Float64("forwarded", s.forwarded).
		Float64("dropped", s.dropped).
		Uint("queue_depth", depth).
		Msg("relay stats")
}
