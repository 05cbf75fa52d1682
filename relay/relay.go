// Package relay forwards gate commands from a host to a device and
// responses back, through one bounded queue per direction.
//
//	host  --> host-receive   --> [queue] --> device-send --> device
//	host  <-- host-send      <-- [queue] <-- device-receive <-- device
//
// Each arrow into or out of a queue is one goroutine.
// The first goroutine to stop takes the whole relay down with it.
package relay

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"osc-relay/frame"
	"osc-relay/gate"
	"osc-relay/lib/ds/queue"
	"osc-relay/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultQueueCapacity = 100
	DefaultBufferSize    = 1000
)

var (
	ErrStageStopped   = errors.New("relay stage stopped")
	ErrAlreadyStarted = errors.New("relay already started")
)

type Endpoints struct {
	HostSend      string // where host-bound responses go.
	HostReceive   string // where commands from the host arrive.
	DeviceSend    string // where device-bound commands go.
	DeviceReceive string // where responses from the device arrive.
}

type Options struct {
	QueueCapacity uint
	BufferSize    uint
	Framing       frame.Policy

	// StatsInterval of 0 disables the periodic stats log.
	StatsInterval time.Duration
}

type Relay struct {
	endpoints Endpoints
	network   transport.Network

	logger  zerolog.Logger
	clock   clock.Clock
	metrics *Metrics
	opts    Options

	started atomic.Bool
	ready   chan struct{}

	h2d, d2h directionMetrics
}

func New(
	endpoints Endpoints,
	network transport.Network,
	logger zerolog.Logger,
	clock clock.Clock,
	metrics *Metrics,
	opts Options,
) *Relay {
	if opts.QueueCapacity == 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Relay{
		endpoints: endpoints,
		network:   network,
		logger:    logger,
		clock:     clock,
		metrics:   metrics,
		opts:      opts,
		ready:     make(chan struct{}),
		h2d:       metrics.direction(DirectionHostToDevice),
		d2h:       metrics.direction(DirectionDeviceToHost),
	}
}

// Ready is closed once all four endpoints are bound.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

type stage struct {
	name string
	run  func(ctx context.Context) error
	// done runs after the result of run is reported.
	done func()
}

// Run binds the endpoints and relays until a stage stops or ctx is cancelled.
// It returns the first error; a stage that stops without one is reported as [ErrStageStopped].
// A Relay runs at most once.
func (r *Relay) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	eps, err := r.bind(ctx)
	if err != nil {
		return err
	}
	defer eps.close(r.logger)

	h2d := queue.New[gate.Command](r.opts.QueueCapacity)
	d2h := queue.New[gate.Response](r.opts.QueueCapacity)

	hostReceive := &receiveLoop[gate.Command]{
		conn:    eps.hostRx,
		queue:   h2d,
		codec:   gate.CommandCodec{},
		policy:  r.opts.Framing,
		bufSize: r.opts.BufferSize,
		metrics: r.h2d,
		logger:  r.logger.With().Str("stage", "host-receive").Logger(),
	}
	deviceSend := &sendLoop[gate.Command]{
		conn:    eps.deviceTx,
		queue:   h2d,
		codec:   gate.CommandCodec{},
		metrics: r.h2d,
		logger:  r.logger.With().Str("stage", "device-send").Logger(),
	}
	deviceReceive := &receiveLoop[gate.Response]{
		conn:    eps.deviceRx,
		queue:   d2h,
		codec:   gate.ResponseCodec{},
		policy:  r.opts.Framing,
		bufSize: r.opts.BufferSize,
		metrics: r.d2h,
		logger:  r.logger.With().Str("stage", "device-receive").Logger(),
	}
	hostSend := &sendLoop[gate.Response]{
		conn:    eps.hostTx,
		queue:   d2h,
		codec:   gate.ResponseCodec{},
		metrics: r.d2h,
		logger:  r.logger.With().Str("stage", "host-send").Logger(),
	}

	stages := []stage{
		// Producers close their queue only after reporting,
		// so a consumer draining it can't be mistaken for the first failure.
		{name: "host-receive", run: hostReceive.run, done: h2d.Close},
		{name: "device-send", run: deviceSend.run},
		{name: "device-receive", run: deviceReceive.run, done: d2h.Close},
		{name: "host-send", run: hostSend.run},
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errchan := make(chan error, len(stages))

	for _, st := range stages {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := st.run(ctx)
			if err == nil {
				err = ErrStageStopped
			}
			errchan <- errors.Wrap(err, st.name)

			if st.done != nil {
				st.done()
			}
		}()
	}

	if r.opts.StatsInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.reportStats(ctx, h2d, d2h)
		}()
	}

	r.logger.Info().
		Stringer("host_receive", eps.hostRx.LocalAddr()).
		Stringer("device_receive", eps.deviceRx.LocalAddr()).
		Stringer("host_send", eps.hostTx.RemoteAddr()).
		Stringer("device_send", eps.deviceTx.RemoteAddr()).
		Uint("queue_capacity", r.opts.QueueCapacity).
		Stringer("framing", r.opts.Framing).
		Msg("relay started")
	close(r.ready)

	first := <-errchan
	cancel()
	wg.Wait()

	if errors.Is(first, context.Canceled) {
		r.logger.Info().Msg("relay stopped")
	} else {
		r.logger.Error().Err(first).Msg("relay failed")
	}

	return first
}

type endpoints struct {
	hostRx, deviceRx transport.Receiver
	hostTx, deviceTx transport.Sender
}

func (r *Relay) bind(ctx context.Context) (*endpoints, error) {
	var (
		eps     endpoints
		closers []io.Closer
		err     error
	)

	fail := func(err error, what, addr string) (*endpoints, error) {
		for _, c := range closers {
			_ = c.Close()
		}
		return nil, errors.Wrapf(err, "binding %s %s", what, addr)
	}

	if eps.hostRx, err = r.network.Listen(ctx, r.endpoints.HostReceive); err != nil {
		return fail(err, "host receive", r.endpoints.HostReceive)
	}
	closers = append(closers, eps.hostRx)

	if eps.deviceRx, err = r.network.Listen(ctx, r.endpoints.DeviceReceive); err != nil {
		return fail(err, "device receive", r.endpoints.DeviceReceive)
	}
	closers = append(closers, eps.deviceRx)

	if eps.hostTx, err = r.network.Dial(ctx, r.endpoints.HostSend); err != nil {
		return fail(err, "host send", r.endpoints.HostSend)
	}
	closers = append(closers, eps.hostTx)

	if eps.deviceTx, err = r.network.Dial(ctx, r.endpoints.DeviceSend); err != nil {
		return fail(err, "device send", r.endpoints.DeviceSend)
	}

	return &eps, nil
}

func (eps *endpoints) close(logger zerolog.Logger) {
	for _, c := range []io.Closer{eps.hostRx, eps.deviceRx, eps.hostTx, eps.deviceTx} {
		if err := c.Close(); err != nil {
			logger.Error().Err(err).Msg("error when closing endpoint")
		}
	}
}
