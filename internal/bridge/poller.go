package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/tuya-bridge/internal/infrastructure/metrics"
)

// sinkTimeout bounds one persistence insert.
const sinkTimeout = 5 * time.Second

// Poller drives the outbound path: registry status → bus → sink, for every
// device once per cycle.
//
// Devices are visited in a fixed order: governing devices first, then the
// rest, each group in registry order. This guarantees a governing device's
// state is updated before any dependent is evaluated in the same cycle.
type Poller struct {
	registry  Registry
	publisher *TelemetryPublisher
	gate      *LoggingGate
	sink      Sink
	devices   []Device
	interval  time.Duration
	logger    Logger
	metrics   *metrics.Metrics

	latest   map[string]*Snapshot
	lastPoll time.Time
	mu       sync.RWMutex
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Registry  Registry
	Publisher *TelemetryPublisher
	Gate      *LoggingGate

	// Sink is optional; without it snapshots are published but not persisted.
	Sink Sink

	Devices  []Device
	Interval time.Duration
	Logger   Logger
	Metrics  *metrics.Metrics
}

// CycleResult summarises one poll cycle.
type CycleResult struct {
	Devices    int
	Failed     int
	Persisted  int
	Suppressed int
	Duration   time.Duration

	// Complete is false when cancellation stopped the cycle before every
	// device was visited.
	Complete bool
}

// NewPoller creates a Poller.
func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("telemetry publisher is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("logging gate is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}

	return &Poller{
		registry:  opts.Registry,
		publisher: opts.Publisher,
		gate:      opts.Gate,
		sink:      opts.Sink,
		devices:   orderDevices(opts.Devices, opts.Gate),
		interval:  opts.Interval,
		logger:    loggerOrNoop(opts.Logger),
		metrics:   opts.Metrics,
		latest:    make(map[string]*Snapshot, len(opts.Devices)),
	}, nil
}

// orderDevices puts governing devices first, keeping registry order within
// each group, and drops devices without an ID.
func orderDevices(devices []Device, gate *LoggingGate) []Device {
	ordered := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.ID != "" && gate.IsGoverning(d.ID) {
			ordered = append(ordered, d)
		}
	}
	for _, d := range devices {
		if d.ID != "" && !gate.IsGoverning(d.ID) {
			ordered = append(ordered, d)
		}
	}
	return ordered
}

// Devices returns the polling order.
func (p *Poller) Devices() []Device {
	return append([]Device(nil), p.devices...)
}

// Run polls until ctx is cancelled, sleeping the configured interval between
// the end of one cycle and the start of the next.
func (p *Poller) Run(ctx context.Context) {
	for ctx.Err() == nil {
		p.safeCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

// safeCycle runs one cycle, recovering a panic so polling continues.
func (p *Poller) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poll cycle panicked", "panic", fmt.Sprint(r))
		}
	}()
	p.RunCycle(ctx)
}

// RunCycle polls every device once. A failure for one device is logged and
// the remaining devices still run. Only a cycle that visits every device
// counts as completed for metrics and LastPoll.
func (p *Poller) RunCycle(ctx context.Context) CycleResult {
	start := time.Now()
	res := CycleResult{Complete: true}

	for _, dev := range p.devices {
		if ctx.Err() != nil {
			res.Complete = false
			break
		}
		res.Devices++

		status, err := p.registry.GetStatus(ctx, dev.ID)
		if err != nil {
			res.Failed++
			p.metrics.DeviceError(metrics.StageRegistry)
			p.logger.Warn("status fetch failed", "device_id", dev.ID, "name", dev.Name, "error", err)
			continue
		}
		if status == nil {
			status = &Status{}
		}

		snap := p.publisher.Publish(dev, status.Points, status.SourceTimestamp)
		p.remember(snap)

		if !p.gate.ShouldLog(dev, snap) {
			res.Suppressed++
			p.metrics.Record(false)
			continue
		}
		if p.sink == nil {
			continue
		}

		if err := p.insert(ctx, snap); err != nil {
			res.Failed++
			p.metrics.DeviceError(metrics.StageSink)
			p.logger.Warn("persisting snapshot failed", "device_id", dev.ID, "name", dev.Name, "error", err)
			continue
		}
		res.Persisted++
		p.metrics.Record(true)
	}

	res.Duration = time.Since(start)
	if !res.Complete {
		p.logger.Info("poll cycle interrupted",
			"devices", res.Devices,
			"total", len(p.devices),
			"duration", res.Duration)
		return res
	}
	p.metrics.CycleCompleted(res.Duration)

	p.mu.Lock()
	p.lastPoll = time.Now()
	p.mu.Unlock()

	p.logger.Info("poll completed",
		"devices", res.Devices,
		"failed", res.Failed,
		"persisted", res.Persisted,
		"suppressed", res.Suppressed,
		"duration", res.Duration)

	return res
}

func (p *Poller) insert(ctx context.Context, snap *Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	return p.sink.Insert(ctx, NewRecord(snap))
}

func (p *Poller) remember(snap *Snapshot) {
	p.mu.Lock()
	p.latest[snap.DeviceID] = snap
	p.mu.Unlock()
}

// LastSnapshot returns the most recent snapshot of a device.
// The returned snapshot must not be modified.
func (p *Poller) LastSnapshot(deviceID string) (*Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.latest[deviceID]
	return s, ok
}

// LastPoll returns when the last cycle completed; zero before the first.
func (p *Poller) LastPoll() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPoll
}
