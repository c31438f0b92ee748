package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/tuya-bridge/internal/infrastructure/config"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/mqtt"
)

// Service wires the poller and the command router to one registry, one bus
// and an optional sink.
//
// Thread Safety: all methods are safe for concurrent use after Start.
type Service struct {
	registry   Registry
	bus        Bus
	sink       Sink
	topics     mqtt.Topics
	qos        byte
	interval   time.Duration
	governance []config.GovernanceRule
	logger     Logger
	metrics    *metrics.Metrics

	devices []Device
	gate    *LoggingGate
	poller  *Poller
	router  *CommandRouter

	// Shutdown coordination
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Registry Registry
	Bus      Bus

	// Sink is optional.
	Sink Sink

	Topics     mqtt.Topics
	QoS        byte
	Interval   time.Duration
	Governance []config.GovernanceRule
	Logger     Logger
	Metrics    *metrics.Metrics
}

// NewService creates a Service. Call Start to begin operation.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if opts.Topics.Prefix == "" {
		opts.Topics.Prefix = mqtt.DefaultTopicPrefix
	}
	if opts.Topics.Discovery == "" {
		opts.Topics.Discovery = mqtt.DefaultDiscoveryPrefix
	}

	return &Service{
		registry:   opts.Registry,
		bus:        opts.Bus,
		sink:       opts.Sink,
		topics:     opts.Topics,
		qos:        opts.QoS,
		interval:   opts.Interval,
		governance: opts.Governance,
		logger:     loggerOrNoop(opts.Logger),
		metrics:    opts.Metrics,
	}, nil
}

// Start loads the device list, subscribes to command topics and starts
// polling in the background. An empty device list is fatal.
func (s *Service) Start(ctx context.Context) error {
	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}
	if len(devices) == 0 {
		return ErrNoDevices
	}
	s.logInventory(devices)
	s.metrics.SetDevices(len(devices))

	runCtx, cancel := context.WithCancel(ctx)

	publisher := NewTelemetryPublisher(TelemetryOptions{
		Bus:     s.bus,
		Topics:  s.topics,
		QoS:     s.qos,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	gate := NewLoggingGate(s.governance, s.logger, s.metrics)

	poller, err := NewPoller(PollerOptions{
		Registry:  s.registry,
		Publisher: publisher,
		Gate:      gate,
		Sink:      s.sink,
		Devices:   devices,
		Interval:  s.interval,
		Logger:    s.logger,
		Metrics:   s.metrics,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("creating poller: %w", err)
	}

	router, err := NewCommandRouter(CommandRouterOptions{
		Context:  runCtx,
		Registry: s.registry,
		Bus:      s.bus,
		Topics:   s.topics,
		QoS:      s.qos,
		Logger:   s.logger,
		Metrics:  s.metrics,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("creating command router: %w", err)
	}

	if err := s.subscribe(router); err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.devices = devices
	s.gate = gate
	s.poller = poller
	s.router = router
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		poller.Run(runCtx)
	}()

	s.logger.Info("bridge started",
		"devices", len(devices),
		"interval", s.interval,
		"governing", len(s.governance))
	return nil
}

// Stop stops polling and waits for the in-flight cycle to finish.
// Closing the bus is left to the caller.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.RLock()
		cancel := s.cancel
		s.mu.RUnlock()
		if cancel != nil {
			cancel()
		}
		s.wg.Wait()
		s.logger.Info("bridge stopped")
	})
}

// subscribe registers the router on both command patterns. On failure the
// patterns already registered are removed again.
func (s *Service) subscribe(router *CommandRouter) error {
	var done []string
	for _, pattern := range []string{s.topics.AllSingleSets(), s.topics.AllBatchSets()} {
		if err := s.bus.Subscribe(pattern, s.qos, router.HandleMessage); err != nil {
			for _, p := range done {
				if uerr := s.bus.Unsubscribe(p); uerr != nil {
					s.logger.Warn("unsubscribe after failed start", "topic", p, "error", uerr)
				}
			}
			return fmt.Errorf("subscribing to %s: %w", pattern, err)
		}
		done = append(done, pattern)
		s.logger.Info("subscribed to commands", "topic", pattern)
	}
	return nil
}

func (s *Service) logInventory(devices []Device) {
	online := 0
	for i, d := range devices {
		if d.Online {
			online++
		}
		s.logger.Info("device found",
			"index", i+1,
			"device_id", d.ID,
			"name", d.Name,
			"online", d.Online)
	}
	s.logger.Info("device inventory loaded", "devices", len(devices), "online", online)
}

// Devices returns the device list loaded at startup.
func (s *Service) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Device(nil), s.devices...)
}

// Device returns one device by ID.
func (s *Service) Device(id string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// LastSnapshot returns the latest polled snapshot of a device.
func (s *Service) LastSnapshot(id string) (*Snapshot, bool) {
	s.mu.RLock()
	poller := s.poller
	s.mu.RUnlock()
	if poller == nil {
		return nil, false
	}
	return poller.LastSnapshot(id)
}

// LastPoll returns when the last poll cycle completed.
func (s *Service) LastPoll() time.Time {
	s.mu.RLock()
	poller := s.poller
	s.mu.RUnlock()
	if poller == nil {
		return time.Time{}
	}
	return poller.LastPoll()
}

// Governance returns the state of every governing device.
func (s *Service) Governance() []GovernorStatus {
	s.mu.RLock()
	gate := s.gate
	s.mu.RUnlock()
	if gate == nil {
		return nil
	}
	return gate.Status()
}
