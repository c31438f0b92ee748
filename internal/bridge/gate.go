package bridge

import (
	"sync"

	"github.com/nerrad567/tuya-bridge/internal/infrastructure/config"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/metrics"
)

// GovernanceState holds the last reported on/off state of each governing
// device. A governor that has not reported yet counts as on.
type GovernanceState struct {
	mu sync.RWMutex
	on map[string]bool
}

// NewGovernanceState creates an empty state.
func NewGovernanceState() *GovernanceState {
	return &GovernanceState{on: make(map[string]bool)}
}

// IsOn reports the last known state of a governing device.
func (s *GovernanceState) IsOn(governorID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	on, ok := s.on[governorID]
	return !ok || on
}

func (s *GovernanceState) set(governorID string, on bool) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.on[governorID]
	s.on[governorID] = on
	return (!ok && !on) || (ok && prev != on)
}

// GovernorStatus is a read-only view of one governing device.
type GovernorStatus struct {
	DeviceID   string   `json:"device_id"`
	On         bool     `json:"on"`
	Reported   bool     `json:"reported"`
	Dependents []string `json:"dependents"`
}

// LoggingGate decides whether a snapshot is persisted.
//
// A governing device's own snapshot updates its state; it and its dependents
// are persisted only while it is on. Devices without a rule are always
// persisted. Governing snapshots must be evaluated before their dependents in
// the same cycle; the Poller orders devices accordingly.
type LoggingGate struct {
	state      *GovernanceState
	rules      []config.GovernanceRule
	governors  map[string]bool
	governedBy map[string]string
	logger     Logger
	metrics    *metrics.Metrics
}

// NewLoggingGate creates a gate for the configured rules. Rules are assumed
// validated: one governor per dependent, no device on both sides.
func NewLoggingGate(rules []config.GovernanceRule, logger Logger, m *metrics.Metrics) *LoggingGate {
	g := &LoggingGate{
		state:      NewGovernanceState(),
		rules:      rules,
		governors:  make(map[string]bool, len(rules)),
		governedBy: make(map[string]string),
		logger:     loggerOrNoop(logger),
		metrics:    m,
	}
	for _, r := range rules {
		g.governors[r.Governing] = true
		for _, dep := range r.Dependents {
			g.governedBy[dep] = r.Governing
		}
	}
	return g
}

// IsGoverning reports whether deviceID gates other devices.
func (g *LoggingGate) IsGoverning(deviceID string) bool {
	return g.governors[deviceID]
}

// ShouldLog evaluates one snapshot. It is the only writer of the
// governance state.
func (g *LoggingGate) ShouldLog(dev Device, snap *Snapshot) bool {
	if g.governors[dev.ID] {
		if on, ok := snap.Data[CodeSwitch].AsBool(); ok {
			if g.state.set(dev.ID, on) {
				g.logger.Info("governing device changed state", "device_id", dev.ID, "name", dev.Name, "on", on)
			}
			g.metrics.SetGovernance(dev.ID, on)
		}
		if !g.state.IsOn(dev.ID) {
			g.logger.Debug("persistence skipped: governing device off", "device_id", dev.ID)
			return false
		}
		return true
	}

	if governor, ok := g.governedBy[dev.ID]; ok && !g.state.IsOn(governor) {
		g.logger.Debug("persistence skipped: governing device off", "device_id", dev.ID, "governor", governor)
		return false
	}
	return true
}

// Status returns the state of every governing device in rule order.
func (g *LoggingGate) Status() []GovernorStatus {
	g.state.mu.RLock()
	defer g.state.mu.RUnlock()

	out := make([]GovernorStatus, 0, len(g.rules))
	for _, r := range g.rules {
		on, reported := g.state.on[r.Governing]
		deps := append([]string(nil), r.Dependents...)
		out = append(out, GovernorStatus{
			DeviceID:   r.Governing,
			On:         !reported || on,
			Reported:   reported,
			Dependents: deps,
		})
	}
	return out
}
