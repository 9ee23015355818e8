// Package service owns the lifetimes of the producer goroutines: it starts
// the enabled ones, isolates their failures from each other, and stops them
// all within a bounded grace window on shutdown.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/protoforge/neonhud/internal/producer"
	"github.com/protoforge/neonhud/internal/rf"
	"github.com/protoforge/neonhud/internal/state"
)

// StopBudget is the total time StopAll waits for producers to exit before
// abandoning the stragglers.
const StopBudget = 5 * time.Second

// Config enumerates which producers are enabled and their interface
// bindings.
type Config struct {
	EnableSystemMetrics bool
	EnableGPS           bool
	EnableIMU           bool
	EnableWiFiScanner   bool
	EnableWiFiLocator   bool
	EnableAudio         bool

	WiFiScanInterface  string
	WiFiLeftInterface  string
	WiFiRightInterface string
	AdapterSeparationM float64

	GPSDAddr string
}

type handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager launches producers and coordinates their shutdown.
type Manager struct {
	logger    *slog.Logger
	producers []producer.Producer
	handles   []handle
}

// NewManager builds a manager over an explicit producer set.
func NewManager(logger *slog.Logger, producers ...producer.Producer) *Manager {
	return &Manager{logger: logger, producers: producers}
}

// FromConfig builds a manager with the producers the config enables.
func FromConfig(store *state.Store, cfg Config, model rf.Model, logger *slog.Logger) *Manager {
	var producers []producer.Producer

	if cfg.EnableSystemMetrics {
		producers = append(producers, producer.NewSystemMetrics(store, logger))
	}
	if cfg.EnableGPS {
		producers = append(producers, producer.NewGPS(store, cfg.GPSDAddr, logger))
	}
	if cfg.EnableIMU {
		producers = append(producers, producer.NewIMU(store, logger))
	}
	if cfg.EnableWiFiScanner {
		interfaces := []string{cfg.WiFiScanInterface}
		if cfg.EnableWiFiLocator {
			for _, iface := range []string{cfg.WiFiLeftInterface, cfg.WiFiRightInterface} {
				if iface != "" && iface != cfg.WiFiScanInterface {
					interfaces = append(interfaces, iface)
				}
			}
		}
		producers = append(producers, producer.NewWiFiScan(store, interfaces, model, logger))
	}
	if cfg.EnableWiFiLocator {
		producers = append(producers, producer.NewLocator(store,
			cfg.WiFiLeftInterface, cfg.WiFiRightInterface, cfg.AdapterSeparationM, model, logger))
	}
	if cfg.EnableAudio {
		producers = append(producers, producer.NewAudio(store, logger))
	}

	return NewManager(logger, producers...)
}

// StartAll launches every producer on its own goroutine, each with its own
// shutdown signal. A producer failing at startup is reported but does not
// abort the startup of the others.
func (m *Manager) StartAll(ctx context.Context) {
	for _, p := range m.producers {
		p := p
		pctx, cancel := context.WithCancel(ctx)
		h := handle{name: p.Name(), cancel: cancel, done: make(chan struct{})}

		go func() {
			defer close(h.done)
			if err := p.Run(pctx); err != nil {
				if errors.Is(err, producer.ErrTerminal) {
					m.logger.Warn(fmt.Sprintf("service %q exited: %s", p.Name(), err))
					return
				}
				m.logger.Error(fmt.Sprintf("service %q failed: %s", p.Name(), err))
			}
		}()

		m.handles = append(m.handles, h)
		m.logger.Info("service started", slog.String("service", p.Name()))
	}

	m.logger.Info(fmt.Sprintf("started %d service(s)", len(m.handles)))
}

// StopAll fires every shutdown signal and waits up to StopBudget in total
// for the producers to join. Stragglers are abandoned; their resources are
// the operating system's problem.
func (m *Manager) StopAll() {
	if len(m.handles) == 0 {
		return
	}

	m.logger.Info(fmt.Sprintf("stopping %d service(s)...", len(m.handles)))
	for _, h := range m.handles {
		h.cancel()
	}

	deadline := time.NewTimer(StopBudget)
	defer deadline.Stop()

	expired := false
	for _, h := range m.handles {
		if expired {
			// Budget spent: take stock without waiting any longer.
			select {
			case <-h.done:
				m.logger.Info("service stopped", slog.String("service", h.name))
			default:
				m.logger.Warn(fmt.Sprintf("service %q did not stop within %s, abandoning", h.name, StopBudget))
			}
			continue
		}

		select {
		case <-h.done:
			m.logger.Info("service stopped", slog.String("service", h.name))
		case <-deadline.C:
			expired = true
			m.logger.Warn(fmt.Sprintf("service %q did not stop within %s, abandoning", h.name, StopBudget))
		}
	}

	m.handles = nil
	if !expired {
		m.logger.Info("all services stopped")
	}
}
