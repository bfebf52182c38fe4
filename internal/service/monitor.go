package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakif/execbox/internal/model"
)

// probeBudget caps one full health sweep. Every route probe already carries
// its own short deadline, so this only matters when many remotes hang.
const probeBudget = 15 * time.Second

// Monitor periodically sweeps every execution route and logs health
// transitions. It changes nothing about dispatch: a degraded route still
// receives requests, the monitor exists so operators notice before users do.
type Monitor struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
	last map[string]string // previous status per language, for transition logs
}

// NewMonitor creates a Monitor sweeping at the given interval.
// Non-positive intervals fall back to one minute.
func NewMonitor(engine *Engine, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		engine:   engine,
		interval: interval,
		logger:   logger,
		last:     make(map[string]string),
	}
}

// Start schedules the periodic sweep. The first scheduled probe fires after
// one full interval; callers wanting an immediate reading call Probe.
// Starting an already-started Monitor is a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", m.interval), func() { m.Probe() }); err != nil {
		return fmt.Errorf("schedule health sweep: %w", err)
	}
	c.Start()
	m.cron = c

	m.logger.Info("health monitor started", slog.Duration("interval", m.interval))
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	m.logger.Info("health monitor stopped")
}

// Probe runs one sweep now and logs every route whose status changed since
// the previous sweep. The first sweep establishes a baseline silently.
func (m *Monitor) Probe() model.HealthReport {
	ctx, cancel := context.WithTimeout(context.Background(), probeBudget)
	defer cancel()

	report := m.engine.Health(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, route := range report.Services {
		prev, seen := m.last[id]
		if seen && prev != route.Status {
			level := slog.LevelWarn
			if route.Status == model.HealthHealthy {
				level = slog.LevelInfo
			}
			m.logger.Log(ctx, level, "route health changed",
				slog.String("language", id),
				slog.String("endpoint", route.Endpoint),
				slog.String("from", prev),
				slog.String("to", route.Status))
		}
		m.last[id] = route.Status
	}

	if report.OverallStatus != model.OverallHealthy {
		m.logger.Warn("execution routes degraded",
			slog.Int("healthy", report.HealthyServices),
			slog.Int("total", report.TotalServices))
	}
	return report
}
