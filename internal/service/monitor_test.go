package service

import (
	"errors"
	"testing"
	"time"

	"github.com/sakif/execbox/internal/model"
)

func TestMonitor_ProbeTracksTransitions(t *testing.T) {
	prov := &mockProvisioner{}
	eng := newTestEngine(t, prov)
	mon := NewMonitor(eng, time.Minute, testLogger())

	report := mon.Probe()
	if report.OverallStatus != model.OverallHealthy {
		t.Fatalf("first sweep OverallStatus = %q, want healthy", report.OverallStatus)
	}

	prov.healthErr = errors.New("daemon gone")
	report = mon.Probe()
	if report.OverallStatus != model.OverallDegraded {
		t.Fatalf("second sweep OverallStatus = %q, want degraded", report.OverallStatus)
	}
	if report.HealthyServices != 0 {
		t.Errorf("HealthyServices = %d, want 0", report.HealthyServices)
	}

	prov.healthErr = nil
	report = mon.Probe()
	if report.OverallStatus != model.OverallHealthy {
		t.Fatalf("third sweep OverallStatus = %q, want recovered", report.OverallStatus)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	mon := NewMonitor(newTestEngine(t, &mockProvisioner{}), time.Second, testLogger())

	if err := mon.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := mon.Start(); err != nil {
		t.Fatalf("second Start() should be a no-op, got %v", err)
	}

	mon.Stop()
	mon.Stop() // stopping twice must not panic
}

func TestMonitor_DefaultInterval(t *testing.T) {
	mon := NewMonitor(newTestEngine(t, &mockProvisioner{}), 0, testLogger())
	if mon.interval != time.Minute {
		t.Errorf("interval = %v, want the one-minute default", mon.interval)
	}
}
