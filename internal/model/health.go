// Package model defines the data structures used throughout the application.
package model

// Per-route health states. "unreachable" means the probe could not connect at
// all; "unhealthy" means the route answered but not with a 200.
const (
	HealthHealthy     = "healthy"
	HealthUnhealthy   = "unhealthy"
	HealthUnreachable = "unreachable"
)

// Aggregate states. The report is "healthy" only when every probed route is.
const (
	OverallHealthy  = "healthy"
	OverallDegraded = "degraded"
)

// RouteHealth is the probe result for a single language route.
// Endpoint is the backend base URL for remote routes, or "local" for
// languages served by the in-process sandbox.
type RouteHealth struct {
	Status   string `json:"status"`
	Endpoint string `json:"endpoint"`
	Error    string `json:"error,omitempty"`
}

// HealthReport aggregates route probes. Used by operational tooling only —
// a degraded report never blocks a dispatch attempt.
type HealthReport struct {
	OverallStatus   string                 `json:"overallStatus"`
	HealthyServices int                    `json:"healthyServices"`
	TotalServices   int                    `json:"totalServices"`
	Services        map[string]RouteHealth `json:"services"`
}

// ServiceInfo describes one executor service: its identity and the ceilings
// it enforces. Served on GET /info and consumed by operational tooling.
type ServiceInfo struct {
	Service            string   `json:"service"`
	Language           string   `json:"language"`
	Version            string   `json:"version"`
	MaxExecutionTime   int      `json:"maxExecutionTime"`
	MaxMemoryMB        int      `json:"maxMemoryMB"`
	MaxCodeSizeKB      int      `json:"maxCodeSizeKB"`
	AvailableLibraries []string `json:"availableLibraries"`
}

// ServiceStatus is the payload of an executor service's GET /health.
type ServiceStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
