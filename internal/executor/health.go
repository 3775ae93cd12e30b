package executor

import "strings"

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnknown   HealthStatus = "unknown"
)

var healthTable = map[string]HealthStatus{
	"running":        HealthHealthy,
	"healthy":        HealthHealthy,
	"started":        HealthHealthy,
	"stopped":        HealthUnhealthy,
	"exited":         HealthUnhealthy,
	"not_functional": HealthUnhealthy,
	"restarting":     HealthDegraded,
	"starting":       HealthDegraded,
	"stopping":       HealthDegraded,
}

// DetermineHealthStatus classifies a raw platform status. Compound statuses
// such as "running:healthy" are classified by the part before the colon.
func DetermineHealthStatus(raw string) HealthStatus {
	state, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), ":")
	if h, ok := healthTable[state]; ok {
		return h
	}
	return HealthUnknown
}
