package domain

// ============================================================
// Health API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// DispatchMetrics is a cumulative snapshot of dispatch outcomes since boot.
type DispatchMetrics struct {
	JobRuns  int64 `json:"jobRuns"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	Errored  int64 `json:"errored"`
	Skipped  int64 `json:"skipped"`
	Fires    int64 `json:"schedulerFires"`
	Failures int64 `json:"schedulerFailures"`
}
