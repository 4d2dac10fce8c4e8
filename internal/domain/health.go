package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
}

// GeneratorMetrics is returned by GET /v1/metrics/generator.
type GeneratorMetrics struct {
	DatasetsGenerated     int64            `json:"datasetsGenerated"`
	DatasetsFailed        int64            `json:"datasetsFailed"`
	TransactionsGenerated int64            `json:"transactionsGenerated"`
	FraudsByScenario      map[string]int64 `json:"fraudsByScenario"`
	FraudRate             float64          `json:"fraudRate"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
