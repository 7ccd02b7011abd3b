package models

// DashboardSummary aggregates the admin landing page counters.
type DashboardSummary struct {
	Date             string                `json:"date"`
	PendingRequests  int                   `json:"pending_requests"`
	ApprovedRequests int                   `json:"approved_requests"`
	RejectedRequests int                   `json:"rejected_requests"`
	Teachers         int                   `json:"teachers"`
	Substitutions    []CoverageRequestView `json:"substitutions"`
}
