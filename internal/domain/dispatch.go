package domain

import "time"

// ============================================================
// Dispatch & job results
// ============================================================

// DispatchStatus is the per-recipient outcome of a job run.
type DispatchStatus string

const (
	DispatchSent    DispatchStatus = "sent"
	DispatchFailed  DispatchStatus = "failed"  // provider explicitly rejected
	DispatchError   DispatchStatus = "error"   // local failure or provider unreachable
	DispatchSkipped DispatchStatus = "skipped" // already delivered for this period
)

// SendResult is the decoded reply of the messaging provider.
type SendResult struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// DeviceStatus is the provider's connectivity report.
type DeviceStatus struct {
	Status       bool   `json:"status"`
	Device       string `json:"device,omitempty"`
	DeviceStatus string `json:"device_status,omitempty"`
	Quota        string `json:"quota,omitempty"`
	Message      string `json:"message,omitempty"`
}

// DispatchResult records what happened to one recipient.
type DispatchResult struct {
	UserID    string         `json:"userId"`
	Phone     string         `json:"phone"`
	Status    DispatchStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	MessageID string         `json:"messageId,omitempty"`
}

// JobSummary counts outcomes. Failed covers everything that is neither sent nor skipped.
type JobSummary struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped,omitempty"`
}

// Summarize counts results.
func Summarize(results []DispatchResult) JobSummary {
	s := JobSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case DispatchSent:
			s.Sent++
		case DispatchSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// JobResult is the response body of a report job endpoint.
type JobResult struct {
	Success bool             `json:"success"`
	RunID   string           `json:"runId"`
	Kind    ReportKind       `json:"kind"`
	Message string           `json:"message,omitempty"`
	Window  *JobWindow       `json:"window,omitempty"`
	Summary JobSummary       `json:"summary"`
	Results []DispatchResult `json:"results"`
}

// JobWindow is the serialized report window.
type JobWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DispatchEvent is published for every recipient outcome.
type DispatchEvent struct {
	EventID    string         `json:"eventId"`
	RunID      string         `json:"runId"`
	Kind       ReportKind     `json:"kind"`
	PeriodKey  string         `json:"periodKey"`
	UserID     string         `json:"userId"`
	Status     DispatchStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	MessageID  string         `json:"messageId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// SchedulerStatus is returned by GET /api/scheduler.
type SchedulerStatus struct {
	WeeklyJobActive  bool   `json:"weeklyJobActive"`
	MonthlyJobActive bool   `json:"monthlyJobActive"`
	CurrentTime      string `json:"currentTime"`
	Timezone         string `json:"timezone"`
	NextWeeklyRun    string `json:"nextWeeklyRun,omitempty"`
	NextMonthlyRun   string `json:"nextMonthlyRun,omitempty"`
}
