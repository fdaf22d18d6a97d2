package domain

// Processing status labels for worker metrics
const (
	StatusRerun     = "rerun"
	StatusRequeued  = "requeued"
	StatusRejected  = "rejected"
	StatusInvalid   = "invalid"
	StatusExhausted = "exhausted"
	StatusDuplicate = "duplicate"
)

// Claim states stored for each retry request
const (
	ClaimStatusRunning   = "running"
	ClaimStatusCompleted = "completed"
	ClaimStatusFailed    = "failed"
)
