package model

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive EnrollmentStatus = "active"
	// EnrollmentProcessing marks a row claimed by an in-flight run. The run
	// either advances it (which writes a final status) or releases it back
	// to active.
	EnrollmentProcessing EnrollmentStatus = "processing"
	EnrollmentCompleted  EnrollmentStatus = "completed"
	EnrollmentCancelled  EnrollmentStatus = "cancelled"
)

// Prospect is the recipient snapshot captured at enroll time. It is never
// re-fetched while the enrollment progresses.
type Prospect struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Title     string `json:"title"`
}

type HistoryEntry struct {
	Channel Channel   `json:"channel"`
	SentAt  time.Time `json:"sent_at"`
	Status  string    `json:"status"`
}

// Enrollment is one recipient's progress through one campaign.
//
// CurrentStep only ever increases. NextStepAt is nil once the enrollment
// has run past the last step or left the active status.
type Enrollment struct {
	ID          string
	CampaignID  string
	TenantID    string
	Prospect    Prospect
	Status      EnrollmentStatus
	CurrentStep int
	NextStepAt  *time.Time
	LastSentAt  *time.Time
	CompletedAt *time.Time
	History     map[int]HistoryEntry
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
