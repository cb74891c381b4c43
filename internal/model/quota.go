package model

import "time"

// Resource is a metered resource type counted against a monthly plan cap.
type Resource string

const (
	ResourceEmails      Resource = "emails"
	ResourceSMS         Resource = "sms"
	ResourceWhatsApp    Resource = "whatsapp"
	ResourceScans       Resource = "scans"
	ResourceSequences   Resource = "sequences"
	ResourceEnrichments Resource = "enrichments"
)

// ResourceForChannel maps a delivery channel to the resource it consumes.
func ResourceForChannel(ch Channel) Resource {
	switch ch {
	case ChannelSMS:
		return ResourceSMS
	case ChannelWhatsApp:
		return ResourceWhatsApp
	default:
		return ResourceEmails
	}
}

// QuotaUsage is one tenant-user's consumption for a single calendar month.
// Counters only grow within a period; a new period starts from zero.
type QuotaUsage struct {
	TenantID  string
	UserID    string
	Period    string // YYYY-MM
	Counters  map[Resource]int
	UpdatedAt time.Time
}

// EmailIntegration is a tenant's managed-mail configuration.
type EmailIntegration struct {
	Enabled   bool
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Signature string
}
