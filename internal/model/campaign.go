package model

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
	CampaignArchived  CampaignStatus = "archived"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

type StepContent struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Step is one position in a campaign's sequence. Steps are immutable once
// the campaign is active; DelayDays is the wait before the *next* step
// becomes due after this one fires.
type Step struct {
	Channel   Channel     `json:"channel"`
	Content   StepContent `json:"content"`
	DelayDays int         `json:"delay_days"`
}

// ResolvedChannel returns the step's channel, defaulting to email.
func (s Step) ResolvedChannel() Channel {
	if s.Channel == "" {
		return ChannelEmail
	}
	return s.Channel
}

type CampaignStats struct {
	Sent            int             `json:"sent"`
	SentByChannel   map[Channel]int `json:"sent_by_channel,omitempty"`
	LastProcessedAt *time.Time      `json:"last_processed_at,omitempty"`
}

type Campaign struct {
	ID       string
	TenantID string
	// OwnerID is the tenant-user whose plan and quota govern every send
	// made on behalf of this campaign.
	OwnerID   string
	Name      string
	Status    CampaignStatus
	Steps     []Step
	Stats     CampaignStats
	CreatedAt time.Time
	UpdatedAt time.Time
}
