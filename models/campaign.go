package models

import (
	"gorm.io/gorm"
)

// Schedule policy variants
const (
	ScheduleDynamic = "dynamic" // next start = previous start + recurrence days
	ScheduleStatic  = "static"  // next start snaps to a fixed weekday every cycle
)

// DateLayout is the wire and storage format for calendar dates.
// ISO dates compare correctly as strings, which the inventory and
// notification sweeps rely on.
const DateLayout = "2006-01-02"

// Campaign represents a recurring group activity with its own players,
// schedule policy and poll history. At most one campaign is active at a
// time; activating one deactivates the rest in the same transaction.
type Campaign struct {
	gorm.Model
	Name     string `gorm:"not null" json:"name"`
	IsActive bool   `gorm:"default:false;index" json:"is_active"`

	// Scheduling
	StartDate      string `gorm:"type:date;not null" json:"start_date"`
	ScheduleType   string `gorm:"default:'dynamic'" json:"schedule_type"` // dynamic, static
	RecurrenceDays int    `gorm:"not null" json:"recurrence_days"`
	Weekday        *int   `json:"weekday"` // 0=Monday..6=Sunday, static policy only

	// Session window, local to Timezone
	SessionTimeStart string `gorm:"not null" json:"session_time_start"` // HH:MM
	SessionTimeEnd   string `gorm:"not null" json:"session_time_end"`   // HH:MM
	Timezone         string `gorm:"default:'UTC'" json:"timezone"`

	// Look-ahead and reminder offsets
	PollsInAdvance      int `gorm:"default:3" json:"polls_in_advance"`
	RespondDeadlineDays int `gorm:"default:14" json:"respond_deadline_days"`
	DecideDeadlineDays  int `gorm:"default:7" json:"decide_deadline_days"`

	// Notification sink
	WebhookURL string `json:"webhook_url"`

	// Relations
	Players []Player `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"players,omitempty"`
	Polls   []Poll   `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"polls,omitempty"`
}

// Player belongs to exactly one campaign. Names are unique per campaign;
// at most one player should carry the DM flag (campaign writes demote
// extras, scoring falls back to the lowest id).
type Player struct {
	gorm.Model
	CampaignID uint   `gorm:"not null;index;uniqueIndex:idx_campaign_player" json:"campaign_id"`
	Name       string `gorm:"not null;uniqueIndex:idx_campaign_player" json:"name"`
	IsDM       bool   `gorm:"default:false" json:"is_dm"`
	Mention    string `json:"mention"` // optional external mention identifier
}
