package models

import (
	"time"

	"gorm.io/gorm"
)

// Availability tiers a player can submit for a single date.
const (
	AvailabilityYes      = "yes"
	AvailabilityIfNeeded = "if_needed"
	AvailabilityMaybe    = "maybe"
	AvailabilityNo       = "no"
)

// ValidAvailability reports whether s is one of the four tiers.
func ValidAvailability(s string) bool {
	switch s {
	case AvailabilityYes, AvailabilityIfNeeded, AvailabilityMaybe, AvailabilityNo:
		return true
	}
	return false
}

// Poll is a time-boxed voting window for one upcoming session. Session
// numbers form a dense 0..N-1 sequence per campaign and are renumbered
// when a poll is deleted. The slug is the public identifier and is never
// reused.
type Poll struct {
	gorm.Model
	Slug          string  `gorm:"size:16;uniqueIndex;not null" json:"slug"`
	CampaignID    uint    `gorm:"not null;index" json:"campaign_id"`
	SessionNumber int     `json:"session_number"`
	StartDate     string  `gorm:"type:date;not null" json:"start_date"`
	EndDate       string  `gorm:"type:date;not null" json:"end_date"`
	IsClosed      bool    `gorm:"default:false" json:"is_closed"`
	SelectedDate  *string `gorm:"type:date" json:"selected_date"`
	IsManual      bool    `gorm:"default:false" json:"is_manual"`

	// One-shot notification triggers. Reopening a poll does not reset
	// them.
	NotifiedCreated bool `gorm:"default:false" json:"notified_created"`
	NotifiedRespond bool `gorm:"default:false" json:"notified_respond"`
	NotifiedDecide  bool `gorm:"default:false" json:"notified_decide"`

	Responses []Response `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE" json:"responses,omitempty"`
}

// Response records one player's availability for one date inside a poll's
// window. The (poll, player, date) triple is unique; resubmission is an
// upsert, last write wins. No soft delete here: a dead row under the
// unique index would shadow the next vote for the same triple.
type Response struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	PollID       uint      `gorm:"not null;uniqueIndex:idx_poll_player_date" json:"poll_id"`
	PlayerID     uint      `gorm:"not null;uniqueIndex:idx_poll_player_date" json:"player_id"`
	ResponseDate string    `gorm:"type:date;not null;uniqueIndex:idx_poll_player_date" json:"response_date"`
	Availability string    `gorm:"not null" json:"availability"`

	PlayerName string `gorm:"-" json:"player_name,omitempty"`
}
