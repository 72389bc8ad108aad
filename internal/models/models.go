package models

import (
	"time"
)

// Confession is a single anonymous submission moving through review.
//
// StagingTS and PublishedTS are Slack message timestamps and act as the
// correlation keys for every interaction callback: the staging message in
// the review channel, and (once approved) the published message in the
// confessions channel.
//
// UIDSalt and UIDHash are the submitter's identity proof. The hash is a
// slow salted digest of the submitter's Slack user id, so the bot can
// later check "is this the original poster" without ever storing who
// posted.
type Confession struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Text string `gorm:"not null" json:"text"`

	// TWText holds the content warning shown in place of the body on
	// publish. Empty means no warning.
	TWText string `gorm:"column:tw_text" json:"twText,omitempty"`

	Approved bool `gorm:"not null;default:false" json:"approved"`
	Viewed   bool `gorm:"not null;default:false" json:"viewed"`
	Meta     bool `gorm:"not null;default:false" json:"meta"`

	StagingTS   string `gorm:"column:staging_ts;index" json:"-"`
	PublishedTS string `gorm:"column:published_ts;index" json:"-"`

	UIDSalt string `gorm:"column:uid_salt;not null" json:"-"`
	UIDHash string `gorm:"column:uid_hash;not null" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
