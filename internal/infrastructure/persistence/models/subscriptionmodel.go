package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/jaxspot/billing/internal/shared/constants"
)

// SubscriptionModel represents the database persistence model for subscriptions
// This is the anti-corruption layer between domain and database
type SubscriptionModel struct {
	ID        uint       `gorm:"primarykey"`
	Provider  string     `gorm:"not null;size:20;uniqueIndex:uk_provider_code,priority:1;index:idx_provider_status,priority:1"`
	Code      string     `gorm:"not null;size:128;uniqueIndex:uk_provider_code,priority:2"`
	Status    string     `gorm:"not null;size:20;index:idx_provider_status,priority:2;index:idx_status_expires,priority:1"`
	Renewable bool       `gorm:"not null;default:false"`
	ExpiresAt *time.Time `gorm:"index:idx_status_expires,priority:2"`
	MemberID  uint       `gorm:"not null;index:idx_member"`
	// LiveSlot is "<member>:<provider>" while the subscription is pending or
	// active and NULL afterwards. Its unique index allows one live
	// subscription per member and provider.
	LiveSlot  *string    `gorm:"size:64;uniqueIndex:uk_live_slot"`
	Version   int        `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (SubscriptionModel) TableName() string {
	return constants.TableSubscriptions
}

// BeforeCreate hook for GORM
func (s *SubscriptionModel) BeforeCreate(tx *gorm.DB) error {
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}
