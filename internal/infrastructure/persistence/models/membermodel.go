package models

import (
	"time"

	"github.com/jaxspot/billing/internal/shared/constants"
)

// MemberModel is the billing service's read view of the members table.
type MemberModel struct {
	ID         uint    `gorm:"primarykey"`
	Email      string  `gorm:"size:255"`
	Name       string  `gorm:"size:100"`
	Locale     string  `gorm:"size:16"`
	Anonymous  bool    `gorm:"not null;default:false"`
	FacebookID *string `gorm:"size:64;uniqueIndex"`
	Operator   string  `gorm:"size:32"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName specifies the table name for GORM
func (MemberModel) TableName() string {
	return constants.TableMembers
}
