package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTP is a one-time code issued during registration and password reset.
// Key identifies the challenge publicly; Token is only handed out after a
// successful password-reset verification.
type OTP struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Code      string    `gorm:"column:code;not null"`
	Key       uuid.UUID `gorm:"column:key;type:uuid;not null;uniqueIndex"`
	Token     uuid.UUID `gorm:"column:token;type:uuid;not null;uniqueIndex"`
	Attempts  int       `gorm:"column:attempts;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *OTP) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Key == uuid.Nil {
		o.Key = uuid.New()
	}
	if o.Token == uuid.Nil {
		o.Token = uuid.New()
	}
	return nil
}
