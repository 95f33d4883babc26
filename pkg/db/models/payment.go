package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopzone/shopzone-backend/pkg/enums"
)

// Payment is an immutable financial record created once per checkout. It
// carries no cart foreign key — the association with the cart that produced
// it is temporal, not structural.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	PaymentMethod string              `gorm:"column:payment_method;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
