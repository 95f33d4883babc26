package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopzone/shopzone-backend/pkg/db/models"
	"github.com/shopzone/shopzone-backend/pkg/enums"
)

// PaymentView is the wire shape of a recorded payment.
type PaymentView struct {
	ID            uuid.UUID           `json:"id"`
	UserID        uuid.UUID           `json:"user_id"`
	Amount        string              `json:"amount"`
	PaymentMethod string              `json:"payment_method"`
	Status        enums.PaymentStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

// NewPaymentView projects the persisted payment into its read model.
func NewPaymentView(payment *models.Payment) *PaymentView {
	return &PaymentView{
		ID:            payment.ID,
		UserID:        payment.UserID,
		Amount:        payment.Amount.StringFixed(2),
		PaymentMethod: payment.PaymentMethod,
		Status:        payment.Status,
		CreatedAt:     payment.CreatedAt,
	}
}
