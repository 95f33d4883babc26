package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/shopzone/shopzone-backend/api/responses"
	"github.com/shopzone/shopzone-backend/api/validators"
	checkoutsvc "github.com/shopzone/shopzone-backend/internal/checkout"
	"github.com/shopzone/shopzone-backend/pkg/logger"
)

type checkoutRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod string          `json:"payment_method" validate:"required"`
	Details       map[string]any  `json:"details" validate:"required"`
}

// CreatePayment records a payment and clears the caller's cart.
func CreatePayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Checkout(r.Context(), userID, checkoutsvc.CheckoutInput{
			Amount:        payload.Amount,
			PaymentMethod: payload.PaymentMethod,
			Details:       payload.Details,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteEntity(w, http.StatusCreated, view)
	}
}
