package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shopzone/shopzone-backend/api/middleware"
	"github.com/shopzone/shopzone-backend/api/responses"
	"github.com/shopzone/shopzone-backend/api/validators"
	cartsvc "github.com/shopzone/shopzone-backend/internal/cart"
	pkgerrors "github.com/shopzone/shopzone-backend/pkg/errors"
	"github.com/shopzone/shopzone-backend/pkg/logger"
)

// GetCart returns the caller's cart, creating an empty one on first access.
func GetCart(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteEntity(w, http.StatusOK, view)
	}
}

type addCartItemsRequest struct {
	Items []addCartItemRequest `json:"items" validate:"required,min=1,dive"`
}

type addCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

func (req addCartItemsRequest) toInputs() []cartsvc.AddItemInput {
	inputs := make([]cartsvc.AddItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		inputs = append(inputs, cartsvc.AddItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return inputs
}

// AddCartItems merges a batch of lines into the caller's cart.
func AddCartItems(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addCartItemsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AddItems(r.Context(), userID, payload.toInputs())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteEntity(w, http.StatusOK, view)
	}
}

type updateCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity,omitempty" validate:"omitempty,gt=0"`
}

// UpdateOrRemoveCartItem decrements a line or removes it outright.
func UpdateOrRemoveCartItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateOrRemoveItem(r.Context(), userID, payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteEntity(w, http.StatusOK, view)
	}
}

func currentUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}
