package controllers

import (
	"net/http"

	"github.com/shopzone/shopzone-backend/api/responses"
	"github.com/shopzone/shopzone-backend/api/validators"
	catalogsvc "github.com/shopzone/shopzone-backend/internal/catalog"
	"github.com/shopzone/shopzone-backend/pkg/logger"
)

// ListCategories serves every category, ordered by name.
func ListCategories(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "categories retrieved", categories)
	}
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

// CreateCategory creates a new, uniquely named category.
func CreateCategory(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.CreateCategory(r.Context(), payload.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusCreated, "category created", category)
	}
}
