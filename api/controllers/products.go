package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopzone/shopzone-backend/api/responses"
	"github.com/shopzone/shopzone-backend/api/validators"
	catalogsvc "github.com/shopzone/shopzone-backend/internal/catalog"
	pkgerrors "github.com/shopzone/shopzone-backend/pkg/errors"
	"github.com/shopzone/shopzone-backend/pkg/logger"
	"github.com/shopzone/shopzone-backend/pkg/pagination"
)

// ListProducts serves the filtered, cursor-paginated catalog listing.
func ListProducts(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := parseListProductsQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListProducts(r.Context(), *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "products retrieved", result)
	}
}

func parseListProductsQuery(r *http.Request) (*catalogsvc.ListProductsInput, error) {
	query := r.URL.Query()

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return nil, err
	}

	input := catalogsvc.ListProductsInput{
		Filters: catalogsvc.ProductListFilters{
			CategoryName: query.Get("category"),
			Query:        query.Get("search"),
		},
		Pagination: pagination.Params{
			Limit:  limit,
			Cursor: query.Get("cursor"),
		},
	}

	if raw := query.Get("min_price"); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid min_price")
		}
		input.Filters.PriceMin = &value
	}
	if raw := query.Get("max_price"); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid max_price")
		}
		input.Filters.PriceMax = &value
	}
	return &input, nil
}

type bulkCreateProductsRequest struct {
	CategoryID uuid.UUID             `json:"category_id" validate:"required"`
	Products   []productInputRequest `json:"products" validate:"required,min=1,dive"`
}

type productInputRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

func (req bulkCreateProductsRequest) toInputs() []catalogsvc.ProductInput {
	inputs := make([]catalogsvc.ProductInput, 0, len(req.Products))
	for _, p := range req.Products {
		inputs = append(inputs, catalogsvc.ProductInput{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Stock:       p.Stock,
		})
	}
	return inputs
}

// BulkCreateProducts creates a batch of products inside one category.
func BulkCreateProducts(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload bulkCreateProductsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.BulkCreate(r.Context(), payload.CategoryID, payload.toInputs())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusCreated, "products created", views)
	}
}

type bulkDeleteProductsRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids" validate:"required,min=1"`
}

type bulkDeleteProductsResponse struct {
	Deleted int64 `json:"deleted"`
}

// BulkDeleteProducts removes the given products from one category.
func BulkDeleteProducts(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categoryID, err := uuid.Parse(chi.URLParam(r, "categoryID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id"))
			return
		}

		var payload bulkDeleteProductsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.BulkDelete(r.Context(), categoryID, payload.ProductIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "products deleted", bulkDeleteProductsResponse{Deleted: count})
	}
}
