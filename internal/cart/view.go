package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopzone/shopzone-backend/pkg/db/models"
)

// CartView is the wire shape of a cart. Money renders with exactly two
// fraction digits so an empty cart totals "0.00", not "0".
type CartView struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	Items      []CartItemView `json:"items"`
	TotalItems int            `json:"total_items"`
	TotalPrice string         `json:"total_price"`
}

// CartItemView is one line of the cart read model.
type CartItemView struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Quantity  int       `json:"quantity"`
	Subtotal  string    `json:"subtotal"`
}

// ComputeTotals sums quantities and line prices across the cart.
func ComputeTotals(items []models.CartItem) (int, decimal.Decimal) {
	count := 0
	total := decimal.Zero
	for _, item := range items {
		count += item.Quantity
		if item.Product == nil {
			continue
		}
		line := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return count, total.Round(2)
}

// NewCartView projects the persisted cart into its read model.
func NewCartView(cart *models.Cart) *CartView {
	view := &CartView{
		ID:     cart.ID,
		UserID: cart.UserID,
		Items:  make([]CartItemView, 0, len(cart.Items)),
	}

	for _, item := range cart.Items {
		line := CartItemView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
		if item.Product != nil {
			line.Name = item.Product.Name
			line.Price = item.Product.Price.StringFixed(2)
			line.Subtotal = item.Product.Price.
				Mul(decimal.NewFromInt(int64(item.Quantity))).
				StringFixed(2)
		}
		view.Items = append(view.Items, line)
	}

	count, total := ComputeTotals(cart.Items)
	view.TotalItems = count
	view.TotalPrice = total.StringFixed(2)
	return view
}
