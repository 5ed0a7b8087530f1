package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/theluxmining/commerce-backend/api/responses"
	"github.com/theluxmining/commerce-backend/internal/products"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/logger"
)

// ProductsList returns the sellable catalog.
func ProductsList(repo products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product repository unavailable"))
			return
		}

		rows, err := repo.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products"))
			return
		}

		items := make([]productResponse, 0, len(rows))
		for i := range rows {
			items = append(items, newProductResponse(&rows[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

type productResponse struct {
	ID             uuid.UUID `json:"id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	WeightGrams    int       `json:"weight_grams"`
	StockQuantity  int       `json:"stock_quantity"`
}

func newProductResponse(product *models.Product) productResponse {
	return productResponse{
		ID:             product.ID,
		SKU:            product.SKU,
		Name:           product.Name,
		Description:    product.Description,
		UnitPriceCents: product.UnitPriceCents,
		WeightGrams:    product.WeightGrams,
		StockQuantity:  product.StockQuantity,
	}
}
