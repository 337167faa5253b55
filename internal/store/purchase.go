package store

import (
	"context"

	"github.com/bluecarbon-mrv/portal/types"
)

// PurchaseRepository reads credit purchase records.
type PurchaseRepository struct {
	db DBTX
}

func NewPurchaseRepository(db DBTX) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) ListByBuyer(ctx context.Context, buyerID string) ([]types.CreditPurchase, error) {
	const query = `
		SELECT id, buyer_id, site_id, credits, price_per_tonne, currency, purchased_at
		FROM credit_purchases
		WHERE buyer_id = $1
		ORDER BY purchased_at DESC`
	rows, err := r.db.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]types.CreditPurchase, 0)
	for rows.Next() {
		var purchase types.CreditPurchase
		if err := rows.Scan(
			&purchase.ID,
			&purchase.BuyerID,
			&purchase.SiteID,
			&purchase.Credits,
			&purchase.PricePerTonne,
			&purchase.Currency,
			&purchase.PurchasedAt,
		); err != nil {
			return nil, err
		}
		purchases = append(purchases, purchase)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}
