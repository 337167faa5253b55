package services

import (
	"context"

	"github.com/bluecarbon-mrv/portal/types"
)

// PurchaseRepository reads credit purchases.
type PurchaseRepository interface {
	ListByBuyer(ctx context.Context, buyerID string) ([]types.CreditPurchase, error)
}

// PurchaseService serves the buyer's purchase history.
type PurchaseService struct {
	repo PurchaseRepository
}

func NewPurchaseService(repo PurchaseRepository) *PurchaseService {
	return &PurchaseService{repo: repo}
}

func (s *PurchaseService) ListByBuyer(ctx context.Context, buyerID string) ([]types.CreditPurchase, error) {
	return s.repo.ListByBuyer(ctx, buyerID)
}
