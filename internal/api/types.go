package api

import "github.com/nftindexer/indexer/internal/domain"

// OrderStatusResponse is the thin read view of one order's current
// lifecycle state.
type OrderStatusResponse struct {
	Hash              string `json:"hash"`
	Kind              string `json:"kind"`
	Side              string `json:"side"`
	Maker             string `json:"maker"`
	Price             string `json:"price"`
	Value             string `json:"value"`
	TokenSetID        string `json:"token_set_id"`
	FillabilityStatus string `json:"fillability_status"`
	ApprovalStatus    string `json:"approval_status"`
	ValidFrom         string `json:"valid_from"`
	ValidUntil        string `json:"valid_until"`
}

func toOrderStatusResponse(o *domain.Order) OrderStatusResponse {
	return OrderStatusResponse{
		Hash:              o.Hash,
		Kind:              string(o.Kind),
		Side:              string(o.Side),
		Maker:             o.Maker,
		Price:             o.Price.String(),
		Value:             o.Value.String(),
		TokenSetID:        o.TokenSetID,
		FillabilityStatus: string(o.FillabilityStatus),
		ApprovalStatus:    string(o.ApprovalStatus),
		ValidFrom:         o.ValidFrom.Format(dateLayout),
		ValidUntil:        o.ValidUntil.Format(dateLayout),
	}
}

const dateLayout = "2006-01-02T15:04:05Z07:00"

// BestPriceResponse is the top-of-book view for one token set and side.
type BestPriceResponse struct {
	TokenSetID string `json:"token_set_id"`
	Side       string `json:"side"`
	Value      string `json:"value"`
	OrderHash  string `json:"order_hash"`
}

func toBestPriceResponse(b *domain.BestPrice) BestPriceResponse {
	return BestPriceResponse{
		TokenSetID: b.TokenSetID,
		Side:       string(b.Side),
		Value:      b.Value.String(),
		OrderHash:  b.OrderHash,
	}
}
