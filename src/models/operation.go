package models

import "time"

// Operation type tags as reported by the broker. Purchases and fund
// subscriptions are buy-class; sales and fund redemptions are sell-class.
const (
	OperationBuy             = "Compra"
	OperationSell            = "Venta"
	OperationSubscription    = "Suscripción FCI"
	OperationSubscriptionOTC = "Suscripción OTC"
	OperationRedemption      = "Rescate FCI"
	OperationRedemptionOTC   = "Rescate FCI OTC"
)

// Operation is a buy/sell event sourced from the broker's trade history.
// OperatedPrice is denominated in whichever currency the instrument trades in.
type Operation struct {
	OperationID   int64     `json:"operation_id"`
	Date          time.Time `json:"date"`
	Type          string    `json:"type"`
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	OperatedPrice float64   `json:"operated_price"`
}

// IsBuyClass reports whether the operation increases the held quantity.
func (o Operation) IsBuyClass() bool {
	switch o.Type {
	case OperationBuy, OperationSubscription, OperationSubscriptionOTC:
		return true
	}
	return false
}

// IsSellClass reports whether the operation decreases the held quantity.
func (o Operation) IsSellClass() bool {
	switch o.Type {
	case OperationSell, OperationRedemption, OperationRedemptionOTC:
		return true
	}
	return false
}

// LedgerOperation is the immutable audit record of an applied operation, with
// the trade price resolved into both currencies.
type LedgerOperation struct {
	ID          int64     `json:"id,omitempty"`
	OperationID int64     `json:"operation_id"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Symbol      string    `json:"symbol"`
	Quantity    float64   `json:"quantity"`
	PriceARS    float64   `json:"price_ars"`
	PriceUSD    float64   `json:"price_usd"`
}
