package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCurrency(t *testing.T) {
	assert.Equal(t, CurrencyLocal, ParseCurrency("peso_Argentino"))
	assert.Equal(t, CurrencyLocal, ParseCurrency("Peso"))
	assert.Equal(t, CurrencyReference, ParseCurrency("dolares_EstadosUnidos"))
	assert.Equal(t, CurrencyReference, ParseCurrency(""))
}

func TestExchangeRateConversions(t *testing.T) {
	rate := ExchangeRate{BuyRate: 1000, SellRate: 1200}

	assert.Equal(t, 1.5, rate.ToUSD(1500))
	assert.Equal(t, 2400.0, rate.ToARS(2))

	// Division guard for a zero buy rate.
	assert.Zero(t, ExchangeRate{}.ToUSD(1500))
}

func TestResolveByCurrency(t *testing.T) {
	rate := ExchangeRate{BuyRate: 1000, SellRate: 1200}

	local := rate.Resolve(500, CurrencyLocal)
	assert.Equal(t, 500.0, local.ARS)
	assert.Equal(t, 0.5, local.USD)

	reference := rate.Resolve(50, CurrencyReference)
	assert.Equal(t, 50.0, reference.USD)
	assert.Equal(t, 60000.0, reference.ARS)
}

func TestPositionMarketValue(t *testing.T) {
	p := Position{Quantity: 10, LastPriceARS: 1200, LastPriceUSD: 1.2}
	value := p.MarketValue()
	assert.Equal(t, 12000.0, value.ARS)
	assert.Equal(t, 12.0, value.USD)
}

func TestOperationClassification(t *testing.T) {
	buys := []string{OperationBuy, OperationSubscription, OperationSubscriptionOTC}
	for _, typ := range buys {
		op := Operation{Type: typ}
		assert.True(t, op.IsBuyClass(), typ)
		assert.False(t, op.IsSellClass(), typ)
	}

	sells := []string{OperationSell, OperationRedemption, OperationRedemptionOTC}
	for _, typ := range sells {
		op := Operation{Type: typ}
		assert.True(t, op.IsSellClass(), typ)
		assert.False(t, op.IsBuyClass(), typ)
	}

	other := Operation{Type: "Pago de Dividendos"}
	assert.False(t, other.IsBuyClass())
	assert.False(t, other.IsSellClass())
}
