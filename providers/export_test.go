package providers

import "github.com/stripe/stripe-go/v80"

// SetSessionCreator swaps the Stripe API call for tests.
func (s *StripeService) SetSessionCreator(f func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)) {
	s.newSession = f
}

// CheckOrderTotals runs the order amount checks on a single purchase unit.
func CheckOrderTotals(amount, itemTotal string, unitAmounts ...string) error {
	items := make([]paypalItem, 0, len(unitAmounts))
	for _, v := range unitAmounts {
		items = append(items, paypalItem{UnitAmount: paypalMoney{CurrencyCode: "USD", Value: v}, Quantity: "1"})
	}
	return checkOrderTotals(paypalOrderRequest{PurchaseUnits: []paypalPurchaseUnit{{
		Amount: &paypalAmount{
			CurrencyCode: "USD",
			Value:        amount,
			Breakdown:    &paypalBreakdown{ItemTotal: paypalMoney{CurrencyCode: "USD", Value: itemTotal}},
		},
		Items: items,
	}}})
}
