package payment

import "github.com/shopspring/decimal"

// Fee splits amount into the platform's share and the freelance's share.
// The fee is rounded half away from zero to a whole currency unit and the
// freelance gets the exact remainder.
func Fee(amount, percent int64) (platformFee, freelanceAmount int64) {
	fee := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	return fee, amount - fee
}
