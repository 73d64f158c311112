package report

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the settlement currency of every A-share session.
const Currency = money.CNY

// Money formats amount in the session currency, rounded to its minor unit.
func Money(amount float64) string {
	cur := money.GetCurrency(Currency)
	factor := decimal.New(1, int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0).IntPart()
	return money.New(minor, Currency).Display()
}

// SignedMoney formats amount with an explicit sign for gains.
func SignedMoney(amount float64) string {
	if amount > 0 {
		return "+" + Money(amount)
	}
	return Money(amount)
}
