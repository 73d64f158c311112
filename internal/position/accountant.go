// Package position computes the running cost basis of a single holding
// from an ordered list of fills, using the moving weighted-average method.
package position

// Side classifies a fill for cost accounting.
type Side string

const (
	SideBuy      Side = "buy"
	SideSell     Side = "sell"
	SideDayTrade Side = "day_trade"
	SideSkip     Side = "skip"
)

// RoundTrip carries the two legs of a same-day round trip.
type RoundTrip struct {
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
}

// Gain returns the realized gain per unit of the round trip.
func (r RoundTrip) Gain() float64 {
	return r.SellPrice - r.BuyPrice
}

// Fill is one executed trade, with Quantity in shares.
type Fill struct {
	Side     Side
	Price    float64
	Quantity int64
	// RoundTrip is only read for SideDayTrade fills.
	RoundTrip *RoundTrip
}

// Holding is the result of folding a fill list.
type Holding struct {
	Quantity  int64   `json:"quantity"`
	CostBasis float64 `json:"cost_basis"` // average cost per held share
	TotalCost float64 `json:"total_cost"`
}

// IsFlat reports whether nothing is held.
func (h Holding) IsFlat() bool {
	return h.Quantity == 0
}

// Apply folds one fill into the holding and returns the new holding.
//
// Sells are capped at the held quantity; rejecting an oversell is the
// caller's job. A day trade never changes the quantity, and only moves the
// total cost when its round trip is known: a gain lowers the cost, a loss
// raises it.
func (h Holding) Apply(f Fill) Holding {
	switch f.Side {
	case SideBuy:
		h.TotalCost += f.Price * float64(f.Quantity)
		h.Quantity += f.Quantity
	case SideSell:
		if h.Quantity <= 0 {
			break
		}
		sold := min(f.Quantity, h.Quantity)
		perUnit := h.TotalCost / float64(h.Quantity)
		h.TotalCost -= perUnit * float64(sold)
		h.Quantity -= sold
	case SideDayTrade:
		if f.RoundTrip != nil {
			h.TotalCost -= f.RoundTrip.Gain() * float64(f.Quantity)
		}
	}

	// Flat positions carry no cost; drop float residue.
	if h.Quantity == 0 {
		h.TotalCost = 0
	}
	h.CostBasis = 0
	if h.Quantity > 0 {
		h.CostBasis = h.TotalCost / float64(h.Quantity)
	}
	return h
}

// Accumulate folds fills in order, starting from an empty holding.
func Accumulate(fills []Fill) Holding {
	var h Holding
	for _, f := range fills {
		h = h.Apply(f)
	}
	return h
}
