package indicator

// Aligned pads an indicator series on the left with nils so that index i
// lines up with the i-th of n input prices. A nil marks a bar without
// enough history for the indicator.
func Aligned(values []float64, n int) []*float64 {
	out := make([]*float64, n)
	offset := n - len(values)
	for i := range values {
		if offset+i < 0 {
			continue
		}
		v := values[i]
		out[offset+i] = &v
	}
	return out
}

// MovingAverages returns the SMA of closes for each period, aligned to closes.
func MovingAverages(closes []float64, periods ...int) map[int][]*float64 {
	out := make(map[int][]*float64, len(periods))
	for _, p := range periods {
		out[p] = Aligned(SMA(closes, p), len(closes))
	}
	return out
}
