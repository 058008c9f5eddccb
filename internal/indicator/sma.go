package indicator

// MovingAverage returns the arithmetic mean of the last period prices.
// ok is false when period <= 0 or fewer than period prices exist.
func MovingAverage(prices []float64, period int) (avg float64, ok bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), true
}
