package indicator

// FlatRSI is reported when the look-back window has neither gains nor
// losses. Neutral, so a flat market triggers neither threshold.
const FlatRSI = 50.0

// RSI returns the Relative Strength Index over the last period price
// changes, using simple averages of gains and losses (not Wilder smoothing):
//
//	RS  = avgGain / avgLoss
//	RSI = 100 - 100/(1+RS)
//
// A window with gains and no losses is 100; a flat window is FlatRSI.
// ok is false when period <= 0 or fewer than period+1 prices exist.
func RSI(prices []float64, period int) (rsi float64, ok bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}

	window := prices[len(prices)-period-1:]
	var gain, loss float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	switch {
	case avgGain == 0 && avgLoss == 0:
		return FlatRSI, true
	case avgLoss == 0:
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
