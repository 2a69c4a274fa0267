// Package indicator implements rolling technical indicators fed one price at a time.
//
// None of the indicators return errors. A value that is not yet defined is
// reported as (0, false) and callers must check the flag before using it.
package indicator

// neutralAverage seeds both Wilder averages on reset so the RSI reads 50 immediately.
const neutralAverage = 0.01

// RSI is a Relative Strength Index with Wilder smoothing.
type RSI struct {
	period      int
	prices      []float64
	gains       []float64
	losses      []float64
	avgGain     float64
	avgLoss     float64
	initialized bool
}

func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{period: period}
}

// Add feeds the next price.
func (r *RSI) Add(price float64) {
	r.prices = append(r.prices, price)
	if len(r.prices) < 2 {
		return
	}

	change := price - r.prices[len(r.prices)-2]
	gain, loss := splitChange(change)
	r.gains = append(r.gains, gain)
	r.losses = append(r.losses, loss)

	p := float64(r.period)
	if !r.initialized {
		if len(r.gains) >= r.period {
			r.avgGain = mean(r.gains[len(r.gains)-r.period:])
			r.avgLoss = mean(r.losses[len(r.losses)-r.period:])
			r.initialized = true
		}
	} else {
		r.avgGain = (r.avgGain*(p-1) + gain) / p
		r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	}

	r.prices = trimFront(r.prices, r.period+1)
	r.gains = trimFront(r.gains, r.period)
	r.losses = trimFront(r.losses, r.period)
}

// Value returns the current RSI in [0, 100].
func (r *RSI) Value() (float64, bool) {
	if !r.initialized {
		return 0, false
	}
	return rsiFromAverages(r.avgGain, r.avgLoss), true
}

func (r *RSI) Ready() bool {
	return r.initialized
}

// ResetToNeutral discards history and marks the indicator ready at RSI 50.
func (r *RSI) ResetToNeutral() {
	r.prices = r.prices[:0]
	r.gains = r.gains[:0]
	r.losses = r.losses[:0]
	r.avgGain = neutralAverage
	r.avgLoss = neutralAverage
	r.initialized = true
}

// CalculateRSI computes a one-shot RSI over prices, which must hold at least period+1 values.
func CalculateRSI(prices []float64, period int) (float64, bool) {
	if period < 1 || len(prices) < period+1 {
		return 0, false
	}

	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		gain, loss := splitChange(prices[i] - prices[i-1])
		gains = append(gains, gain)
		losses = append(losses, loss)
	}

	avgGain := mean(gains[:period])
	avgLoss := mean(losses[:period])
	p := float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*(p-1) + gains[i]) / p
		avgLoss = (avgLoss*(p-1) + losses[i]) / p
	}

	return rsiFromAverages(avgGain, avgLoss), true
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50
	case avgLoss == 0:
		return 100
	case avgGain == 0:
		return 0
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func splitChange(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}
