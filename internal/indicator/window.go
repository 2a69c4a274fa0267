package indicator

// trimFront drops the oldest values so that at most limit remain.
// The returned slice reuses the backing array.
func trimFront(values []float64, limit int) []float64 {
	if limit < 0 {
		limit = 0
	}
	if excess := len(values) - limit; excess > 0 {
		n := copy(values, values[excess:])
		return values[:n]
	}
	return values
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// emaStep advances an exponential moving average with smoothing 2/(period+1).
func emaStep(prev, value float64, period int) float64 {
	alpha := 2 / float64(period+1)
	return prev + alpha*(value-prev)
}
