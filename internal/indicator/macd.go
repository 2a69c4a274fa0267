package indicator

// MACD tracks the difference between a fast and a slow EMA, with an optional signal line.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int // 0 disables the signal line

	prices      []float64
	emaFast     float64
	emaSlow     float64
	initialized bool

	history           []float64
	signal            float64
	signalInitialized bool
}

// NewMACD creates a MACD. A signalPeriod of 0 disables the signal line.
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	if fastPeriod < 1 {
		fastPeriod = 1
	}
	if slowPeriod < 1 {
		slowPeriod = 1
	}
	if signalPeriod < 0 {
		signalPeriod = 0
	}
	return &MACD{
		fastPeriod:   fastPeriod,
		slowPeriod:   slowPeriod,
		signalPeriod: signalPeriod,
	}
}

// Add feeds the next price. Both EMAs are seeded with the simple mean of the
// first slowPeriod prices rather than the first price.
func (m *MACD) Add(price float64) {
	m.prices = append(m.prices, price)

	switch {
	case !m.initialized && len(m.prices) >= m.slowPeriod:
		sma := mean(m.prices)
		m.emaFast = sma
		m.emaSlow = sma
		m.initialized = true
	case m.initialized:
		m.emaFast = emaStep(m.emaFast, price, m.fastPeriod)
		m.emaSlow = emaStep(m.emaSlow, price, m.slowPeriod)
	}

	if m.initialized && m.signalPeriod > 0 {
		m.addSignal(m.emaFast - m.emaSlow)
	}

	m.prices = trimFront(m.prices, m.slowPeriod+1)
}

func (m *MACD) addSignal(value float64) {
	m.history = append(m.history, value)
	m.history = trimFront(m.history, m.signalPeriod+1)

	switch {
	case !m.signalInitialized && len(m.history) >= m.signalPeriod:
		m.signal = mean(m.history)
		m.signalInitialized = true
	case m.signalInitialized:
		m.signal = emaStep(m.signal, value, m.signalPeriod)
	}
}

// Value returns the MACD line (fast EMA minus slow EMA).
func (m *MACD) Value() (float64, bool) {
	if !m.initialized {
		return 0, false
	}
	return m.emaFast - m.emaSlow, true
}

// Signal returns the signal line, if one is configured and seeded.
func (m *MACD) Signal() (float64, bool) {
	if m.signalPeriod == 0 || !m.signalInitialized {
		return 0, false
	}
	return m.signal, true
}

func (m *MACD) Ready() bool {
	return m.initialized
}

func (m *MACD) SignalReady() bool {
	return m.signalPeriod > 0 && m.signalInitialized
}

// ResetToNeutral clears all state and marks the indicator (and its signal line,
// when configured) ready with every EMA at zero.
func (m *MACD) ResetToNeutral() {
	m.prices = m.prices[:0]
	m.history = m.history[:0]
	m.emaFast = 0
	m.emaSlow = 0
	m.signal = 0
	m.initialized = true
	m.signalInitialized = m.signalPeriod > 0
}
