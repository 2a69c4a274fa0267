package indicator

// Momentum is the percent change between the newest price and the price period steps earlier.
type Momentum struct {
	period int
	prices []float64
}

func NewMomentum(period int) *Momentum {
	if period < 1 {
		period = 1
	}
	return &Momentum{period: period}
}

func (m *Momentum) Add(price float64) {
	m.prices = append(m.prices, price)
	m.prices = trimFront(m.prices, m.period+1)
}

// Value returns the momentum in percent. It is undefined until the window is
// full and whenever the oldest price in the window is zero.
func (m *Momentum) Value() (float64, bool) {
	if !m.Ready() {
		return 0, false
	}
	past := m.prices[0]
	if past == 0 {
		return 0, false
	}
	current := m.prices[len(m.prices)-1]
	return (current - past) / past * 100, true
}

func (m *Momentum) Ready() bool {
	return len(m.prices) >= m.period+1
}

func (m *Momentum) Reset() {
	m.prices = m.prices[:0]
}
