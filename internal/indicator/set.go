package indicator

// Config holds the periods shared by every indicator set.
type Config struct {
	Lookback     int
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int // 0 disables the MACD signal line
}

// Set bundles the three indicators tracked for one side (up or down) of one asset.
type Set struct {
	RSI      *RSI
	MACD     *MACD
	Momentum *Momentum
}

// NewSet builds a set whose RSI and MACD are reset to neutral, so both report
// a value before enough real samples have arrived.
func NewSet(cfg Config) *Set {
	s := &Set{
		RSI:      NewRSI(cfg.Lookback),
		MACD:     NewMACD(cfg.FastPeriod, cfg.SlowPeriod, cfg.SignalPeriod),
		Momentum: NewMomentum(cfg.Lookback),
	}
	s.RSI.ResetToNeutral()
	s.MACD.ResetToNeutral()
	return s
}

// Add feeds price to all three indicators.
func (s *Set) Add(price float64) {
	s.RSI.Add(price)
	s.MACD.Add(price)
	s.Momentum.Add(price)
}
