package matching

// Signal is one similarity measurement between two reports: either a value
// in [0,1] or absent. Absence and zero are different things; the composite
// stage redistributes the weight of absent signals instead of averaging in
// a punishing zero.
type Signal struct {
	value   float64
	present bool
}

// SignalOf returns a present signal, clamped to [0,1].
func SignalOf(v float64) Signal {
	return Signal{value: clamp01(v), present: true}
}

// NoSignal returns the absent signal.
func NoSignal() Signal {
	return Signal{}
}

func (s Signal) Present() bool { return s.present }

// Value returns the score; only meaningful when Present.
func (s Signal) Value() float64 { return s.value }

// Exceeds reports whether the signal is present and strictly above t.
func (s Signal) Exceeds(t float64) bool {
	return s.present && s.value > t
}

// Signals bundles the four per-pair measurements.
type Signals struct {
	Text  Signal
	Image Signal
	Geo   Signal
	Time  Signal
}

// Available counts present signals.
func (s Signals) Available() int {
	n := 0
	for _, sig := range []Signal{s.Text, s.Image, s.Geo, s.Time} {
		if sig.Present() {
			n++
		}
	}
	return n
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
