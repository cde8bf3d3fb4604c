package models

// BoolValue wraps a single boolean observation, the representation consumed
// by BetaBernoulli.
type BoolValue struct {
	V      bool
	Masked bool
}

func (b BoolValue) AnyMasked() bool { return b.Masked }

// Float64Value wraps a single real-valued observation, the representation
// consumed by NormalInverseChiSq.
type Float64Value struct {
	V      float64
	Masked bool
}

func (f Float64Value) AnyMasked() bool { return f.Masked }
