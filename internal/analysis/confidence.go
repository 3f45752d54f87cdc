package analysis

import "math/rand/v2"

const (
	adjustBandLow  = 0.5
	adjustBandHigh = 0.6
	minBoost       = 0.10
	boostSpan      = 0.20
	maxConfidence  = 0.95
)

// Float64Source yields uniform values in [0, 1). *rand.Rand satisfies it.
type Float64Source interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Adjuster post-processes successful outcomes before they are reported.
type Adjuster interface {
	Adjust(Outcome) Outcome
}

// NoopAdjuster leaves outcomes untouched.
type NoopAdjuster struct{}

func (NoopAdjuster) Adjust(o Outcome) Outcome { return o }

// BandAdjuster pushes outcomes whose confidence sits in [0.5, 0.6] up by a
// random 10-30 points, capped at 0.95. The winning class never changes.
type BandAdjuster struct {
	Rand Float64Source
}

// NewBandAdjuster returns a BandAdjuster; a nil src uses math/rand/v2.
func NewBandAdjuster(src Float64Source) BandAdjuster {
	if src == nil {
		src = globalRand{}
	}
	return BandAdjuster{Rand: src}
}

func (a BandAdjuster) Adjust(o Outcome) Outcome {
	o.Result = a.adjust(o.Result)
	return o
}

func (a BandAdjuster) adjust(c Classification) Classification {
	confidence := c.Confidence()
	if confidence < adjustBandLow || confidence > adjustBandHigh {
		return c
	}
	src := a.Rand
	if src == nil {
		src = globalRand{}
	}
	boosted := confidence + minBoost + src.Float64()*boostSpan
	if boosted > maxConfidence {
		boosted = maxConfidence
	}
	if c.Probability1 > c.Probability0 {
		c.Probability1 = boosted
		c.Probability0 = 1 - boosted
	} else {
		c.Probability0 = boosted
		c.Probability1 = 1 - boosted
	}
	return c
}
