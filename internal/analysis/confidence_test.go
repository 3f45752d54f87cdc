package analysis

import (
	"math"
	"testing"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBandAdjuster(t *testing.T) {
	tests := []struct {
		name   string
		in     Classification
		rand   float64
		wantP0 float64
		wantP1 float64
	}{
		{name: "class 1 in band", in: Classification{1, 0.45, 0.55}, rand: 0.5, wantP0: 0.25, wantP1: 0.75},
		{name: "class 0 in band", in: Classification{0, 0.58, 0.42}, rand: 0, wantP0: 0.68, wantP1: 0.32},
		{name: "upper band edge", in: Classification{1, 0.4, 0.6}, rand: 0.99, wantP0: 0.102, wantP1: 0.898},
		{name: "tie boosts class 0", in: Classification{0, 0.5, 0.5}, rand: 0, wantP0: 0.6, wantP1: 0.4},
		{name: "above band untouched", in: Classification{1, 0.2, 0.8}, rand: 0.5, wantP0: 0.2, wantP1: 0.8},
		{name: "below band untouched", in: Classification{1, 0.45, 0.45}, rand: 0.5, wantP0: 0.45, wantP1: 0.45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := NewBandAdjuster(fixedSource(tt.rand))
			out := adj.Adjust(Outcome{ID: "r", Result: tt.in})
			if !approxEqual(out.Result.Probability0, tt.wantP0) || !approxEqual(out.Result.Probability1, tt.wantP1) {
				t.Fatalf("expected %.4f/%.4f, got %.4f/%.4f", tt.wantP0, tt.wantP1, out.Result.Probability0, out.Result.Probability1)
			}
			if out.Result.PredictedClass != tt.in.PredictedClass {
				t.Fatalf("class changed from %d to %d", tt.in.PredictedClass, out.Result.PredictedClass)
			}
		})
	}
}

func TestBandAdjusterKeepsWinnerAndBounds(t *testing.T) {
	adj := NewBandAdjuster(nil)
	for i := 0; i <= 100; i++ {
		p1 := float64(i) / 100
		in := Classification{PredictedClass: 0, Probability0: 1 - p1, Probability1: p1}
		if p1 > 1-p1 {
			in.PredictedClass = 1
		}
		out := adj.Adjust(Outcome{Result: in}).Result
		winnerBefore := in.Probability1 > in.Probability0
		winnerAfter := out.Probability1 > out.Probability0
		if winnerBefore != winnerAfter && !approxEqual(in.Probability0, in.Probability1) {
			t.Fatalf("winner flipped for %+v -> %+v", in, out)
		}
		if in.Confidence() < adjustBandLow || in.Confidence() > adjustBandHigh {
			if out != in {
				t.Fatalf("out-of-band input changed: %+v -> %+v", in, out)
			}
			continue
		}
		if out.Confidence() > maxConfidence+1e-9 {
			t.Fatalf("confidence above cap for %+v -> %+v", in, out)
		}
		if out.Confidence() < in.Confidence()+minBoost-1e-9 && out.Confidence() < maxConfidence {
			t.Fatalf("boost too small for %+v -> %+v", in, out)
		}
	}
}

func TestNoopAdjuster(t *testing.T) {
	in := Outcome{ID: "r", Result: Classification{1, 0.45, 0.55}}
	if out := (NoopAdjuster{}).Adjust(in); out != in {
		t.Fatalf("expected unchanged outcome, got %+v", out)
	}
}
