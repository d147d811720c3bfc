package scorer

import (
	"math"
	"testing"
)

func TestScoreZeroFeaturesIsTanhOfOffset(t *testing.T) {
	got := Score(Default, Features{})
	want := math.Tanh(Default.Offset)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("Score(zero) = %v, want %v", got, want)
	}
}

func TestScoreMonotonicInSelectedDir(t *testing.T) {
	low := Score(Default, Features{SelectedDir: 0})
	high := Score(Default, Features{SelectedDir: 1})
	if !(high > low) {
		t.Fatalf("expected selected_dir=1 to outrank selected_dir=0: %v vs %v", high, low)
	}
}

func TestScoreBoundedByTanhRange(t *testing.T) {
	f := Features{
		Age: 1000, Length: 1000, Exit: 1000, RecentFailure: 1000,
		SelectedDir: 1000, Dir: 1000, Overlap: 1000, ImmediateOverlap: 1000,
		SelectedOccurrences: 1000, Occurrences: 1000,
	}
	got := Score(Default, f)
	if got > Default.OutputBias+Default.OutputWeight+1e-9 {
		t.Fatalf("Score exceeded the output layer's max possible value: %v", got)
	}
}

func TestFeaturesSliceOrder(t *testing.T) {
	f := Features{
		Age: 1, Length: 2, Exit: 3, RecentFailure: 4, SelectedDir: 5,
		Dir: 6, Overlap: 7, ImmediateOverlap: 8, SelectedOccurrences: 9, Occurrences: 10,
	}
	s := f.Slice()
	want := [10]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if s != want {
		t.Fatalf("Slice() = %v, want %v", s, want)
	}
}

func TestCustomWeightsOverrideOutput(t *testing.T) {
	w := Default
	w.OutputBias = 1.0
	w.OutputWeight = 0.0
	got := Score(w, Features{})
	if got != 1.0 {
		t.Fatalf("Score with zeroed output weight = %v, want 1.0", got)
	}
}
