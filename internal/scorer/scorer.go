// Package scorer implements the feed-forward ranking network that turns a
// command's ten contextual features into a single rank value. The network
// shape (one hidden node, one output node, tanh activation) and its default
// weights are fixed constants rather than something this package trains;
// weights.Store supplies hot-reloadable overrides.
package scorer

import "math"

// Features holds the ten signals the network scores, in the fixed order
// the SQL context builder computes them in and the shellmem_rank SQL function
// binds them in.
type Features struct {
	Age                 float64
	Length              float64
	Exit                float64
	RecentFailure       float64
	SelectedDir         float64
	Dir                 float64
	Overlap             float64
	ImmediateOverlap    float64
	SelectedOccurrences float64
	Occurrences         float64
}

// Slice returns the features in shellmem_rank's fixed argument order.
func (f Features) Slice() [10]float64 {
	return [10]float64{
		f.Age, f.Length, f.Exit, f.RecentFailure, f.SelectedDir,
		f.Dir, f.Overlap, f.ImmediateOverlap, f.SelectedOccurrences, f.Occurrences,
	}
}

// Weights holds one coefficient per feature plus the hidden node's bias
// (Offset) and the output node's bias and weight. A network with a single
// hidden node of arity ten and a single linear output node, both present
// in the reference this was ported from even though one of its two
// weight tables only ever uses nine of the ten.
type Weights struct {
	Offset              float64
	Age                 float64
	Length              float64
	Exit                float64
	RecentFailure       float64
	SelectedDir         float64
	Dir                 float64
	Overlap             float64
	ImmediateOverlap    float64
	SelectedOccurrences float64
	Occurrences         float64
	OutputBias          float64
	OutputWeight        float64
}

// Default holds the compiled-in weight set. weights.Store may override
// some or all of these fields from a TOML file without touching the
// others.
var Default = Weights{
	Offset:              0.29245419930668487,
	Age:                 -0.02498043751672841,
	Length:              -0.0402101852705075,
	Exit:                0.3676148896415478,
	RecentFailure:       0.07832196604005508,
	SelectedDir:         5.0,
	Dir:                 1.0,
	Overlap:             0.5186653870671801,
	ImmediateOverlap:    0.8630829374776654,
	SelectedOccurrences: 0.4,
	Occurrences:         0.24541731107371384,
	OutputBias:          0.0,
	OutputWeight:        1.0,
}

// dot computes the hidden node's pre-activation sum: the bias plus the
// weighted feature sum.
func (w Weights) dot(f Features) float64 {
	return w.Offset +
		w.Age*f.Age +
		w.Length*f.Length +
		w.Exit*f.Exit +
		w.RecentFailure*f.RecentFailure +
		w.SelectedDir*f.SelectedDir +
		w.Dir*f.Dir +
		w.Overlap*f.Overlap +
		w.ImmediateOverlap*f.ImmediateOverlap +
		w.SelectedOccurrences*f.SelectedOccurrences +
		w.Occurrences*f.Occurrences
}

// hidden returns the single hidden node's activation: tanh of its
// weighted input sum.
func (w Weights) hidden(f Features) float64 {
	return math.Tanh(w.dot(f))
}

// Score runs the two-layer network forward and returns the rank value
// for f. Higher is better; the ranking engine sorts descending on this.
func Score(w Weights, f Features) float64 {
	return w.OutputBias + w.OutputWeight*w.hidden(f)
}
