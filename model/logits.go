package model

import "math"

type LogitsKind string

const (
	LogitsSingle LogitsKind = "single-logit"
	LogitsMulti  LogitsKind = "multi-logit"
)

// Logits is the tagged classifier output produced at the scorer boundary, so
// downstream ranking code switches on the kind instead of re-deriving shape
// assumptions from raw slices.
type Logits struct {
	Kind   LogitsKind
	Values []float64
}

func NewLogits(values []float64) Logits {
	if len(values) == 1 {
		return Logits{Kind: LogitsSingle, Values: values}
	}
	return Logits{Kind: LogitsMulti, Values: values}
}

// RelevanceScore collapses the logits into a probability in [0,1]: sigmoid
// for a single logit, softmax with the last class taken as "relevant" for a
// multi-logit head.
func (l Logits) RelevanceScore() float64 {
	if len(l.Values) == 0 {
		return 0
	}

	switch l.Kind {
	case LogitsSingle:
		return sigmoid(l.Values[0])
	default:
		probs := softmax(l.Values)
		return probs[len(probs)-1]
	}
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

func softmax(values []float64) []float64 {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}

	exps := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		exps[i] = math.Exp(v - max)
		sum += exps[i]
	}
	if sum == 0 {
		return values
	}
	for i := range exps {
		exps[i] /= sum
	}
	return exps
}
