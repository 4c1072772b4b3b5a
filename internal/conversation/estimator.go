package conversation

import "strings"

// TokenEstimator returns the size of rendered text in model units.
type TokenEstimator interface {
	CountTokens(text string) int
}

type EstimatorFunc func(text string) int

func (f EstimatorFunc) CountTokens(text string) int { return f(text) }

// WordCount is a whitespace-delimited estimator, handy when exact tokenizer
// output does not matter.
var WordCount = EstimatorFunc(func(text string) int {
	return len(strings.Fields(text))
})
