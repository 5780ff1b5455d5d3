package experiment

import (
	"math"

	"github.com/samuelfneumann/despot/eval"
)

func summarize(discounted, undiscounted, steps []float64) eval.Summary {
	meanD, seD := meanStdErr(discounted)
	meanU, seU := meanStdErr(undiscounted)
	meanSteps, _ := meanStdErr(steps)
	return eval.Summary{
		NumEpisodes:        len(discounted),
		MeanDiscounted:     meanD,
		StdErrDiscounted:   seD,
		MeanUndiscounted:   meanU,
		StdErrUndiscounted: seU,
		MeanSteps:          meanSteps,
	}
}

func meanStdErr(xs []float64) (mean, stderr float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))

	if len(xs) < 2 {
		return mean, 0
	}
	var sqDiff float64
	for _, x := range xs {
		d := x - mean
		sqDiff += d * d
	}
	variance := sqDiff / float64(len(xs)-1)
	stderr = math.Sqrt(variance / float64(len(xs)))
	return mean, stderr
}
