package market

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"courtship/internal/model"
)

// roseSampler draws a per-episode rose budget from the configured distribution.
type roseSampler struct {
	options []model.RoseOption
	dist    distuv.Categorical
}

func newRoseSampler(options []model.RoseOption, src rand.Source) (roseSampler, error) {
	if err := ValidateRoses(options); err != nil {
		return roseSampler{}, err
	}
	weights := make([]float64, len(options))
	for i, o := range options {
		weights[i] = o.Probability
	}
	return roseSampler{
		options: append([]model.RoseOption(nil), options...),
		dist:    distuv.NewCategorical(weights, src),
	}, nil
}

func (s roseSampler) Draw() int {
	return s.options[int(s.dist.Rand())].Roses
}
