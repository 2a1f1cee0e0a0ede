package market

import (
	"errors"
	"fmt"
	"math"

	"courtship/internal/model"
)

var ErrConfig = errors.New("invalid market config")

const roseProbabilityTolerance = 1e-9

// Config is the immutable description of one market. DefaultConfig returns a fresh
// value on every call, so callers may modify their copy freely.
type Config struct {
	NumMen             int
	NumWomen           int
	MaxProposals       int
	Roses              []model.RoseOption
	DesirabilityMean   float64
	DesirabilityStdDev float64
	LearningRate       float64
	DiscountFactor     float64
	InitialExploration float64
	ExplorationDecay   float64
	MinExploration     float64
}

func DefaultConfig() Config {
	return Config{
		NumMen:       10,
		NumWomen:     10,
		MaxProposals: 3,
		Roses: []model.RoseOption{
			{Probability: 0.8, Roses: 2},
			{Probability: 0.2, Roses: 6},
		},
		DesirabilityMean:   50,
		DesirabilityStdDev: 15,
		LearningRate:       0.1,
		DiscountFactor:     0.95,
		InitialExploration: 1.0,
		ExplorationDecay:   0.995,
		MinExploration:     0.01,
	}
}

func (c Config) Validate() error {
	if c.NumMen <= 0 || c.NumWomen <= 0 {
		return fmt.Errorf("%w: population sizes must be > 0 (men=%d women=%d)", ErrConfig, c.NumMen, c.NumWomen)
	}
	if c.MaxProposals < 0 {
		return fmt.Errorf("%w: max proposals must be >= 0, got %d", ErrConfig, c.MaxProposals)
	}
	if err := ValidateRoses(c.Roses); err != nil {
		return err
	}
	if c.DesirabilityStdDev < 0 || math.IsNaN(c.DesirabilityMean) {
		return fmt.Errorf("%w: desirability distribution N(%v, %v)", ErrConfig, c.DesirabilityMean, c.DesirabilityStdDev)
	}
	rates := []struct {
		name  string
		value float64
	}{
		{"learning rate", c.LearningRate},
		{"discount factor", c.DiscountFactor},
		{"initial exploration", c.InitialExploration},
		{"exploration decay", c.ExplorationDecay},
		{"min exploration", c.MinExploration},
	}
	for _, r := range rates {
		if r.value < 0 || r.value > 1 || math.IsNaN(r.value) {
			return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrConfig, r.name, r.value)
		}
	}
	return nil
}

// ValidateRoses checks that a rose distribution is a proper categorical
// distribution over non-negative budgets.
func ValidateRoses(options []model.RoseOption) error {
	if len(options) == 0 {
		return fmt.Errorf("%w: rose distribution is empty", ErrConfig)
	}
	sum := 0.0
	for _, o := range options {
		if o.Probability < 0 || math.IsNaN(o.Probability) {
			return fmt.Errorf("%w: rose probability must be >= 0, got %v", ErrConfig, o.Probability)
		}
		if o.Roses < 0 {
			return fmt.Errorf("%w: rose count must be >= 0, got %d", ErrConfig, o.Roses)
		}
		sum += o.Probability
	}
	if math.Abs(sum-1) > roseProbabilityTolerance {
		return fmt.Errorf("%w: rose probabilities must sum to 1, got %v", ErrConfig, sum)
	}
	return nil
}
