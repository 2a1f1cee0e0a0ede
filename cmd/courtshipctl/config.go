package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"courtship/internal/market"
	"courtship/internal/model"
	"courtship/pkg/courtship"
)

// runFileConfig is the on-disk run description. Pointer fields distinguish an
// explicit zero from an omitted key. JSON files parse as YAML.
type runFileConfig struct {
	RunID      string           `yaml:"run_id"`
	Seed       *uint64          `yaml:"seed"`
	Episodes   *int             `yaml:"episodes"`
	TrackFrom  *int             `yaml:"track_from"`
	Replicates *int             `yaml:"replicates"`
	Workers    *int             `yaml:"workers"`
	Market     marketFileConfig `yaml:"market"`
}

type marketFileConfig struct {
	NumMen             *int               `yaml:"num_men"`
	NumWomen           *int               `yaml:"num_women"`
	MaxProposals       *int               `yaml:"max_proposals"`
	Roses              []model.RoseOption `yaml:"roses"`
	DesirabilityMean   *float64           `yaml:"desirability_mean"`
	DesirabilityStdDev *float64           `yaml:"desirability_stddev"`
	LearningRate       *float64           `yaml:"learning_rate"`
	DiscountFactor     *float64           `yaml:"discount_factor"`
	InitialExploration *float64           `yaml:"initial_exploration"`
	ExplorationDecay   *float64           `yaml:"exploration_decay"`
	MinExploration     *float64           `yaml:"min_exploration"`
}

const (
	defaultSeed       = 1
	defaultEpisodes   = 1000
	defaultReplicates = 1
	defaultWorkers    = 4
)

func defaultRunRequest() courtship.RunRequest {
	cfg := market.DefaultConfig()
	return courtship.RunRequest{
		Seed:       defaultSeed,
		Episodes:   defaultEpisodes,
		Replicates: defaultReplicates,
		Workers:    defaultWorkers,
		Market:     &cfg,
	}
}

// loadOrDefaultRunRequest overlays the config file at path, if any, on the defaults.
func loadOrDefaultRunRequest(path string) (courtship.RunRequest, error) {
	req := defaultRunRequest()
	if path == "" {
		return req, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return courtship.RunRequest{}, err
	}
	fileCfg, err := parseRunFileConfig(data)
	if err != nil {
		return courtship.RunRequest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	fileCfg.apply(&req)
	return req, nil
}

func parseRunFileConfig(data []byte) (runFileConfig, error) {
	var cfg runFileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return runFileConfig{}, err
	}
	return cfg, nil
}

func (c runFileConfig) apply(req *courtship.RunRequest) {
	if c.RunID != "" {
		req.RunID = c.RunID
	}
	setIf(&req.Seed, c.Seed)
	setIf(&req.Episodes, c.Episodes)
	setIf(&req.TrackFrom, c.TrackFrom)
	setIf(&req.Replicates, c.Replicates)
	setIf(&req.Workers, c.Workers)

	m := req.Market
	setIf(&m.NumMen, c.Market.NumMen)
	setIf(&m.NumWomen, c.Market.NumWomen)
	setIf(&m.MaxProposals, c.Market.MaxProposals)
	if len(c.Market.Roses) > 0 {
		m.Roses = append([]model.RoseOption(nil), c.Market.Roses...)
	}
	setIf(&m.DesirabilityMean, c.Market.DesirabilityMean)
	setIf(&m.DesirabilityStdDev, c.Market.DesirabilityStdDev)
	setIf(&m.LearningRate, c.Market.LearningRate)
	setIf(&m.DiscountFactor, c.Market.DiscountFactor)
	setIf(&m.InitialExploration, c.Market.InitialExploration)
	setIf(&m.ExplorationDecay, c.Market.ExplorationDecay)
	setIf(&m.MinExploration, c.Market.MinExploration)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// parseRoses reads a rose distribution written as "prob:count,prob:count",
// e.g. "0.8:2,0.2:6".
func parseRoses(s string) ([]model.RoseOption, error) {
	var out []model.RoseOption
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		probText, countText, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: rose option %q must be prob:count", market.ErrConfig, part)
		}
		prob, err := strconv.ParseFloat(strings.TrimSpace(probText), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: rose probability %q: %v", market.ErrConfig, probText, err)
		}
		count, err := strconv.Atoi(strings.TrimSpace(countText))
		if err != nil {
			return nil, fmt.Errorf("%w: rose count %q: %v", market.ErrConfig, countText, err)
		}
		out = append(out, model.RoseOption{Probability: prob, Roses: count})
	}
	if err := market.ValidateRoses(out); err != nil {
		return nil, err
	}
	return out, nil
}
