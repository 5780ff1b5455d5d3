package main

import (
	"fmt"

	"github.com/samuelfneumann/despot/bound"
	"github.com/samuelfneumann/despot/model"
	"github.com/samuelfneumann/despot/problem/lightdark"
	"github.com/samuelfneumann/despot/problem/rocksample"
	"github.com/samuelfneumann/despot/problem/tiger"
)

// buildProblem resolves a Problem Model and its bound registry by
// name for the CLI's --problem flag. The noise parameter is
// model-dependent: for Tiger it replaces the listen accuracy with
// 1-noise, for RockSample it shortens the sensor's half-efficiency
// distance, for light-dark it scales the sensor's noise level. Zero
// leaves each problem at its classic parameterization.
func buildProblem(name string, discount float64, maxSimLen int, noise float64) (model.Problem, *bound.Registry, error) {
	switch name {
	case "tiger":
		p := tiger.New()
		if noise > 0 {
			p = tiger.NewWithAccuracy(1 - noise)
		}
		return p, tiger.NewBoundRegistry(discount, maxSimLen), nil
	case "rocksample":
		p := rocksample.New()
		p.Discount = discount
		if noise > 0 {
			p.SensorEfficiency = p.SensorEfficiency * (1 - noise)
		}
		return p, p.NewBoundRegistry(maxSimLen), nil
	case "lightdark":
		p := lightdark.New()
		if noise > 0 {
			p.NoiseScale = noise
		}
		registry, err := p.NewBoundRegistry(discount, maxSimLen)
		if err != nil {
			return nil, nil, err
		}
		return p, registry, nil
	default:
		return nil, nil, fmt.Errorf("despot: unknown problem %q (want \"tiger\", \"rocksample\", or \"lightdark\")", name)
	}
}
