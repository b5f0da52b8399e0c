package main

import (
	"math/rand"

	"github.com/born-ml/tracegrad/internal/autodiff"
)

// traceGraph records the forward pass of one training batch for cfg and
// renders the session before backward runs.
func traceGraph(cfg trainConfig) (string, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	model, loss := newModel(cfg, rng)
	x, y := sampleBatch(cfg.Task, cfg.Batch, rng)

	s := autodiff.NewSession()
	loss(s, model.Forward(s, x), y)
	return s.Dot()
}
