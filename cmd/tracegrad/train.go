package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/nn"
	"github.com/born-ml/tracegrad/internal/optim"
	"github.com/born-ml/tracegrad/internal/tensor"
)

const (
	taskRegression = "regression"
	taskClassify   = "classify"

	optimizerSGD  = "sgd"
	optimizerAdam = "adam"

	numInputs  = 2
	numClasses = 3
	evalSize   = 256
)

type trainConfig struct {
	Task      string
	Optimizer string
	Steps     int
	LR        float64
	Momentum  float64
	Hidden    int
	Batch     int
	Seed      int64
	LogEvery  int
	Verbose   bool
}

func (c trainConfig) validate() error {
	var errs []error
	if c.Task != taskRegression && c.Task != taskClassify {
		errs = append(errs, fmt.Errorf("unknown task %q", c.Task))
	}
	if c.Optimizer != optimizerSGD && c.Optimizer != optimizerAdam {
		errs = append(errs, fmt.Errorf("unknown optimizer %q", c.Optimizer))
	}
	if c.Steps <= 0 {
		errs = append(errs, fmt.Errorf("steps must be positive, got %d", c.Steps))
	}
	if c.Hidden <= 0 {
		errs = append(errs, fmt.Errorf("hidden must be positive, got %d", c.Hidden))
	}
	if c.Batch <= 0 {
		errs = append(errs, fmt.Errorf("batch must be positive, got %d", c.Batch))
	}
	if c.LogEvery <= 0 {
		errs = append(errs, fmt.Errorf("log-every must be positive, got %d", c.LogEvery))
	}
	return errors.Join(errs...)
}

func parseTrainFlags(name string, args []string, output io.Writer) (trainConfig, error) {
	var cfg trainConfig
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Task, "task", taskRegression, "synthetic task: regression or classify")
	fs.StringVar(&cfg.Optimizer, "optimizer", optimizerSGD, "optimizer: sgd or adam")
	fs.IntVar(&cfg.Steps, "steps", 500, "number of optimizer steps")
	fs.Float64Var(&cfg.LR, "lr", 0.05, "learning rate")
	fs.Float64Var(&cfg.Momentum, "momentum", 0.9, "SGD momentum (ignored by adam)")
	fs.IntVar(&cfg.Hidden, "hidden", 16, "hidden layer width")
	fs.IntVar(&cfg.Batch, "batch", 32, "batch size")
	fs.Int64Var(&cfg.Seed, "seed", 1, "random seed")
	fs.IntVar(&cfg.LogEvery, "log-every", 50, "log the loss every N steps")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose (debug) logging")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cfg, cfg.validate()
}

type trainResult struct {
	InitialLoss float64
	FinalLoss   float64
	Accuracy    float64 // classification only
}

// criterion scores a batch and returns the scalar loss.
type criterion func(s *autodiff.Session, pred, target autodiff.Tensor) autodiff.Tensor

func train(cfg trainConfig, logger *slog.Logger) (trainResult, error) {
	if err := cfg.validate(); err != nil {
		return trainResult{}, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	model, loss := newModel(cfg, rng)
	opt, err := newOptimizer(cfg, model.Parameters())
	if err != nil {
		return trainResult{}, fmt.Errorf("failed to create optimizer: %w", err)
	}

	evalX, evalY := sampleBatch(cfg.Task, evalSize, rng)
	var res trainResult
	res.InitialLoss = loss(nil, model.Forward(nil, evalX), evalY).Value().Item()
	logger.Info("training started",
		"task", cfg.Task, "optimizer", cfg.Optimizer, "steps", cfg.Steps, "hidden", cfg.Hidden,
		"batch", cfg.Batch, "params", len(model.Parameters()), "eval_loss", res.InitialLoss)

	for step := 1; step <= cfg.Steps; step++ {
		x, y := sampleBatch(cfg.Task, cfg.Batch, rng)

		s := autodiff.NewSession()
		l := loss(s, model.Forward(s, x), y)
		l.Backward(s)
		logger.Debug("backward done", "step", step, "nodes", s.NumNodes(), "staged", s.NumStaged())

		opt.Step(s)
		opt.ZeroGrad()

		if v := l.Value().Item(); math.IsNaN(v) || math.IsInf(v, 0) {
			return res, fmt.Errorf("loss diverged at step %d: %v", step, v)
		}
		if step%cfg.LogEvery == 0 || step == cfg.Steps {
			logger.Info("step", "step", step, "loss", l.Value().Item(), "lr", opt.GetLR())
		}
	}

	pred := model.Forward(nil, evalX)
	res.FinalLoss = loss(nil, pred, evalY).Value().Item()
	if cfg.Task == taskClassify {
		res.Accuracy = nn.Accuracy(pred, evalY)
	}
	logger.Info("training finished", "eval_loss", res.FinalLoss, "accuracy", res.Accuracy)
	return res, nil
}

// newModel builds the MLP for cfg.Task and the loss it is trained with.
func newModel(cfg trainConfig, rng *rand.Rand) (*nn.Sequential, criterion) {
	outputs := 1
	var loss criterion = nn.NewMSELoss().Forward
	if cfg.Task == taskClassify {
		outputs = numClasses
		loss = nn.NewCrossEntropyLoss().Forward
	}
	model := nn.NewSequential(
		nn.NewLinear(numInputs, cfg.Hidden, true, rng),
		nn.NewTanh(),
		nn.NewLinear(cfg.Hidden, outputs, true, rng),
	)
	return model, loss
}

func newOptimizer(cfg trainConfig, params []autodiff.Tensor) (optim.Optimizer, error) {
	if cfg.Optimizer == optimizerAdam {
		if cfg.LR <= 0 {
			return nil, fmt.Errorf("adam: learning rate must be positive, got %v", cfg.LR)
		}
		return optim.NewAdam(params, optim.AdamConfig{LR: cfg.LR}), nil
	}
	sgd, err := optim.NewSGD(params, optim.SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum})
	if err != nil {
		return nil, err
	}
	return sgd, nil
}

// sampleBatch draws n points from U(-1, 1)^2 with targets for task:
// regression fits 0.5*sin(pi*x0) + x1^2; classify labels three bands of x0.
func sampleBatch(task string, n int, rng *rand.Rand) (x, y autodiff.Tensor) {
	xs := tensor.Uniform(tensor.Shape{n, numInputs}, -1, 1, rng)
	targets := make([]float64, n)
	var shape tensor.Shape
	for i := 0; i < n; i++ {
		x0, x1 := xs.At(i, 0), xs.At(i, 1)
		switch task {
		case taskClassify:
			switch {
			case x0 < -1.0/3:
				targets[i] = 0
			case x0 < 1.0/3:
				targets[i] = 1
			default:
				targets[i] = 2
			}
			shape = tensor.Shape{n}
		default:
			targets[i] = 0.5*math.Sin(math.Pi*x0) + x1*x1
			shape = tensor.Shape{n, 1}
		}
	}
	return autodiff.FromArray(xs, false), autodiff.FromArray(tensor.MustFromSlice(targets, shape), false)
}
