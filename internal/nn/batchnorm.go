package nn

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/autodiff/ops"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// batchNorm holds what BatchNorm1D and BatchNorm2D share: affine parameters,
// running statistics and the training flag.
//
// In training mode the layer uses the batch statistics and updates its
// running mean and variance; in evaluation mode it uses the running
// statistics. A new layer starts in training mode.
type batchNorm struct {
	features    int
	cfg         ops.BatchNormConfig
	gamma, beta autodiff.Tensor // empty unless affine
	runningMean autodiff.Tensor
	runningVar  autodiff.Tensor
}

func newBatchNorm(features int, affine bool, cfg ops.BatchNormConfig) batchNorm {
	cfg.Training = true
	bn := batchNorm{
		features:    features,
		cfg:         cfg,
		runningMean: autodiff.FromArray(tensor.Zeros(tensor.Shape{features}), false),
		runningVar:  autodiff.FromArray(tensor.Ones(tensor.Shape{features}), false),
	}
	if affine {
		bn.gamma = newParameter("weight", tensor.Ones(tensor.Shape{features}))
		bn.beta = newParameter("bias", tensor.Zeros(tensor.Shape{features}))
	}
	return bn
}

// BatchNorm1D normalises [batch, features] inputs per feature.
type BatchNorm1D struct {
	batchNorm
}

// NewBatchNorm1D creates a batch normalisation layer. eps and momentum come
// from cfg (zero values select the defaults); cfg.Training is ignored.
func NewBatchNorm1D(features int, affine bool, cfg ops.BatchNormConfig) *BatchNorm1D {
	return &BatchNorm1D{newBatchNorm(features, affine, cfg)}
}

// Forward normalises input.
func (bn *BatchNorm1D) Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor {
	return ops.BatchNorm1D(s, input, bn.gamma, bn.beta, bn.runningMean, bn.runningVar, bn.cfg)
}

// BatchNorm2D normalises [batch, channels, height, width] inputs per channel.
type BatchNorm2D struct {
	batchNorm
}

// NewBatchNorm2D creates a batch normalisation layer for channels feature
// maps. cfg is handled as in NewBatchNorm1D.
func NewBatchNorm2D(channels int, affine bool, cfg ops.BatchNormConfig) *BatchNorm2D {
	return &BatchNorm2D{newBatchNorm(channels, affine, cfg)}
}

// Forward normalises input.
func (bn *BatchNorm2D) Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor {
	return ops.BatchNorm2D(s, input, bn.gamma, bn.beta, bn.runningMean, bn.runningVar, bn.cfg)
}

// Train switches to training mode.
func (bn *batchNorm) Train() { bn.cfg.Training = true }

// Eval switches to evaluation mode.
func (bn *batchNorm) Eval() { bn.cfg.Training = false }

// Training reports whether the layer is in training mode.
func (bn *batchNorm) Training() bool { return bn.cfg.Training }

// Parameters returns [weight, bias] when affine, nil otherwise.
func (bn *batchNorm) Parameters() []autodiff.Tensor {
	if bn.gamma.IsEmpty() {
		return nil
	}
	return []autodiff.Tensor{bn.gamma, bn.beta}
}

// RunningMean returns the running mean buffer.
func (bn *batchNorm) RunningMean() autodiff.Tensor { return bn.runningMean }

// RunningVar returns the running variance buffer.
func (bn *batchNorm) RunningVar() autodiff.Tensor { return bn.runningVar }

// StateDict returns copies of the affine parameters and running statistics.
func (bn *batchNorm) StateDict() map[string]*tensor.Array {
	state := map[string]*tensor.Array{
		"running_mean": bn.runningMean.Value().Clone(),
		"running_var":  bn.runningVar.Value().Clone(),
	}
	if !bn.gamma.IsEmpty() {
		state["weight"] = bn.gamma.Value().Clone()
		state["bias"] = bn.beta.Value().Clone()
	}
	return state
}

// LoadStateDict loads the affine parameters and running statistics.
func (bn *batchNorm) LoadStateDict(state map[string]*tensor.Array) error {
	if err := loadInto(state, "running_mean", bn.runningMean); err != nil {
		return err
	}
	if err := loadInto(state, "running_var", bn.runningVar); err != nil {
		return err
	}
	if bn.gamma.IsEmpty() {
		return nil
	}
	if err := loadInto(state, "weight", bn.gamma); err != nil {
		return err
	}
	return loadInto(state, "bias", bn.beta)
}
