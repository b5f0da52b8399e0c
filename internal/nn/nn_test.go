package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/autodiff/ops"
	"github.com/born-ml/tracegrad/internal/nn"
	"github.com/born-ml/tracegrad/internal/tensor"
)

func input(t *testing.T, data []float64, shape ...int) autodiff.Tensor {
	t.Helper()
	x, err := autodiff.FromSlice(data, tensor.Shape(shape), false)
	require.NoError(t, err)
	return x
}

func TestXavier(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := nn.Xavier(4, 2, tensor.Shape{4, 2}, rng)
	assert.Equal(t, tensor.Shape{4, 2}, w.Shape())

	bound := math.Sqrt(6.0 / 6.0)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}

	again := nn.Xavier(4, 2, tensor.Shape{4, 2}, rand.New(rand.NewSource(1)))
	assert.True(t, w.Equal(again), "same seed gives the same weights")
}

func TestNormal(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := nn.Normal(tensor.Shape{1000}, 0.5, rng)
	mean := a.Mean()
	variance := a.Sub(tensor.Full(a.Shape(), mean)).Map(func(v float64) float64 { return v * v }).Mean()
	assert.InDelta(t, 0, mean, 0.1)
	assert.InDelta(t, 0.25, variance, 0.05)
}

func TestLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layer := nn.NewLinear(2, 2, true, rng)
	assert.Equal(t, 2, layer.InFeatures())
	assert.Equal(t, 2, layer.OutFeatures())
	require.Len(t, layer.Parameters(), 2)
	assert.Equal(t, "weight", layer.Weight().Name())
	assert.Equal(t, "bias", layer.Bias().Name())
	assert.True(t, layer.Weight().RequiresGrad())
	assert.Equal(t, []float64{0, 0}, layer.Bias().Value().Data())

	require.NoError(t, layer.LoadStateDict(map[string]*tensor.Array{
		"weight": tensor.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}),
		"bias":   tensor.MustFromSlice([]float64{5, 6}, tensor.Shape{2}),
	}))

	s := autodiff.NewSession()
	y := layer.Forward(s, input(t, []float64{2, 3}, 1, 2))
	assert.Equal(t, []float64{16, 22}, y.Value().Data())

	y.Backward(s)
	assert.Equal(t, []float64{2, 2, 3, 3}, layer.Weight().Grad().Data())
	assert.Equal(t, []float64{1, 1}, layer.Bias().Grad().Data())
}

func TestLinear_NoBias(t *testing.T) {
	layer := nn.NewLinear(3, 2, false, rand.New(rand.NewSource(1)))
	assert.Len(t, layer.Parameters(), 1)
	assert.True(t, layer.Bias().IsEmpty())
	assert.NotContains(t, layer.StateDict(), "bias")
}

func TestLinear_BadInput(t *testing.T) {
	layer := nn.NewLinear(3, 2, true, rand.New(rand.NewSource(1)))
	assert.Panics(t, func() { layer.Forward(nil, input(t, []float64{1, 2}, 1, 2)) })
	assert.Panics(t, func() { layer.Forward(nil, input(t, []float64{1, 2, 3}, 3)) })
}

func TestLinear_LoadStateDictErrors(t *testing.T) {
	layer := nn.NewLinear(2, 2, true, rand.New(rand.NewSource(1)))
	err := layer.LoadStateDict(map[string]*tensor.Array{})
	assert.ErrorContains(t, err, "missing weight")

	err = layer.LoadStateDict(map[string]*tensor.Array{
		"weight": tensor.Zeros(tensor.Shape{3, 2}),
	})
	assert.ErrorContains(t, err, "weight shape mismatch")
}

func TestActivations(t *testing.T) {
	x := input(t, []float64{-1, 0, 2}, 3)
	assert.Equal(t, []float64{0, 0, 2}, nn.NewReLU().Forward(nil, x).Value().Data())
	assert.InDelta(t, 0.5, nn.NewSigmoid().Forward(nil, x).Value().At(1), 1e-12)
	assert.InDelta(t, math.Tanh(2), nn.NewTanh().Forward(nil, x).Value().At(2), 1e-12)
	assert.Empty(t, nn.NewReLU().Parameters())
	assert.Empty(t, nn.NewReLU().StateDict())
}

func TestSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	model := nn.NewSequential(
		nn.NewLinear(3, 4, true, rng),
		nn.NewReLU(),
	)
	model.Add(nn.NewLinear(4, 1, true, rng))
	assert.Equal(t, 3, model.Len())
	assert.Len(t, model.Parameters(), 4)
	assert.Panics(t, func() { model.Module(3) })

	state := model.StateDict()
	assert.Len(t, state, 4)
	assert.Contains(t, state, "0.weight")
	assert.Contains(t, state, "2.bias")

	x := input(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	before := model.Forward(nil, x).Value().Clone()

	// Perturb, then restore from the snapshot.
	model.Parameters()[0].Value().Fill(0)
	require.NoError(t, model.LoadStateDict(state))
	assert.True(t, before.Equal(model.Forward(nil, x).Value()))

	err := model.LoadStateDict(map[string]*tensor.Array{})
	assert.ErrorContains(t, err, "failed to load module 0")
}

func TestSequential_Backward(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	model := nn.NewSequential(nn.NewLinear(2, 3, true, rng), nn.NewTanh(), nn.NewLinear(3, 1, true, rng))
	x := input(t, []float64{0.5, -1, 1, 2}, 2, 2)
	target := input(t, []float64{1, 0}, 2, 1)

	s := autodiff.NewSession()
	loss := nn.NewMSELoss().Forward(s, model.Forward(s, x), target)
	loss.Backward(s)

	for _, p := range model.Parameters() {
		assert.Greater(t, p.Grad().Map(math.Abs).Sum(), 0.0, "%s has a gradient", p.Name())
	}
	assert.Equal(t, 4, s.NumNodes())
}

func TestBatchNorm1D(t *testing.T) {
	bn := nn.NewBatchNorm1D(2, true, ops.BatchNormConfig{})
	assert.True(t, bn.Training())
	assert.Len(t, bn.Parameters(), 2)

	x := input(t, []float64{1, 2, 3, 6}, 2, 2)
	y := bn.Forward(autodiff.NewSession(), x)
	assert.InDeltaSlice(t, []float64{-1, -1, 1, 1}, y.Value().Data(), 1e-5)
	assert.InDeltaSlice(t, []float64{0.2, 0.4}, bn.RunningMean().Value().Data(), 1e-12)

	bn.Eval()
	assert.False(t, bn.Training())
	y = bn.Forward(nil, x)
	std0 := math.Sqrt(bn.RunningVar().Value().At(0) + 1e-5)
	assert.InDelta(t, (1-0.2)/std0, y.Value().At(0, 0), 1e-12)
	assert.InDeltaSlice(t, []float64{0.2, 0.4}, bn.RunningMean().Value().Data(), 1e-12)

	state := bn.StateDict()
	assert.Len(t, state, 4)
	other := nn.NewBatchNorm1D(2, true, ops.BatchNormConfig{})
	require.NoError(t, other.LoadStateDict(state))
	assert.True(t, other.RunningVar().Value().Equal(bn.RunningVar().Value()))

	bn.Train()
	assert.True(t, bn.Training())
}

func TestBatchNorm1D_NotAffine(t *testing.T) {
	bn := nn.NewBatchNorm1D(3, false, ops.BatchNormConfig{})
	assert.Empty(t, bn.Parameters())
	assert.Len(t, bn.StateDict(), 2)
}

func TestCrossEntropyLossAndAccuracy(t *testing.T) {
	logits, err := autodiff.FromSlice([]float64{2, 1, 0, 0, 3, 1, 1, 0, 0}, tensor.Shape{3, 3}, true)
	require.NoError(t, err)
	targets := input(t, []float64{0, 1, 2}, 3)

	s := autodiff.NewSession()
	loss := nn.NewCrossEntropyLoss().Forward(s, logits, targets)
	assert.Greater(t, loss.Value().Item(), 0.0)
	loss.Backward(s)
	assert.InDelta(t, 0, logits.Grad().Sum(), 1e-12, "softmax gradients sum to zero")

	assert.InDelta(t, 2.0/3.0, nn.Accuracy(logits, targets), 1e-12)
}

func TestMSELoss_ShapeMismatch(t *testing.T) {
	assert.Panics(t, func() {
		nn.NewMSELoss().Forward(nil, input(t, []float64{1, 2}, 2), input(t, []float64{1, 2}, 1, 2))
	})
}

func TestAccuracy_SoftLabels(t *testing.T) {
	logits := input(t, []float64{2, 1, 0, 0, 3, 1, 1, 0, 0}, 3, 3)
	soft := input(t, []float64{
		0.8, 0.1, 0.1,
		0.2, 0.7, 0.1,
		0, 0.4, 0.6,
	}, 3, 3)
	assert.InDelta(t, 2.0/3.0, nn.Accuracy(logits, soft), 1e-12)
	assert.InDelta(t, nn.Accuracy(logits, input(t, []float64{0, 1, 2}, 3)), nn.Accuracy(logits, soft), 1e-12)

	assert.Panics(t, func() { nn.Accuracy(logits, input(t, []float64{0, 1, 2, 0, 1, 2}, 3, 2)) })
	assert.Panics(t, func() { nn.Accuracy(logits, input(t, []float64{0, 1}, 2)) })
	assert.Panics(t, func() { nn.Accuracy(input(t, []float64{1, 2, 3}, 3), input(t, []float64{0, 1, 2}, 3)) })
}

func TestHeNormal(t *testing.T) {
	w := nn.HeNormal(50, tensor.Shape{40, 2, 5, 5}, rand.New(rand.NewSource(5)))
	assert.Equal(t, tensor.Shape{40, 2, 5, 5}, w.Shape())

	mean := w.Mean()
	variance := w.Sub(tensor.Full(w.Shape(), mean)).Map(func(v float64) float64 { return v * v }).Mean()
	assert.InDelta(t, 0, mean, 0.02)
	assert.InDelta(t, 2.0/50.0, variance, 0.005)
}

func TestConv2D(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	conv := nn.NewConv2D(1, 2, 3, 3, 1, 1, true, rng)
	require.Len(t, conv.Parameters(), 2)
	assert.Equal(t, tensor.Shape{2, 1, 3, 3}, conv.Weight().Value().Shape())
	assert.Equal(t, []float64{0, 0}, conv.Bias().Value().Data())
	assert.Equal(t, [2]int{4, 4}, conv.OutputSize(4, 4))

	x := input(t, make([]float64, 2*16), 2, 1, 4, 4)
	y := conv.Forward(nil, x)
	assert.Equal(t, tensor.Shape{2, 2, 4, 4}, y.Shape())

	state := conv.StateDict()
	assert.Len(t, state, 2)
	other := nn.NewConv2D(1, 2, 3, 3, 1, 1, true, rand.New(rand.NewSource(2)))
	require.NoError(t, other.LoadStateDict(state))
	assert.True(t, other.Weight().Value().Equal(conv.Weight().Value()))

	noBias := nn.NewConv2D(1, 2, 3, 3, 1, 1, false, rng)
	assert.Len(t, noBias.Parameters(), 1)
	assert.True(t, noBias.Bias().IsEmpty())
	assert.Len(t, noBias.StateDict(), 1)
}

func TestConv2D_BadArguments(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Panics(t, func() { nn.NewConv2D(0, 2, 3, 3, 1, 0, true, rng) })
	assert.Panics(t, func() { nn.NewConv2D(1, 2, 0, 3, 1, 0, true, rng) })
	assert.Panics(t, func() { nn.NewConv2D(1, 2, 3, 3, 0, 0, true, rng) })
	assert.Panics(t, func() { nn.NewConv2D(1, 2, 3, 3, 1, -1, true, rng) })

	conv := nn.NewConv2D(2, 2, 3, 3, 1, 0, true, rng)
	assert.Panics(t, func() { conv.Forward(nil, input(t, make([]float64, 9), 3, 3)) })
	assert.Panics(t, func() { conv.Forward(nil, input(t, make([]float64, 9), 1, 1, 3, 3)) })
}

func TestBatchNorm2D(t *testing.T) {
	bn := nn.NewBatchNorm2D(2, true, ops.BatchNormConfig{})
	assert.Len(t, bn.Parameters(), 2)

	// channel 0 holds 1..4 and channel 1 holds 10, 10, 20, 20
	x := input(t, []float64{1, 2, 3, 4, 10, 10, 20, 20}, 1, 2, 2, 2)
	y := bn.Forward(autodiff.NewSession(), x)
	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, y.Shape())
	assert.InDeltaSlice(t, []float64{0.25, 1.5}, bn.RunningMean().Value().Data(), 1e-12)

	row := y.Value().Data()
	assert.InDelta(t, 0, row[0]+row[1]+row[2]+row[3], 1e-9)
	assert.InDelta(t, -1, row[4], 1e-4)
	assert.InDelta(t, 1, row[7], 1e-4)

	bn.Eval()
	assert.False(t, bn.Training())
	assert.Panics(t, func() { bn.Forward(nil, input(t, []float64{1, 2}, 1, 2)) })
}

func TestPoolingAndFlatten(t *testing.T) {
	x := input(t, []float64{
		1, 2, 5, 0,
		3, 4, 1, 8,
	}, 1, 1, 2, 4)
	y := nn.NewMaxPool2D(2, 2).Forward(nil, x)
	assert.Equal(t, tensor.Shape{1, 1, 1, 2}, y.Shape())
	assert.Equal(t, []float64{4, 8}, y.Value().Data())

	flat := nn.NewFlatten().Forward(nil, x)
	assert.Equal(t, tensor.Shape{1, 8}, flat.Shape())
	assert.Empty(t, nn.NewFlatten().Parameters())
	assert.Empty(t, nn.NewMaxPool2D(2, 2).StateDict())
}

func TestConvNet_Backward(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	model := nn.NewSequential(
		nn.NewConv2D(1, 3, 3, 3, 1, 1, false, rng),
		nn.NewBatchNorm2D(3, true, ops.DefaultBatchNormConfig()),
		nn.NewReLU(),
		nn.NewMaxPool2D(2, 2),
		nn.NewFlatten(),
		nn.NewLinear(3*2*2, 2, true, rng),
	)
	require.Len(t, model.Parameters(), 5)

	data := make([]float64, 4*16)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	x := input(t, data, 4, 1, 4, 4)
	targets := input(t, []float64{0, 1, 1, 0}, 4)

	s := autodiff.NewSession()
	logits := model.Forward(s, x)
	assert.Equal(t, tensor.Shape{4, 2}, logits.Shape())
	loss := nn.NewCrossEntropyLoss().Forward(s, logits, targets)
	loss.Backward(s)

	for _, p := range model.Parameters() {
		require.NotNil(t, p.Grad(), "%s has a gradient", p.Name())
		assert.Greater(t, p.Grad().Map(math.Abs).Sum(), 0.0, "%s has a gradient", p.Name())
	}
	assert.Equal(t, 7, s.NumNodes())
}
