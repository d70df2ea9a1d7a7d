package models

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// gomlx interop. FeatureSet implements the gomlx train.Dataset surface
// (Name/Yield/Restart) so the reduced feature set can feed gomlx training
// loops directly; Batch/Tensors expose the same data for manual batching.

// Batch returns inputs and single-element labels for the given rows as
// float32 buffers.
func (fs *FeatureSet) Batch(indices []int) ([][]float32, [][]float32, error) {
	inputs := make([][]float32, len(indices))
	labels := make([][]float32, len(indices))
	for bi, idx := range indices {
		if idx < 0 || idx >= fs.Len() {
			return nil, nil, fmt.Errorf("batch index %d out of range", idx)
		}
		in := make([]float32, fs.Dim())
		for j, v := range fs.X[idx] {
			in[j] = float32(v)
		}
		inputs[bi] = in
		labels[bi] = []float32{float32(fs.Y[idx])}
	}
	return inputs, labels, nil
}

// BatchFlat stores a batch in flat contiguous buffers.
type BatchFlat struct {
	Inputs    []float32
	Labels    []float32
	BatchSize int
	InputDim  int
	LabelDim  int
}

// MakeBatchFlat flattens a batch into contiguous buffers.
func MakeBatchFlat(inputs, labels [][]float32) (*BatchFlat, error) {
	if len(inputs) != len(labels) {
		return nil, fmt.Errorf("inputs and labels batch sizes don't match: %d != %d", len(inputs), len(labels))
	}
	if len(inputs) == 0 {
		return &BatchFlat{}, nil
	}

	batchSize := len(inputs)
	inputDim := len(inputs[0])
	labelDim := len(labels[0])

	flatInputs := make([]float32, batchSize*inputDim)
	flatLabels := make([]float32, batchSize*labelDim)
	for i := range batchSize {
		if len(inputs[i]) != inputDim {
			return nil, fmt.Errorf("inconsistent input dimensions at example %d: expected %d, got %d",
				i, inputDim, len(inputs[i]))
		}
		if len(labels[i]) != labelDim {
			return nil, fmt.Errorf("inconsistent label dimensions at example %d: expected %d, got %d",
				i, labelDim, len(labels[i]))
		}
		copy(flatInputs[i*inputDim:], inputs[i])
		copy(flatLabels[i*labelDim:], labels[i])
	}

	return &BatchFlat{
		Inputs:    flatInputs,
		Labels:    flatLabels,
		BatchSize: batchSize,
		InputDim:  inputDim,
		LabelDim:  labelDim,
	}, nil
}

// ToGomlxTensors converts BatchFlat to gomlx tensors.
func (b *BatchFlat) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if b.BatchSize == 0 || b.InputDim == 0 || b.LabelDim == 0 {
		emptyInputs := make([][]float32, 0)
		emptyLabels := make([][]float32, 0)
		return tensors.FromAnyValue(emptyInputs), tensors.FromAnyValue(emptyLabels), nil
	}
	inputs := make([][]float32, b.BatchSize)
	labels := make([][]float32, b.BatchSize)
	for i := range b.BatchSize {
		inputs[i] = b.Inputs[i*b.InputDim : (i+1)*b.InputDim]
		labels[i] = b.Labels[i*b.LabelDim : (i+1)*b.LabelDim]
	}
	return tensors.FromAnyValue(inputs), tensors.FromAnyValue(labels), nil
}

// Tensors reads a batch of rows and returns them as gomlx tensors.
func (fs *FeatureSet) Tensors(indices []int) (inputs *tensors.Tensor, labels *tensors.Tensor, err error) {
	inData, labData, err := fs.Batch(indices)
	if err != nil {
		return nil, nil, err
	}
	batch, err := MakeBatchFlat(inData, labData)
	if err != nil {
		return nil, nil, err
	}
	return batch.ToGomlxTensors()
}

// Name returns the dataset name for gomlx.
func (fs *FeatureSet) Name() string { return "WildfireFeatureSet" }

// Yield returns the next batch for the gomlx Dataset interface. Batches walk
// the partition in row order, sized by the BatchSize field (default 32, the
// last batch may be short); once the rows are exhausted Yield reports io.EOF
// until Restart.
func (fs *FeatureSet) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	indices := fs.nextYieldIndices()
	if len(indices) == 0 {
		return nil, nil, nil, io.EOF
	}
	in, la, err := fs.Tensors(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// nextYieldIndices advances the cursor and returns the row indices of the
// next batch, or nil when the partition is exhausted.
func (fs *FeatureSet) nextYieldIndices() []int {
	if fs.yieldPos >= fs.Len() {
		return nil
	}
	size := fs.BatchSize
	if size <= 0 {
		size = 32
	}
	end := fs.yieldPos + size
	if end > fs.Len() {
		end = fs.Len()
	}
	indices := make([]int, 0, end-fs.yieldPos)
	for i := fs.yieldPos; i < end; i++ {
		indices = append(indices, i)
	}
	fs.yieldPos = end
	return indices
}

// Restart rewinds the Yield cursor for a new epoch.
func (fs *FeatureSet) Restart() error {
	fs.yieldPos = 0
	return nil
}
