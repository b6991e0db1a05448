package main

import (
	"fmt"
	"log"

	ort "github.com/yalue/onnxruntime_go"
)

type onnxBackend struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	layout       tensorLayout
	width        int
	height       int
	normalize    string
}

func newOnnxBackend(cfg modelConfig) (*onnxBackend, error) {
	if cfg.OnnxLib != "" {
		ort.SetSharedLibraryPath(cfg.OnnxLib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.Path)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("model %s has no inputs or outputs", cfg.Path)
	}

	inputShape := fixedShape(inputs[0].Dimensions)
	outputShape := fixedShape(outputs[0].Dimensions)
	if len(inputShape) != 4 {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("expected 4D input, got %v", inputShape)
	}

	b := &onnxBackend{normalize: cfg.Normalize}
	if inputShape[1] == 3 && inputShape[3] != 3 {
		b.layout = layoutNCHW
		b.height, b.width = int(inputShape[2]), int(inputShape[3])
	} else {
		b.layout = layoutNHWC
		b.height, b.width = int(inputShape[1]), int(inputShape[2])
	}
	log.Println("input:", inputs[0].Name, inputShape, b.layout)
	log.Println("output:", outputs[0].Name, outputShape)

	b.inputTensor, err = ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	b.outputTensor, err = ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		b.inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	b.session, err = ort.NewAdvancedSession(cfg.Path,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.ArbitraryTensor{b.inputTensor}, []ort.ArbitraryTensor{b.outputTensor},
		nil)
	if err != nil {
		b.outputTensor.Destroy()
		b.inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return b, nil
}

// fixedShape pins dynamic dimensions (reported as -1) to 1, which is
// the batch size used for every request.
func fixedShape(dims ort.Shape) ort.Shape {
	shape := dims.Clone()
	for i, d := range shape {
		if d < 1 {
			shape[i] = 1
		}
	}
	return shape
}

func (b *onnxBackend) InputSize() (int, int) { return b.width, b.height }

func (b *onnxBackend) OutputSize() int {
	shape := b.outputTensor.GetShape()
	return int(shape[len(shape)-1])
}

func (b *onnxBackend) Run(img *inputImage) ([]float32, error) {
	dst := b.inputTensor.GetData()
	if len(dst) != len(img.Pixels) {
		return nil, fmt.Errorf("input tensor holds %d values, image has %d", len(dst), len(img.Pixels))
	}
	copy(dst, normalize(img, b.normalize, b.layout))

	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return copySlice(b.outputTensor.GetData()), nil
}

func (b *onnxBackend) Close() {
	if b.session != nil {
		b.session.Destroy()
	}
	if b.inputTensor != nil {
		b.inputTensor.Destroy()
	}
	if b.outputTensor != nil {
		b.outputTensor.Destroy()
	}
	ort.DestroyEnvironment()
}
