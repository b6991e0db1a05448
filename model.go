package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates/edgetpu"
)

// Backend runs a single image through a loaded model and returns the
// raw output vector. Implementations are not safe for concurrent use.
type Backend interface {
	InputSize() (width, height int)
	OutputSize() int
	Run(img *inputImage) ([]float32, error)
	Close()
}

type modelConfig struct {
	Path      string
	Threads   int
	EdgeTPU   bool
	OnnxLib   string
	Normalize string
}

func newBackend(cfg modelConfig) (Backend, error) {
	if err := checkNormalization(cfg.Normalize); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".tflite":
		b, err := newTfliteBackend(cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	case ".onnx":
		b, err := newOnnxBackend(cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported model format %q", cfg.Path)
}

type tfliteBackend struct {
	model     *tflite.Model
	interp    *tflite.Interpreter
	normalize string
}

func newTfliteBackend(cfg modelConfig) (*tfliteBackend, error) {
	model := tflite.NewModelFromFile(cfg.Path)
	if model == nil {
		return nil, fmt.Errorf("cannot load model %s", cfg.Path)
	}

	options := tflite.NewInterpreterOptions()
	defer options.Delete()

	options.SetNumThread(cfg.Threads)

	if cfg.EdgeTPU {
		devices, err := edgetpu.DeviceList()
		if err != nil {
			log.Printf("Could not get EdgeTPU devices: %v", err)
		}
		if len(devices) == 0 {
			log.Println("No edge TPU devices found")
		} else {
			options.AddDelegate(edgetpu.New(devices[0]))
		}
	}

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter")
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("allocate failed: %v", status)
	}

	input := interpreter.GetInputTensor(0)
	if input.NumDims() != 4 {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("expected 4D input tensor, got %v", getTensorShape(input))
	}
	log.Println("input:", input.Name(), getTensorShape(input), input.Type())
	output := interpreter.GetOutputTensor(0)
	log.Println("output:", output.Name(), getTensorShape(output), output.Type(), output.QuantizationParams())

	return &tfliteBackend{model: model, interp: interpreter, normalize: cfg.Normalize}, nil
}

func getTensorShape(tensor *tflite.Tensor) []int {
	shape := []int{}
	for idx := 0; idx < tensor.NumDims(); idx++ {
		shape = append(shape, tensor.Dim(idx))
	}
	return shape
}

func (b *tfliteBackend) InputSize() (int, int) {
	input := b.interp.GetInputTensor(0)
	return input.Dim(2), input.Dim(1)
}

func (b *tfliteBackend) OutputSize() int {
	output := b.interp.GetOutputTensor(0)
	return output.Dim(output.NumDims() - 1)
}

func (b *tfliteBackend) Run(img *inputImage) ([]float32, error) {
	if err := fillInput(b.interp.GetInputTensor(0), img, b.normalize); err != nil {
		return nil, err
	}

	if status := b.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("invoke failed: %v", status)
	}

	return extractOutput(b.interp.GetOutputTensor(0))
}

func (b *tfliteBackend) Close() {
	b.interp.Delete()
	b.model.Delete()
}

func fillInput(input *tflite.Tensor, img *inputImage, mode string) error {
	switch input.Type() {
	case tflite.UInt8:
		dst := input.UInt8s()
		if len(dst) != len(img.Pixels) {
			return fmt.Errorf("input tensor holds %d values, image has %d", len(dst), len(img.Pixels))
		}
		copy(dst, img.Pixels)
	case tflite.Float32:
		dst := input.Float32s()
		if len(dst) != len(img.Pixels) {
			return fmt.Errorf("input tensor holds %d values, image has %d", len(dst), len(img.Pixels))
		}
		copy(dst, normalize(img, mode, layoutNHWC))
	default:
		return fmt.Errorf("unsupported input tensor type %v", input.Type())
	}
	return nil
}

func extractOutput(output *tflite.Tensor) ([]float32, error) {
	var loc []float32
	switch output.Type() {
	case tflite.UInt8:
		q := output.QuantizationParams()
		f := output.UInt8s()
		loc = make([]float32, len(f))
		for i, v := range f {
			if q.Scale > 0 {
				loc[i] = float32(q.Scale * float64(int(v)-q.ZeroPoint))
			} else {
				loc[i] = float32(v) / 255
			}
		}
	case tflite.Float32:
		loc = copySlice(output.Float32s())
	default:
		return nil, fmt.Errorf("unsupported output tensor type %v", output.Type())
	}
	if len(loc) == 0 {
		return nil, fmt.Errorf("empty output tensor")
	}
	return loc, nil
}
