package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend records calls made after Close, which would be a use of
// freed interpreter memory with a real backend.
type fakeBackend struct {
	mu          sync.Mutex
	out         []float32
	err         error
	block       chan struct{}
	runs        int
	sizeCalls   int
	closed      bool
	afterClosed int
}

func (b *fakeBackend) touch() {
	if b.closed {
		b.afterClosed++
	}
}

func (b *fakeBackend) InputSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.touch()
	b.sizeCalls++
	return 4, 4
}

func (b *fakeBackend) OutputSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.touch()
	return len(b.out)
}

func (b *fakeBackend) Run(img *inputImage) ([]float32, error) {
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.touch()
	b.runs++
	return b.out, b.err
}

func (b *fakeBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

type fakePreprocessor struct {
	err error
}

func (p fakePreprocessor) Prepare(data []byte, width, height int) (*inputImage, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &inputImage{Width: width, Height: height, Pixels: make([]uint8, width*height*3)}, nil
}

var testLabels = []string{"cardboard", "glass", "metal", "paper", "plastic"}

func TestClassifierClassify(t *testing.T) {
	backend := &fakeBackend{out: []float32{0.05, 0.1, 0.6, 0.05, 0.2}}
	c := NewClassifier(backend, fakePreprocessor{}, AutoPostProcessing{}, testLabels, 3)
	defer c.Close()

	pred, err := c.Classify(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if pred.Class != "metal" || !almostEqual(pred.Confidence, 0.6) {
		t.Errorf("Classify() = %s %v, want metal 0.6", pred.Class, pred.Confidence)
	}
	if len(pred.Top) != 3 || pred.Top[1].Class != "plastic" || pred.Top[2].Class != "glass" {
		t.Errorf("Classify().Top = %v", pred.Top)
	}
}

func TestClassifierConcurrent(t *testing.T) {
	backend := &fakeBackend{out: []float32{0.1, 0.9, 0, 0, 0}}
	c := NewClassifier(backend, fakePreprocessor{}, ProbabilityPostProcessing{}, testLabels, 1)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Classify(context.Background(), []byte("img")); err != nil {
				t.Errorf("Classify() error = %v", err)
			}
		}()
	}
	wg.Wait()

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.runs != 16 {
		t.Errorf("backend ran %d times, want 16", backend.runs)
	}
	if backend.sizeCalls != 1 {
		t.Errorf("InputSize() called %d times, want once at construction", backend.sizeCalls)
	}
}

func TestClassifierErrors(t *testing.T) {
	decodeErr := &decodeError{errors.New("cannot identify image")}
	c := NewClassifier(&fakeBackend{out: []float32{1}}, fakePreprocessor{err: decodeErr}, ProbabilityPostProcessing{}, testLabels, 3)
	if _, err := c.Classify(context.Background(), nil); !errors.Is(err, decodeErr) {
		t.Errorf("Classify() error = %v, want %v", err, decodeErr)
	}
	c.Close()

	runErr := errors.New("invoke failed")
	c = NewClassifier(&fakeBackend{err: runErr}, fakePreprocessor{}, ProbabilityPostProcessing{}, testLabels, 3)
	if _, err := c.Classify(context.Background(), nil); !errors.Is(err, runErr) {
		t.Errorf("Classify() error = %v, want %v", err, runErr)
	}
	c.Close()
}

func TestClassifierContextCancel(t *testing.T) {
	backend := &fakeBackend{out: []float32{1, 0, 0, 0, 0}, block: make(chan struct{})}
	c := NewClassifier(backend, fakePreprocessor{}, ProbabilityPostProcessing{}, testLabels, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Classify(ctx, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Classify() error = %v, want deadline exceeded", err)
	}

	close(backend.block)
	c.Close()
}

func TestClassifierClose(t *testing.T) {
	backend := &fakeBackend{out: []float32{1, 0, 0, 0, 0}}
	c := NewClassifier(backend, fakePreprocessor{}, ProbabilityPostProcessing{}, testLabels, 3)
	c.Close()
	c.Close()

	if !backend.closed {
		t.Error("Close() did not close the backend")
	}
	for i := 0; i < 8; i++ {
		if _, err := c.Classify(context.Background(), nil); !errors.Is(err, errClassifierClosed) {
			t.Errorf("Classify() after Close error = %v, want %v", err, errClassifierClosed)
		}
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.afterClosed != 0 {
		t.Errorf("backend used %d times after Close", backend.afterClosed)
	}
}

func TestClassifierCloseSkipsPreprocessing(t *testing.T) {
	pre := &countingPreprocessor{}
	c := NewClassifier(&fakeBackend{out: []float32{1}}, pre, ProbabilityPostProcessing{}, testLabels[:1], 1)
	c.Close()

	if _, err := c.Classify(context.Background(), []byte("img")); !errors.Is(err, errClassifierClosed) {
		t.Fatalf("Classify() error = %v, want %v", err, errClassifierClosed)
	}
	if pre.calls != 0 {
		t.Errorf("Prepare() called %d times after Close, want 0", pre.calls)
	}
}

type countingPreprocessor struct {
	calls int
}

func (p *countingPreprocessor) Prepare(data []byte, width, height int) (*inputImage, error) {
	p.calls++
	return fakePreprocessor{}.Prepare(data, width, height)
}

func TestNewBackendUnsupported(t *testing.T) {
	if _, err := newBackend(modelConfig{Path: "models/garbage_classifier_final.h5"}); err == nil {
		t.Error("newBackend(.h5) err = nil, want error")
	}
}
