package main

import (
	"context"
	"errors"
	"log"
	"sync"
)

var errClassifierClosed = errors.New("classifier closed")

type prediction struct {
	Class      string
	Confidence float32
	Top        []classScore
}

type job struct {
	img   *inputImage
	reply chan result
}

type result struct {
	raw []float32
	err error
}

// Classifier serializes inference on a Backend through a single worker
// goroutine; preprocessing runs on the caller's goroutine.
type Classifier struct {
	backend Backend
	pre     Preprocessor
	post    PostProcessing
	labels  []string
	topK    int
	width   int
	height  int

	in        chan job
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewClassifier(backend Backend, pre Preprocessor, post PostProcessing, labels []string, topK int) *Classifier {
	if n := backend.OutputSize(); n != len(labels) {
		log.Printf("Warning: model outputs %d classes but %d labels were loaded", n, len(labels))
	}
	c := &Classifier{
		backend: backend,
		pre:     pre,
		post:    post,
		labels:  labels,
		topK:    topK,
		in:      make(chan job),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	// only modelWorker touches the backend from here on
	c.width, c.height = backend.InputSize()
	go c.modelWorker()
	return c
}

func (c *Classifier) Labels() []string {
	return c.labels
}

func (c *Classifier) modelWorker() {
	defer close(c.done)
	for {
		select {
		case j := <-c.in:
			raw, err := c.backend.Run(j.img)
			j.reply <- result{raw, err}
		case <-c.quit:
			return
		}
	}
}

func (c *Classifier) Classify(ctx context.Context, data []byte) (*prediction, error) {
	select {
	case <-c.quit:
		return nil, errClassifierClosed
	default:
	}

	img, err := c.pre.Prepare(data, c.width, c.height)
	if err != nil {
		return nil, err
	}

	j := job{img: img, reply: make(chan result, 1)}
	select {
	case c.in <- j:
	case <-c.quit:
		return nil, errClassifierClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var res result
	select {
	case res = <-j.reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	top := rank(c.post.scores(res.raw), c.labels, c.topK)
	if len(top) == 0 {
		return nil, errors.New("model returned no scores")
	}
	return &prediction{Class: top[0].Class, Confidence: top[0].Confidence, Top: top}, nil
}

func (c *Classifier) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.done
		c.backend.Close()
	})
}
