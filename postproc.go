/*
 * SPDX-License-Identifier: Unlicense
 *
 * This is free and unencumbered software released into the public domain.
 *
 * Anyone is free to copy, modify, publish, use, compile, sell, or distribute this
 * software, either in source code form or as a compiled binary, for any purpose,
 * commercial or non-commercial, and by any means.
 *
 * For more information, please refer to <http://unlicense.org/>
 */

package main

import (
	"fmt"
	"math"
	"sort"
)

// PostProcessing turns the raw output vector of a classifier into
// per-class probabilities.
type PostProcessing interface {
	scores(raw []float32) []float32
}

func newPostProcessing(name string) (PostProcessing, error) {
	switch name {
	case "auto", "":
		return AutoPostProcessing{}, nil
	case "softmax":
		return SoftmaxPostProcessing{}, nil
	case "none":
		return ProbabilityPostProcessing{}, nil
	}
	return nil, fmt.Errorf("unknown postprocessing %q", name)
}

type ProbabilityPostProcessing struct{}

func (ProbabilityPostProcessing) scores(raw []float32) []float32 {
	return copySlice(raw)
}

type SoftmaxPostProcessing struct{}

func (SoftmaxPostProcessing) scores(raw []float32) []float32 {
	return softmax(raw)
}

// AutoPostProcessing applies softmax only to outputs that are not
// already a probability distribution.
type AutoPostProcessing struct{}

func (AutoPostProcessing) scores(raw []float32) []float32 {
	if isDistribution(raw) {
		return copySlice(raw)
	}
	return softmax(raw)
}

func isDistribution(f []float32) bool {
	sum := 0.0
	for _, v := range f {
		if v < 0 || v > 1 {
			return false
		}
		sum += float64(v)
	}
	return math.Abs(sum-1) <= 1e-3
}

func softmax(f []float32) []float32 {
	out := make([]float32, len(f))
	if len(f) == 0 {
		return out
	}
	_, m := argmax(f)
	sum := 0.0
	for i, v := range f {
		e := math.Exp(float64(v - m))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

func copySlice(f []float32) []float32 {
	ff := make([]float32, len(f))
	copy(ff, f)
	return ff
}

func argmax(f []float32) (int, float32) {
	r, m := 0, f[0]
	for i, v := range f {
		if v > m {
			m = v
			r = i
		}
	}
	return r, m
}

type classScore struct {
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
}

// rank returns the k best classes by descending score. Ties keep model
// output order.
func rank(scores []float32, labels []string, k int) []classScore {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if k > 0 && k < len(idx) {
		idx = idx[:k]
	}

	ranked := make([]classScore, 0, len(idx))
	for _, i := range idx {
		ranked = append(ranked, classScore{Class: getLabel(labels, i), Confidence: scores[i]})
	}
	return ranked
}
