package main

import (
	"math"
	"reflect"
	"testing"
)

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestSoftmax(t *testing.T) {
	got := softmax([]float32{1, 2, 3})
	want := []float32{0.09003057, 0.24472847, 0.66524096}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("softmax() = %v, want %v", got, want)
		}
	}
	if got := softmax(nil); len(got) != 0 {
		t.Errorf("softmax(nil) = %v, want empty", got)
	}
}

func TestAutoPostProcessing(t *testing.T) {
	probs := []float32{0.1, 0.7, 0.2}
	if got := (AutoPostProcessing{}).scores(probs); !reflect.DeepEqual(got, probs) {
		t.Errorf("scores(probabilities) = %v, want unchanged", got)
	}

	logits := []float32{-1, 4, 0.5}
	got := (AutoPostProcessing{}).scores(logits)
	sum := float32(0)
	for _, v := range got {
		sum += v
	}
	if !almostEqual(sum, 1) {
		t.Errorf("scores(logits) sums to %v, want 1", sum)
	}
	if i, _ := argmax(got); i != 1 {
		t.Errorf("argmax(scores(logits)) = %d, want 1", i)
	}
}

func TestNewPostProcessing(t *testing.T) {
	for _, name := range []string{"", "auto", "softmax", "none"} {
		if _, err := newPostProcessing(name); err != nil {
			t.Errorf("newPostProcessing(%q) error = %v", name, err)
		}
	}
	if _, err := newPostProcessing("sigmoid"); err == nil {
		t.Error("newPostProcessing(sigmoid) err = nil, want error")
	}
}

func TestRank(t *testing.T) {
	labels := []string{"cardboard", "glass", "metal", "paper"}
	scores := []float32{0.1, 0.4, 0.1, 0.4}

	got := rank(scores, labels, 3)
	want := []classScore{
		{Class: "glass", Confidence: 0.4},
		{Class: "paper", Confidence: 0.4},
		{Class: "cardboard", Confidence: 0.1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rank() = %v, want %v", got, want)
	}

	if got := rank(scores, labels, 10); len(got) != 4 {
		t.Errorf("rank(k=10) returned %d entries, want 4", len(got))
	}
	if got := rank([]float32{0.2, 0.8}, []string{"a"}, 1); got[0].Class != "unknown" {
		t.Errorf("rank() with missing label = %v, want unknown", got)
	}
}
