package engine

import (
	"math"
	"testing"
	"time"
)

func TestEqualPower_ConstantPower(t *testing.T) {
	for _, target := range []float64{1, 0.6, 0.25} {
		for _, p := range []float64{0, 0.25, 0.5, 0.75, 1} {
			out, in := EqualPower(p, target)
			if got := out*out + in*in; math.Abs(got-target*target) > 1e-9 {
				t.Errorf("target=%v p=%v: out²+in² = %v, want %v", target, p, got, target*target)
			}
		}
	}
}

func TestEqualPower_Endpoints(t *testing.T) {
	out, in := EqualPower(0, 0.8)
	if out != 0.8 || in != 0 {
		t.Errorf("p=0: got (%v, %v), want (0.8, 0)", out, in)
	}
	out, in = EqualPower(1, 0.8)
	if math.Abs(out) > 1e-12 || math.Abs(in-0.8) > 1e-12 {
		t.Errorf("p=1: got (%v, %v), want (0, 0.8)", out, in)
	}
	// Out of range progress is clamped
	out, in = EqualPower(1.7, 1)
	if math.Abs(out) > 1e-12 || math.Abs(in-1) > 1e-12 {
		t.Errorf("p=1.7: got (%v, %v), want (0, 1)", out, in)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name           string
		elapsed, total time.Duration
		want           float64
	}{
		{"start", 0, 6 * time.Second, 0},
		{"middle", 3 * time.Second, 6 * time.Second, 0.5},
		{"end", 6 * time.Second, 6 * time.Second, 1},
		{"overrun", 9 * time.Second, 6 * time.Second, 1},
		{"negative elapsed", -time.Second, 6 * time.Second, 0},
		{"zero duration", 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Progress(tt.elapsed, tt.total); got != tt.want {
				t.Errorf("Progress(%v, %v) = %v, want %v", tt.elapsed, tt.total, got, tt.want)
			}
		})
	}
}
