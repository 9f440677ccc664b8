package analysis

import (
	"math"
	"strings"
	"testing"
)

func sine(freq, dt float64, n int) ([]float64, []float64) {
	times := make([]float64, n)
	xs := make([]float64, n)
	for i := range xs {
		times[i] = float64(i) * dt
		xs[i] = 0.3 + math.Sin(2*math.Pi*freq*times[i])
	}
	return times, xs
}

func TestDominantFrequency(t *testing.T) {
	tests := []struct {
		freq, dt float64
		n        int
	}{
		{0.5, 0.01, 1000},
		{2.0, 0.01, 1500},
		{0.8, 0.02, 777},
	}
	for _, tt := range tests {
		_, xs := sine(tt.freq, tt.dt, tt.n)
		got, err := DominantFrequency(xs, tt.dt)
		if err != nil {
			t.Fatal(err)
		}
		resolution := 1 / (float64(tt.n) * tt.dt)
		if math.Abs(got-tt.freq) > resolution {
			t.Errorf("f=%g: got %g, resolution %g", tt.freq, got, resolution)
		}
	}
}

func TestSpectrumErrors(t *testing.T) {
	if _, _, err := Spectrum([]float64{1, 2}, 0.01); err != ErrShortSignal {
		t.Errorf("short signal: %v", err)
	}
	if _, _, err := Spectrum(make([]float64, 16), 0); err == nil {
		t.Error("zero dt accepted")
	}
}

func TestSwingFrequency(t *testing.T) {
	got := SwingFrequency(1, 9.81)
	want := math.Sqrt(9.81) / (2 * math.Pi)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("got %g, want %g", got, want)
	}
	if !math.IsNaN(SwingFrequency(0, 9.81)) {
		t.Error("zero length should give NaN")
	}
}

func TestCrossingsPeriod(t *testing.T) {
	times, xs := sine(1.25, 0.001, 4000)
	c := Crossings(times, xs, 0.3)
	if len(c) < 4 {
		t.Fatalf("found %d crossings", len(c))
	}
	if p := MeanPeriod(c); math.Abs(p-0.8) > 1e-4 {
		t.Errorf("period = %g, want 0.8", p)
	}
	if !math.IsNaN(MeanPeriod(c[:1])) {
		t.Error("one crossing should give NaN")
	}
}

func TestPortraitToASCII(t *testing.T) {
	_, xs := sine(1, 0.01, 200)
	_, ys := sine(1, 0.01, 150)
	pts := Portrait(xs, ys)
	if len(pts) != 150 {
		t.Fatalf("points = %d", len(pts))
	}
	out := PortraitToASCII(pts, 40, 12)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 12 {
		t.Fatalf("rows = %d", len(lines))
	}
	for _, l := range lines {
		if n := len([]rune(l)); n != 40 {
			t.Fatalf("row width = %d", n)
		}
	}
	if !strings.Contains(out, "•") {
		t.Error("no points drawn")
	}
	if PortraitToASCII(nil, 10, 10) != "" {
		t.Error("empty portrait rendered")
	}
}
