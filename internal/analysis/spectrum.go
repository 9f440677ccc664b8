package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

var ErrShortSignal = errors.New("analysis: signal too short")

// Spectrum returns the one-sided amplitude spectrum of samples taken every
// dt seconds. The mean is removed first, so bin 0 is omitted.
func Spectrum(samples []float64, dt float64) (freqs, power []float64, err error) {
	n := len(samples)
	if n < 4 {
		return nil, nil, ErrShortSignal
	}
	if dt <= 0 {
		return nil, nil, errors.New("analysis: dt must be positive")
	}

	mean := stat.Mean(samples, nil)
	centred := make([]float64, n)
	for i, x := range samples {
		centred[i] = x - mean
	}

	coeffs := fft.FFTReal(centred)
	half := n / 2
	freqs = make([]float64, 0, half)
	power = make([]float64, 0, half)
	for k := 1; k <= half; k++ {
		freqs = append(freqs, float64(k)/(float64(n)*dt))
		power = append(power, cmplx.Abs(coeffs[k])/float64(n))
	}
	return freqs, power, nil
}

// DominantFrequency returns the frequency of the largest spectral peak.
func DominantFrequency(samples []float64, dt float64) (float64, error) {
	freqs, power, err := Spectrum(samples, dt)
	if err != nil {
		return 0, err
	}
	best := 0
	for i, p := range power {
		if p > power[best] {
			best = i
		}
	}
	return freqs[best], nil
}

// SwingFrequency is the small-angle pendulum frequency in Hz of a load on
// a cable of the given length under gravity g.
func SwingFrequency(length, g float64) float64 {
	if length <= 0 {
		return math.NaN()
	}
	return math.Sqrt(g/length) / (2 * math.Pi)
}
