package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum returns |X_k| for k = 0..n/2 of the mean-removed samples.
func PowerSpectrum(samples []float64) []float64 {
	if len(samples) == 0 {
		return nil
	}
	centred := make([]float64, len(samples))
	copy(centred, samples)
	floats.AddConst(-stat.Mean(samples, nil), centred)

	coeffs := fourier.NewFFT(len(centred)).Coefficients(nil, centred)
	ps := make([]float64, len(coeffs))
	for i, c := range coeffs {
		ps[i] = math.Hypot(real(c), imag(c))
	}
	return ps
}

// DominantFrequency returns the frequency in Hz of the strongest non-DC
// bin of samples taken every dt seconds. A flat signal gives 0.
func DominantFrequency(samples []float64, dt float64) (float64, error) {
	if dt <= 0 {
		return 0, fmt.Errorf("%w: sample period must be positive, got %g", dynamo.ErrConfiguration, dt)
	}
	if len(samples) < 4 {
		return 0, fmt.Errorf("%w: need at least 4 samples, got %d", dynamo.ErrPrecondition, len(samples))
	}
	ps := PowerSpectrum(samples)
	peak := 1 + floats.MaxIdx(ps[1:])
	if ps[peak] == 0 {
		return 0, nil
	}
	return fourier.NewFFT(len(samples)).Freq(peak) / dt, nil
}
