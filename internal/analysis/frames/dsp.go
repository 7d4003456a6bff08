package frames

// Pitch estimation over one capture window. The estimator is deliberately
// simple: normalized autocorrelation over the voice band, computed on the
// mean-removed signal. It runs once per 100 ms window, so the quadratic scan
// over candidate lags is cheap at capture sample rates.

const (
	// Voice band searched for a fundamental. Anything outside 50–500 Hz is
	// not treated as speech pitch.
	minPitchHz = 50.0
	maxPitchHz = 500.0

	// minCorrelation is the normalized autocorrelation a lag must reach to
	// count as a detected pitch. Below this the window is treated as
	// unvoiced and the pitch reported as 0.
	minCorrelation = 0.3
)

// estimatePitch returns the fundamental frequency of a PCM16 window in Hz,
// or 0 when no pitch is detected.
func estimatePitch(samples []int16, sampleRate int) float64 {
	n := len(samples)
	if n == 0 || sampleRate <= 0 {
		return 0
	}

	// Remove the DC offset so a constant bias does not dominate the
	// correlation.
	var mean float64
	for _, s := range samples {
		mean += float64(s)
	}
	mean /= float64(n)

	x := make([]float64, n)
	var energy float64
	for i, s := range samples {
		x[i] = float64(s) - mean
		energy += x[i] * x[i]
	}
	if energy == 0 {
		return 0
	}

	minLag := int(float64(sampleRate) / maxPitchHz)
	maxLag := int(float64(sampleRate) / minPitchHz)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= n {
		maxLag = n - 1
	}
	if minLag >= maxLag {
		return 0
	}

	// Pick the lag with the strongest normalized autocorrelation. For voiced
	// speech the first periodic peak wins because later multiples of the
	// period correlate over fewer samples.
	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i+lag < n; i++ {
			corr += x[i] * x[i+lag]
		}
		corr /= energy
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if bestLag == 0 || bestCorr < minCorrelation {
		return 0
	}
	return float64(sampleRate) / float64(bestLag)
}
