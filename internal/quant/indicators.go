package quant

import "math"

// Slice-aligned indicator math. Output length always equals input length,
// with NaN marking warmup indices, so rule evaluation can index bars and
// indicators interchangeably.

// SMA over the last `period` points; NaNs for warmup.
func SMA(x []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		if i >= period {
			sum -= x[i-period]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// EMA with smoothing 2/(period+1). Seeded with SMA(period) at index
// period-1, then ema = (x[i]-prev)*k + prev.
func EMA(x []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(x) < period {
		return out
	}
	k := 2.0 / float64(period+1)

	var seed float64
	for i := 0; i < period; i++ {
		seed += x[i]
	}
	out[period-1] = seed / float64(period)
	for i := period; i < len(x); i++ {
		out[i] = (x[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// RSI, Wilder smoothing over the trailing window. Indices with fewer than
// period+1 samples hold the neutral 50 instead of erroring, so callers keep
// running on short series.
func RSI(x []float64, period int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = 50
	}
	if period <= 0 || len(x) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := x[i] - x[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(x); i++ {
		d := x[i] - x[i-1]
		var gain, loss float64
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD: line = EMA(fast)-EMA(slow); signal = EMA(signalPeriod) of the line,
// seeded with the SMA of its first signalPeriod valid values; hist = line-signal.
func MACD(x []float64, fast, slow, signalPeriod int) (line, signal, hist []float64) {
	n := len(x)
	line = make([]float64, n)
	signal = make([]float64, n)
	hist = make([]float64, n)
	for i := range line {
		line[i] = math.NaN()
		signal[i] = math.NaN()
		hist[i] = math.NaN()
	}
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 || fast >= slow {
		return
	}

	emaFast := EMA(x, fast)
	emaSlow := EMA(x, slow)
	firstLine := slow - 1 // both EMAs valid from here
	if firstLine >= n {
		return
	}
	for i := firstLine; i < n; i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}

	firstSignal := firstLine + signalPeriod - 1
	if firstSignal >= n {
		return
	}
	var seed float64
	for i := firstLine; i <= firstSignal; i++ {
		seed += line[i]
	}
	signal[firstSignal] = seed / float64(signalPeriod)
	k := 2.0 / float64(signalPeriod+1)
	for i := firstSignal + 1; i < n; i++ {
		signal[i] = (line[i]-signal[i-1])*k + signal[i-1]
	}
	for i := firstSignal; i < n; i++ {
		hist[i] = line[i] - signal[i]
	}
	return
}

// Bollinger: SMA(period) ± k * population stddev over the same window.
func Bollinger(x []float64, period int, k float64) (middle, upper, lower []float64) {
	mean, std := RollingMeanStd(x, period)
	n := len(x)
	middle = mean
	upper = make([]float64, n)
	lower = make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(mean[i]) {
			upper[i] = math.NaN()
			lower[i] = math.NaN()
			continue
		}
		upper[i] = mean[i] + k*std[i]
		lower[i] = mean[i] - k*std[i]
	}
	return
}

// ATR: mean of true range max(h-l, |h-prevC|, |l-prevC|) over the window.
func ATR(high, low, closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 || len(high) != n || len(low) != n {
		return nil
	}
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		hl := high[i] - low[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(high[i] - closes[i-1])
		lc := math.Abs(low[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return SMA(tr, period)
}

// Rolling mean/std (population) over window `period`; NaNs for warmup.
func RollingMeanStd(x []float64, period int) (mean, std []float64) {
	if period <= 0 {
		return nil, nil
	}
	n := len(x)
	mean = make([]float64, n)
	std = make([]float64, n)

	var sum, sum2 float64
	for i := 0; i < n; i++ {
		sum += x[i]
		sum2 += x[i] * x[i]
		if i < period-1 {
			mean[i] = math.NaN()
			std[i] = math.NaN()
			continue
		}
		if i >= period {
			sum -= x[i-period]
			sum2 -= x[i-period] * x[i-period]
		}
		m := sum / float64(period)
		v := sum2/float64(period) - m*m
		if v < 0 {
			v = 0
		}
		mean[i] = m
		std[i] = math.Sqrt(v)
	}
	return
}
