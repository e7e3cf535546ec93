package aggregation

// Summary holds the aggregate of one window. Sum, Avg, Min and Max are nil
// when the window has no samples.
type Summary struct {
	Count int
	Sum   *float64
	Avg   *float64
	Min   *float64
	Max   *float64
}

// Summarize folds samples in the order given. Callers pass samples in a
// stable order so that repeated runs produce bit-identical averages.
func Summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}

	sum := 0.0
	lo, hi := samples[0], samples[0]
	for _, v := range samples {
		sum += v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	avg := sum / float64(len(samples))

	return Summary{
		Count: len(samples),
		Sum:   &sum,
		Avg:   &avg,
		Min:   &lo,
		Max:   &hi,
	}
}

// Change is current minus previous average, or nil when either window is
// empty. A missing previous week is not the same as no change.
func Change(current, previous Summary) *float64 {
	if current.Avg == nil || previous.Avg == nil {
		return nil
	}
	d := *current.Avg - *previous.Avg
	return &d
}

// gramsPerTonne converts summed co2_density samples to tonnes.
const gramsPerTonne = 1e6

// TotalTons reads every co2_density sample (grams per cubic metre) as one
// cubic metre of sampled air and returns the summed mass in tonnes.
func TotalTons(s Summary) *float64 {
	if s.Sum == nil {
		return nil
	}
	t := *s.Sum / gramsPerTonne
	return &t
}
