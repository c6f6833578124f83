package stats

import "math"

// Confidence is the verdict for a non-baseline variant.
type Confidence string

const (
	Winner   Confidence = "winner"
	Trending Confidence = "trending"
	NeedData Confidence = "need_data"
)

// Thresholds control the classification. The defaults match the dashboard
// labels "95% confident", "Trending" and "Need more data".
type Thresholds struct {
	MinSample int     // visitors required in each arm before any verdict
	WinnerZ   float64 // one-sided z at or above which a better variant wins
}

func DefaultThresholds() Thresholds {
	return Thresholds{MinSample: 10, WinnerZ: 1.65}
}

// Arm is the input for one variant.
type Arm struct {
	ID          int64
	Visitors    int
	Conversions int
	Control     bool
}

func (a Arm) Rate() float64 {
	if a.Visitors == 0 {
		return 0
	}
	return float64(a.Conversions) / float64(a.Visitors)
}

// Verdict is the classification of one variant against the baseline.
type Verdict struct {
	ID         int64
	Confidence Confidence
	Z          float64
	Level      float64 // Phi(z), 0-1, for display
}

// Classification holds the baseline and a verdict per non-baseline arm,
// in input order.
type Classification struct {
	BaselineID int64
	Verdicts   []Verdict
}

// Verdict returns the verdict for id, if id is not the baseline.
func (c Classification) Verdict(id int64) (Verdict, bool) {
	for _, v := range c.Verdicts {
		if v.ID == id {
			return v, true
		}
	}
	return Verdict{}, false
}

// Classify compares every arm against the baseline arm: the one flagged
// Control, otherwise the arm with the most visitors (first wins ties).
func Classify(arms []Arm, th Thresholds) Classification {
	if len(arms) == 0 {
		return Classification{}
	}

	base := baselineIndex(arms)
	out := Classification{BaselineID: arms[base].ID}

	for i, arm := range arms {
		if i == base {
			continue
		}
		out.Verdicts = append(out.Verdicts, classifyArm(arm, arms[base], th))
	}

	return out
}

func baselineIndex(arms []Arm) int {
	for i, a := range arms {
		if a.Control {
			return i
		}
	}
	best := 0
	for i, a := range arms {
		if a.Visitors > arms[best].Visitors {
			best = i
		}
	}
	return best
}

func classifyArm(arm, base Arm, th Thresholds) Verdict {
	v := Verdict{ID: arm.ID, Confidence: NeedData, Level: 0.5}

	if arm.Visitors < th.MinSample || base.Visitors < th.MinSample {
		return v
	}
	if arm.Conversions == 0 && base.Conversions == 0 {
		return v
	}

	z, ok := ZStatistic(arm.Conversions, arm.Visitors, base.Conversions, base.Visitors)
	if !ok {
		return v
	}
	v.Z = z
	v.Level = normalCDF(z)

	switch {
	case z >= th.WinnerZ && arm.Rate() > base.Rate():
		v.Confidence = Winner
	case z > 0:
		v.Confidence = Trending
	}

	return v
}

// ZStatistic is the pooled two-proportion z statistic of A over B. ok is
// false when either arm is empty or the pooled standard error is zero.
func ZStatistic(aConv, aViews, bConv, bViews int) (z float64, ok bool) {
	if aViews == 0 || bViews == 0 {
		return 0, false
	}

	pA := float64(aConv) / float64(aViews)
	pB := float64(bConv) / float64(bViews)

	// Pooled proportion under null hypothesis (pA = pB)
	pooled := float64(aConv+bConv) / float64(aViews+bViews)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(aViews) + 1/float64(bViews)))
	if se == 0 || math.IsNaN(se) {
		return 0, false
	}

	return (pA - pB) / se, true
}

// SignificanceTest returns the confidence level (0-1) that A beats B.
// Degenerate inputs yield 0.5, or 0/1 when the rates differ with zero error.
func SignificanceTest(aConv, aViews, bConv, bViews int) float64 {
	if aViews == 0 || bViews == 0 {
		return 0.5
	}

	z, ok := ZStatistic(aConv, aViews, bConv, bViews)
	if !ok {
		pA := float64(aConv) / float64(aViews)
		pB := float64(bConv) / float64(bViews)
		switch {
		case pA > pB:
			return 1.0
		case pA < pB:
			return 0.0
		}
		return 0.5
	}

	return normalCDF(z)
}

// normalCDF approximates the standard normal CDF
// (Abramowitz and Stegun, formula 7.1.26).
func normalCDF(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}
