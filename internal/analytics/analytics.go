// Package analytics projects country forest loss from observed annual
// tree cover loss: a trend continuation and a user-chosen scenario.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Point kinds in a timeline.
const (
	KindObserved  = "observed"
	KindScenario  = "projected_user_scenario"
	KindTrend     = "projected_trend_based"
	maxTrendShare = 0.05 // trend projections never exceed this share of forest per year
	accelerateAt  = 0.02 // scenarios above this loss fraction accelerate
)

var (
	ErrNoHistory  = errors.New("no historical observations")
	ErrTargetYear = errors.New("target year must be after the last observed year")
)

// Observation is the tree cover loss observed in one year.
type Observation struct {
	Year   int     `json:"year" yaml:"year" doc:"Calendar year" example:"2022"`
	LossHa float64 `json:"lossHa" yaml:"lossHa" doc:"Tree cover loss in hectares" example:"1500000"`
}

// Point is one year of a combined timeline.
type Point struct {
	Year   int     `json:"year"`
	LossHa float64 `json:"lossHa"`
	Kind   string  `json:"type" enum:"observed,projected_user_scenario,projected_trend_based"`
}

// Sorted returns a copy of obs ordered by year.
func Sorted(obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	copy(out, obs)
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// TrendMethod names how a trend was derived.
type TrendMethod string

const (
	MethodSimpleAverage TrendMethod = "simple_average"
	MethodLinearTrend   TrendMethod = "linear_trend"
	MethodRecentAverage TrendMethod = "recent_average"
)

// Trend is a constant annual loss derived from recent history.
type Trend struct {
	Method       TrendMethod `json:"method"`
	AnnualLossHa float64     `json:"annualLossHa"`
	Slope        float64     `json:"slope,omitempty"`
	Years        int         `json:"years"`
}

// Description summarises the trend for display.
func (t Trend) Description() string {
	switch t.Method {
	case MethodLinearTrend:
		dir := "decreasing"
		if t.Slope > 0 {
			dir = "increasing"
		}
		return fmt.Sprintf("Linear trend from %d recent years (%s at %.0f ha/year²)", t.Years, dir, math.Abs(t.Slope))
	case MethodRecentAverage:
		return fmt.Sprintf("Average of last %d years", t.Years)
	default:
		return fmt.Sprintf("Based on %d-year average", t.Years)
	}
}

// ProjectTrend fits a line through the last five years (or three when
// fewer exist) and evaluates it at targetYear, clamped to
// [0, 5% of forestAreaHa]. With fewer than three years it averages them.
func ProjectTrend(hist []Observation, targetYear int, forestAreaHa float64) (Trend, error) {
	if len(hist) == 0 {
		return Trend{}, ErrNoHistory
	}
	hist = Sorted(hist)

	if len(hist) < 3 {
		return Trend{Method: MethodSimpleAverage, AnnualLossHa: meanLoss(hist), Years: len(hist)}, nil
	}

	window := 3
	if len(hist) >= 5 {
		window = 5
	}
	recent := hist[len(hist)-window:]

	n := float64(len(recent))
	var sumX, sumY, sumXY, sumX2 float64
	for _, o := range recent {
		x := float64(o.Year)
		sumX += x
		sumY += o.LossHa
		sumXY += x * o.LossHa
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return Trend{Method: MethodRecentAverage, AnnualLossHa: meanLoss(recent), Years: len(recent)}, nil
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	projected := slope*float64(targetYear) + intercept
	projected = math.Max(0, math.Min(projected, forestAreaHa*maxTrendShare))
	return Trend{Method: MethodLinearTrend, AnnualLossHa: projected, Slope: slope, Years: len(recent)}, nil
}

// TrendTimeline repeats the trend's annual loss for every year after the
// last observation up to targetYear.
func TrendTimeline(t Trend, hist []Observation, targetYear int) []Point {
	last := lastYear(hist)
	var out []Point
	for y := last + 1; y <= targetYear; y++ {
		out = append(out, Point{Year: y, LossHa: t.AnnualLossHa, Kind: KindTrend})
	}
	return out
}

// Scenario is a hypothetical loss of LossFraction of the forest by the
// target year.
type Scenario struct {
	LossFraction      float64 `json:"lossFraction"`
	TotalTargetLossHa float64 `json:"totalTargetLossHa"`
	YearsToTarget     int     `json:"yearsToTarget"`
	Accelerating      bool    `json:"accelerating"`
	Timeline          []Point `json:"timeline"`
}

// Description summarises the scenario for display.
func (s Scenario) Description(targetYear int) string {
	return fmt.Sprintf("Hypothetical %.1f%% forest loss by %d", s.LossFraction*100, targetYear)
}

// ProjectScenario spreads lossFraction of forestAreaHa over the years up
// to targetYear. Up to 2% the loss is spread evenly. Above that it starts
// near the recent three-year average and accelerates, with the final year
// topping up to the target total.
func ProjectScenario(hist []Observation, targetYear int, lossFraction, forestAreaHa float64) (Scenario, error) {
	if len(hist) == 0 {
		return Scenario{}, ErrNoHistory
	}
	hist = Sorted(hist)
	last := lastYear(hist)
	years := targetYear - last
	if years <= 0 {
		return Scenario{}, fmt.Errorf("target %d, last observed %d: %w", targetYear, last, ErrTargetYear)
	}

	s := Scenario{
		LossFraction:      lossFraction,
		TotalTargetLossHa: forestAreaHa * lossFraction,
		YearsToTarget:     years,
		Accelerating:      lossFraction > accelerateAt,
	}

	if !s.Accelerating {
		annual := s.TotalTargetLossHa / float64(years)
		for i := 1; i <= years; i++ {
			s.Timeline = append(s.Timeline, Point{Year: last + i, LossHa: annual, Kind: KindScenario})
		}
		return s, nil
	}

	recentAvg := meanLoss(hist[max(0, len(hist)-3):])
	var distributed float64
	for i := 1; i <= years; i++ {
		accel := math.Pow(float64(i)/float64(years), 1.5)
		loss := recentAvg * (1 + accel*3)
		if i == years {
			loss = math.Max(loss, s.TotalTargetLossHa-distributed)
		}
		s.Timeline = append(s.Timeline, Point{Year: last + i, LossHa: loss, Kind: KindScenario})
		distributed += loss
	}
	return s, nil
}

// Realism classifies a scenario loss fraction.
func Realism(lossFraction float64) string {
	switch {
	case lossFraction > 0.05:
		return "hypothetical"
	case lossFraction > accelerateAt:
		return "aggressive"
	default:
		return "plausible"
	}
}

// EmissionsPerHa is baseline emissions (Mg CO2e) divided by forest area.
func EmissionsPerHa(emissionsMg, forestAreaHa float64) float64 {
	if forestAreaHa <= 0 {
		return 0
	}
	return emissionsMg / forestAreaHa
}

// CO2Tons converts hectares lost to thousands of Mg CO2e, the unit the
// dashboard reports.
func CO2Tons(lossHa, emissionsPerHa float64) float64 {
	return lossHa * emissionsPerHa / 1000
}

// TotalLoss sums the loss of pts.
func TotalLoss(pts []Point) float64 {
	var sum float64
	for _, p := range pts {
		sum += p.LossHa
	}
	return sum
}

func meanLoss(obs []Observation) float64 {
	if len(obs) == 0 {
		return 0
	}
	var sum float64
	for _, o := range obs {
		sum += o.LossHa
	}
	return sum / float64(len(obs))
}

func lastYear(hist []Observation) int {
	last := 0
	for _, o := range hist {
		if o.Year > last {
			last = o.Year
		}
	}
	return last
}
