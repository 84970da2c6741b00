package analytics

import (
	"fmt"
	"math"
)

// Baseline is the country data a simulation runs against.
type Baseline struct {
	ISO          string
	Name         string
	AreaHa       float64
	ForestAreaHa float64
	EmissionsMg  float64 // baseline gross emissions, Mg CO2e
	History      []Observation
}

// Projection is one projected path with its totals.
type Projection struct {
	Description     string  `json:"description"`
	Method          string  `json:"method"`
	TotalLossHa     float64 `json:"totalLossHa"`
	TotalCO2Tons    float64 `json:"totalCo2Tons"`
	AvgAnnualLossHa float64 `json:"avgAnnualLossHa"`
	Timeline        []Point `json:"timeline"`
}

// Comparison relates the user scenario to history and trend. Multipliers
// are nil when the reference is zero.
type Comparison struct {
	UserVsTrend     *float64 `json:"userVsTrend"`
	UserVsRecentAvg *float64 `json:"userVsRecentAvg"`
	Realism         string   `json:"realism" enum:"plausible,aggressive,hypothetical"`
	RecentAvgHa     float64  `json:"recentAvgHa"`
	Context         string   `json:"context"`
}

// Result is a dual projection: the user's scenario next to a continuation
// of the recent trend.
type Result struct {
	ISO             string     `json:"iso"`
	Country         string     `json:"country"`
	AreaHa          float64    `json:"areaHa"`
	ForestAreaHa    float64    `json:"forestAreaHa"`
	EmissionsMg     float64    `json:"baselineEmissionsMg"`
	FirstYear       int        `json:"firstYear"`
	LastYear        int        `json:"lastYear"`
	TargetYear      int        `json:"targetYear"`
	Scenario        Projection `json:"scenario"`
	Trend           Projection `json:"trend"`
	Comparison      Comparison `json:"comparison"`
	Combined        []Point    `json:"combined"`
	HistoricalTotal float64    `json:"historicalTotalLossHa"`
}

// Simulate projects lossFraction of b's forest lost by targetYear and the
// trend continuation over the same years.
func Simulate(b Baseline, lossFraction float64, targetYear int) (Result, error) {
	if len(b.History) == 0 {
		return Result{}, fmt.Errorf("%s: %w", b.ISO, ErrNoHistory)
	}
	if lossFraction < 0 || lossFraction > 1 {
		return Result{}, fmt.Errorf("loss fraction %v out of range [0,1]", lossFraction)
	}
	hist := Sorted(b.History)

	scenario, err := ProjectScenario(hist, targetYear, lossFraction, b.ForestAreaHa)
	if err != nil {
		return Result{}, err
	}
	trend, err := ProjectTrend(hist, targetYear, b.ForestAreaHa)
	if err != nil {
		return Result{}, err
	}
	trendLine := TrendTimeline(trend, hist, targetYear)

	perHa := EmissionsPerHa(b.EmissionsMg, b.ForestAreaHa)
	userTotal := TotalLoss(scenario.Timeline)
	trendTotal := TotalLoss(trendLine)

	res := Result{
		ISO:          b.ISO,
		Country:      b.Name,
		AreaHa:       b.AreaHa,
		ForestAreaHa: b.ForestAreaHa,
		EmissionsMg:  b.EmissionsMg,
		FirstYear:    hist[0].Year,
		LastYear:     hist[len(hist)-1].Year,
		TargetYear:   targetYear,
		Scenario: Projection{
			Description:     scenario.Description(targetYear),
			Method:          "user_scenario",
			TotalLossHa:     userTotal,
			TotalCO2Tons:    CO2Tons(userTotal, perHa),
			AvgAnnualLossHa: userTotal / float64(scenario.YearsToTarget),
			Timeline:        scenario.Timeline,
		},
		Trend: Projection{
			Description:     trend.Description(),
			Method:          string(trend.Method),
			TotalLossHa:     trendTotal,
			TotalCO2Tons:    CO2Tons(trendTotal, perHa),
			AvgAnnualLossHa: trend.AnnualLossHa,
			Timeline:        trendLine,
		},
	}

	recent := hist[max(0, len(hist)-5):]
	recentAvg := meanLoss(recent)
	userAnnual := res.Scenario.AvgAnnualLossHa
	res.Comparison = Comparison{
		UserVsTrend:     ratio(userTotal, trendTotal),
		UserVsRecentAvg: ratio(userAnnual, recentAvg),
		Realism:         Realism(lossFraction),
		RecentAvgHa:     recentAvg,
		Context:         fmt.Sprintf("Historical average: %.0f ha/year. User scenario: %.0f ha/year.", recentAvg, userAnnual),
	}

	for _, o := range hist {
		res.Combined = append(res.Combined, Point{Year: o.Year, LossHa: o.LossHa, Kind: KindObserved})
		res.HistoricalTotal += o.LossHa
	}
	res.Combined = append(res.Combined, scenario.Timeline...)
	return res, nil
}

// ratio returns a/b rounded to one decimal, or nil when b is zero.
func ratio(a, b float64) *float64 {
	if b <= 0 {
		return nil
	}
	r := math.Round(a/b*10) / 10
	return &r
}
