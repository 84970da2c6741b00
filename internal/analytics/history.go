package analytics

// Decade aggregates observed loss over one calendar decade.
type Decade struct {
	Start       int     `json:"start" example:"2010"`
	Years       int     `json:"years"`
	TotalLossHa float64 `json:"totalLossHa"`
	AvgLossHa   float64 `json:"avgLossHa"`
}

// Decades groups obs by decade, oldest first.
func Decades(obs []Observation) []Decade {
	var out []Decade
	for _, o := range Sorted(obs) {
		start := o.Year - o.Year%10
		if len(out) == 0 || out[len(out)-1].Start != start {
			out = append(out, Decade{Start: start})
		}
		d := &out[len(out)-1]
		d.Years++
		d.TotalLossHa += o.LossHa
	}
	for i := range out {
		out[i].AvgLossHa = out[i].TotalLossHa / float64(out[i].Years)
	}
	return out
}

// Change is the year-over-year change in loss.
type Change struct {
	Year    int      `json:"year"`
	DeltaHa float64  `json:"deltaHa"`
	Percent *float64 `json:"percent"` // nil when the previous year had no loss
}

// Velocity returns the change from each year to the next.
func Velocity(obs []Observation) []Change {
	sorted := Sorted(obs)
	var out []Change
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		c := Change{Year: cur.Year, DeltaHa: cur.LossHa - prev.LossHa}
		if prev.LossHa > 0 {
			pct := c.DeltaHa / prev.LossHa * 100
			c.Percent = &pct
		}
		out = append(out, c)
	}
	return out
}

// Peak returns the observation with the highest loss.
func Peak(obs []Observation) (Observation, bool) {
	if len(obs) == 0 {
		return Observation{}, false
	}
	best := obs[0]
	for _, o := range obs[1:] {
		if o.LossHa > best.LossHa {
			best = o
		}
	}
	return best, true
}
