package layer

import (
	"math/rand/v2"

	"go.uber.org/zap"
)

// MaxAgeHours is the age range the simulated element timestamps span.
const MaxAgeHours = 720

// PeriodHours converts a period selector value to hours. Unknown values,
// including "all", return -1 which disables filtering.
func PeriodHours(period string) float64 {
	switch period {
	case "24h":
		return 24
	case "7days":
		return 168
	case "15days":
		return 360
	case "30days":
		return 720
	default:
		return -1
	}
}

// FilterResult counts elements per outcome.
type FilterResult struct {
	Period string `json:"period"`
	Area   string `json:"area,omitempty"`
	Layers int    `json:"layers"`
	Shown  int    `json:"shown"`
	Dimmed int    `json:"dimmed"`
}

// ApplyFilters restyles every element of every existing monitoring layer.
// Each element gets a random age in [0, MaxAgeHours); elements older than the
// period are dimmed. The area value is recorded but does not filter.
func (r *Registry) ApplyFilters(period, area string, rng *rand.Rand) FilterResult {
	hours := PeriodHours(period)
	res := FilterResult{Period: period, Area: area}

	for _, name := range Monitoring {
		l, ok := r.Get(name)
		if !ok {
			continue
		}
		res.Layers++
		l.Restyle(func(e *Element) {
			age := rng.Float64() * MaxAgeHours
			if hours > 0 && age > hours {
				e.Style.Opacity = 0.2
				e.Style.FillOpacity = 0.1
				res.Dimmed++
				return
			}
			e.Style.Opacity = 1
			e.Style.FillOpacity = e.Base.FillOpacity
			if e.Style.FillOpacity == 0 {
				e.Style.FillOpacity = 0.7
			}
			res.Shown++
		})
	}

	r.log.Info("filters applied",
		zap.String("period", period),
		zap.String("area", area),
		zap.Int("shown", res.Shown),
		zap.Int("dimmed", res.Dimmed),
	)
	return res
}
