package domain

// ForecastLimits supplies the configured forecast horizon of each product.
type ForecastLimits interface {
	MaxForecastHour(p Product) (int, bool)
}

// IsEligible reports whether a file with the given forecast hour should be
// processed. Analyses are always eligible; forecasts only below the
// configured maximum. A forecast product without a limit is never eligible.
func IsEligible(p Product, forecastHour int, limits ForecastLimits) bool {
	if !p.IsForecast() {
		return true
	}
	limit, ok := limits.MaxForecastHour(p)
	if !ok {
		return false
	}
	return forecastHour < limit
}

// LimitMap is a ForecastLimits backed by a map.
type LimitMap map[Product]int

func (m LimitMap) MaxForecastHour(p Product) (int, bool) {
	v, ok := m[p]
	return v, ok
}
