package domain

import (
	"fmt"
	"time"
)

const dateLayout = "20060102"

// ForcingFileKey is the identity of a forcing file independent of its stage.
// Two files with equal keys describe the same product, model run and forecast
// hour, whatever directory they live in.
type ForcingFileKey struct {
	Product Product
	// Date is the model run date at UTC midnight.
	Date         time.Time
	ModelRunHour int
	ForecastHour int
}

// NewKey builds a key, truncating date to its UTC calendar day.
func NewKey(p Product, date time.Time, runHour, forecastHour int) (ForcingFileKey, error) {
	k := ForcingFileKey{
		Product:      p,
		Date:         utcDay(date),
		ModelRunHour: runHour,
		ForecastHour: forecastHour,
	}
	if err := k.Validate(); err != nil {
		return ForcingFileKey{}, err
	}
	return k, nil
}

// Validate checks that the key fits the product's naming constraints.
func (k ForcingFileKey) Validate() error {
	if !k.Product.Valid() {
		return fmt.Errorf("invalid product %d", int(k.Product))
	}
	if k.ModelRunHour < 0 || k.ModelRunHour > 23 {
		return fmt.Errorf("model run hour %d out of range [0,23]", k.ModelRunHour)
	}
	if k.ForecastHour < 0 {
		return fmt.Errorf("negative forecast hour %d", k.ForecastHour)
	}
	if k.ForecastHour > maxForWidth(k.Product.ForecastWidth()) {
		return fmt.Errorf("forecast hour %d exceeds %d digits", k.ForecastHour, k.Product.ForecastWidth())
	}
	if !k.Product.IsForecast() && k.ForecastHour != 0 {
		return fmt.Errorf("%s has no forecast hours, got %d", k.Product, k.ForecastHour)
	}
	return nil
}

// DateString renders the run date as YYYYMMDD.
func (k ForcingFileKey) DateString() string {
	return k.Date.Format(dateLayout)
}

// RunTime is the instant the model run was initialized.
func (k ForcingFileKey) RunTime() time.Time {
	return k.Date.Add(time.Duration(k.ModelRunHour) * time.Hour)
}

// ValidTime is the instant the forecast is valid for.
func (k ForcingFileKey) ValidTime() time.Time {
	return k.RunTime().Add(time.Duration(k.ForecastHour) * time.Hour)
}

// WithProduct returns a copy of k for another product.
func (k ForcingFileKey) WithProduct(p Product) ForcingFileKey {
	k.Product = p
	return k
}

func (k ForcingFileKey) String() string {
	return fmt.Sprintf("%s %s i%02d f%0*d", k.Product, k.DateString(), k.ModelRunHour, k.Product.ForecastWidth(), k.ForecastHour)
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func maxForWidth(width int) int {
	n := 1
	for range width {
		n *= 10
	}
	return n - 1
}
