package domain

import (
	"fmt"
	"strings"
)

// Product identifies an upstream atmospheric data product.
type Product int

// The closed set of supported products. Every product must have an entry in
// traitsByProduct; TestProductTraitsComplete enforces this.
const (
	HRRR Product = iota + 1
	RAP
	NAM
	GFS
	MRMS
	CFS
)

// productTraits holds the static, per-product contract: filename grammar,
// forecast-hour width, model run cadence and pipeline behavior.
type productTraits struct {
	name string
	// grammar parses and formats raw input filenames.
	grammar grammar
	// forecastWidth is the zero-padded width of <FFF> in canonical names.
	forecastWidth int
	// runCadence is the number of hours between model runs. Zero for analyses.
	runCadence int
	// zeroHourDefect marks products whose f000 files lack variables and must
	// be replaced by an earlier run's forecast with the same valid time.
	zeroHourDefect bool
	// downscaled reports whether the product goes through the downscale stage.
	downscaled bool
}

var traitsByProduct = map[Product]productTraits{
	HRRR: {name: "HRRR", grammar: modelGrammar{}, forecastWidth: 3, runCadence: 1, downscaled: true},
	RAP:  {name: "RAP", grammar: modelGrammar{}, forecastWidth: 3, runCadence: 1, zeroHourDefect: true, downscaled: true},
	NAM:  {name: "NAM", grammar: modelGrammar{}, forecastWidth: 3, runCadence: 6, downscaled: true},
	GFS:  {name: "GFS", grammar: modelGrammar{}, forecastWidth: 4, runCadence: 6, zeroHourDefect: true, downscaled: true},
	MRMS: {name: "MRMS", grammar: radarGrammar{}, forecastWidth: 3},
	CFS:  {name: "CFS", grammar: modelGrammar{}, forecastWidth: 4, runCadence: 6, downscaled: true},
}

// Products returns every supported product in declaration order.
func Products() []Product {
	return []Product{HRRR, RAP, NAM, GFS, MRMS, CFS}
}

// ParseProduct resolves a product name case-insensitively.
func ParseProduct(s string) (Product, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, p := range Products() {
		if traitsByProduct[p].name == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown product %q", s)
}

func (p Product) traits() productTraits {
	return traitsByProduct[p]
}

// Valid reports whether p is one of the supported products.
func (p Product) Valid() bool {
	_, ok := traitsByProduct[p]
	return ok
}

func (p Product) String() string {
	if s, ok := traitsByProduct[p]; ok {
		return s.name
	}
	return fmt.Sprintf("Product(%d)", int(p))
}

// MarshalText encodes the product by name.
func (p Product) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid product %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a product name.
func (p *Product) UnmarshalText(text []byte) error {
	v, err := ParseProduct(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ForecastWidth is the number of digits <FFF> is padded to in canonical names.
func (p Product) ForecastWidth() int { return p.traits().forecastWidth }

// IsForecast reports whether the product has a forecast horizon. MRMS is a
// radar analysis and has none.
func (p Product) IsForecast() bool { return p.traits().runCadence > 0 }

// RunCadence is the spacing, in hours, between consecutive model runs.
func (p Product) RunCadence() int { return p.traits().runCadence }

// HasZeroHourDefect reports whether f000 files of p miss variables.
func (p Product) HasZeroHourDefect() bool { return p.traits().zeroHourDefect }

// Downscaled reports whether p goes through the downscale stage.
func (p Product) Downscaled() bool { return p.traits().downscaled }

// NeedsSubstitute reports whether the file identified by key must take its
// downscaled output from an earlier model run instead of the downscale tool.
func NeedsSubstitute(key ForcingFileKey) bool {
	return key.ForecastHour == 0 && key.Product.HasZeroHourDefect()
}
