package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// grammar parses and formats the raw filenames a product is delivered with.
type grammar interface {
	parse(p Product, name string) (ForcingFileKey, error)
	format(k ForcingFileKey) string
}

// modelGrammar matches <YYYYMMDD>_i<HH>_f<FF..FFFF> anywhere in a model filename.
type modelGrammar struct{}

var modelPattern = regexp.MustCompile(`([0-9]{8})_i([0-9]{2})_f([0-9]{2,4})(?:[^0-9]|$)`)

func (modelGrammar) parse(p Product, name string) (ForcingFileKey, error) {
	m := modelPattern.FindStringSubmatch(name)
	if m == nil {
		return ForcingFileKey{}, &NamingError{Product: p, Name: name, Reason: "no <YYYYMMDD>_i<HH>_f<FFF> token"}
	}
	date, err := time.Parse(dateLayout, m[1])
	if err != nil {
		return ForcingFileKey{}, &NamingError{Product: p, Name: name, Reason: "invalid date " + m[1]}
	}
	run, _ := strconv.Atoi(m[2])
	fh, _ := strconv.Atoi(m[3])
	k, err := NewKey(p, date, run, fh)
	if err != nil {
		return ForcingFileKey{}, &NamingError{Product: p, Name: name, Reason: err.Error()}
	}
	return k, nil
}

func (modelGrammar) format(k ForcingFileKey) string {
	return fmt.Sprintf("%s_i%02d_f%0*d_%s.grb2", k.DateString(), k.ModelRunHour, k.Product.ForecastWidth(), k.ForecastHour, k.Product)
}

// radarGrammar matches <YYYYMMDD>_<HH><MM> in MRMS gauge-corrected QPE names.
// Minutes are validated but do not take part in the key.
type radarGrammar struct{}

var radarPattern = regexp.MustCompile(`([0-9]{8})_([0-9]{2})([0-9]{2})`)

func (radarGrammar) parse(p Product, name string) (ForcingFileKey, error) {
	m := radarPattern.FindStringSubmatch(name)
	if m == nil {
		return ForcingFileKey{}, &NamingError{Product: p, Name: name, Reason: "no <YYYYMMDD>_<HHMM> token"}
	}
	date, err := time.Parse(dateLayout, m[1])
	if err != nil {
		return ForcingFileKey{}, &NamingError{Product: p, Name: name, Reason: "invalid date " + m[1]}
	}
	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	if minute > 59 {
		return ForcingFileKey{}, &NamingError{Product: p, Name: name, Reason: "invalid minute " + m[3]}
	}
	k, err := NewKey(p, date, hour, 0)
	if err != nil {
		return ForcingFileKey{}, &NamingError{Product: p, Name: name, Reason: err.Error()}
	}
	return k, nil
}

func (radarGrammar) format(k ForcingFileKey) string {
	return fmt.Sprintf("GaugeCorr_QPE_00.00_%s_%02d0000.grib2", k.DateString(), k.ModelRunHour)
}

// Parse extracts the key from a raw filename of product p. Only the base name
// is expected; directory components are not interpreted.
func Parse(p Product, filename string) (ForcingFileKey, error) {
	if !p.Valid() {
		return ForcingFileKey{}, &NamingError{Product: p, Name: filename, Reason: "unknown product"}
	}
	return p.traits().grammar.parse(p, filename)
}

// Format renders the raw filename for k. Parse(k.Product, Format(k)) == k for
// every valid key.
func Format(k ForcingFileKey) string {
	return k.Product.traits().grammar.format(k)
}

var outputPattern = regexp.MustCompile(`^([0-9]{8})_i([0-9]{2})_f([0-9]{2,4})_([A-Za-z][A-Za-z0-9-]*)\.nc$`)

// ParseOutputName parses a canonical <YYYYMMDD>_i<HH>_f<FFF>_<label>.nc name.
// The label is returned verbatim; when it names a product the key carries
// that product, otherwise Product is zero.
func ParseOutputName(name string) (ForcingFileKey, string, error) {
	m := outputPattern.FindStringSubmatch(name)
	if m == nil {
		return ForcingFileKey{}, "", &NamingError{Name: name, Reason: "not a canonical output name"}
	}
	date, err := time.Parse(dateLayout, m[1])
	if err != nil {
		return ForcingFileKey{}, "", &NamingError{Name: name, Reason: "invalid date " + m[1]}
	}
	run, _ := strconv.Atoi(m[2])
	fh, _ := strconv.Atoi(m[3])
	label := m[4]
	k := ForcingFileKey{Date: utcDay(date), ModelRunHour: run, ForecastHour: fh}
	if p, err := ParseProduct(label); err == nil {
		k.Product = p
		if err := k.Validate(); err != nil {
			return ForcingFileKey{}, "", &NamingError{Product: p, Name: name, Reason: err.Error()}
		}
	} else if run > 23 {
		return ForcingFileKey{}, "", &NamingError{Name: name, Reason: "model run hour out of range"}
	}
	return k, label, nil
}
