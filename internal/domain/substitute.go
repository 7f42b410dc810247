package domain

import (
	"errors"
	"time"

	"github.com/couchcryptid/forcing-engine/internal/fsutil"
)

// DefaultLookback is the number of earlier model runs searched for a
// zero-hour substitute when none is configured.
const DefaultLookback = 3

// SubstitutionCandidate is an earlier model run whose forecast is valid at
// the same instant as a defective zero-hour file.
type SubstitutionCandidate struct {
	Key ForcingFileKey
	// DayOffset is how many calendar days before the target date the
	// candidate run was initialized.
	DayOffset int
}

// SubstitutionCandidates lists, most recent first, the lookback earlier runs
// of target's product whose forecast covers target's valid time. Runs are
// stepped on the product's cadence so the search crosses midnight naturally.
// Candidates at or beyond the forecast limit are dropped since they are
// never downscaled.
func SubstitutionCandidates(target ForcingFileKey, lookback int, limits ForecastLimits) ([]SubstitutionCandidate, error) {
	if !NeedsSubstitute(target) {
		return nil, errors.New("substitution only applies to zero-hour files of defective products")
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	step := time.Duration(target.Product.RunCadence()) * time.Hour
	valid := target.ValidTime()
	out := make([]SubstitutionCandidate, 0, lookback)
	for i := 1; i <= lookback; i++ {
		run := target.RunTime().Add(-time.Duration(i) * step)
		k := ForcingFileKey{
			Product:      target.Product,
			Date:         utcDay(run),
			ModelRunHour: run.Hour(),
			ForecastHour: int(valid.Sub(run) / time.Hour),
		}
		if limits != nil && !IsEligible(k.Product, k.ForecastHour, limits) {
			continue
		}
		out = append(out, SubstitutionCandidate{
			Key:       k,
			DayOffset: int(target.Date.Sub(k.Date) / (24 * time.Hour)),
		})
	}
	return out, nil
}

// SubstitutionResolver finds the downscaled output of an earlier run to stand
// in for a defective zero-hour file.
type SubstitutionResolver struct {
	Lookback int
	Limits   ForecastLimits
	// Exists reports whether a file is present. Defaults to fsutil.IsFile.
	Exists func(path string) bool
}

// FindSubstitute returns the most recent candidate present under the
// downscaled layout, or a *SubstitutionNotFoundError.
func (r SubstitutionResolver) FindSubstitute(target ForcingFileKey, downscaled Layout) (ForcingFile, error) {
	candidates, err := SubstitutionCandidates(target, r.Lookback, r.Limits)
	if err != nil {
		return ForcingFile{}, err
	}
	exists := r.Exists
	if exists == nil {
		exists = fsutil.IsFile
	}
	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		path := downscaled.Path(c.Key)
		if exists(path) {
			return ForcingFile{Key: c.Key, Stage: StageDownscaled, Path: path}, nil
		}
		tried = append(tried, path)
	}
	return ForcingFile{}, &SubstitutionNotFoundError{Target: target, Tried: tried}
}
