package domain

import (
	"fmt"
	"path/filepath"
)

// LayeredLabel replaces the product in the names of layered outputs.
const LayeredLabel = "Analysis-Assimilation"

// OutputName is the canonical post-regrid filename for k.
func OutputName(k ForcingFileKey) string {
	return canonicalName(k, k.Product.String())
}

// LayeredName is the filename of the layered output whose primary input has key k.
func LayeredName(k ForcingFileKey) string {
	return canonicalName(k, LayeredLabel)
}

func canonicalName(k ForcingFileKey, label string) string {
	return fmt.Sprintf("%s_i%02d_f%0*d_%s.nc", k.DateString(), k.ModelRunHour, k.Product.ForecastWidth(), k.ForecastHour, label)
}

// Subdir is the <YYYYMMDD>/i<HH> directory, relative to a stage root, that
// holds outputs for k.
func Subdir(k ForcingFileKey) string {
	return filepath.Join(k.DateString(), fmt.Sprintf("i%02d", k.ModelRunHour))
}

// Resolve returns the subdirectory and filename of the canonical output for k.
func Resolve(k ForcingFileKey) (subdir, filename string) {
	return Subdir(k), OutputName(k)
}

// Layout places canonical outputs under a stage root directory.
type Layout struct {
	Root string
}

// Dir is the directory that holds the output for k.
func (l Layout) Dir(k ForcingFileKey) string {
	return filepath.Join(l.Root, Subdir(k))
}

// Path is the full path of the output for k.
func (l Layout) Path(k ForcingFileKey) string {
	return filepath.Join(l.Dir(k), OutputName(k))
}

// LayeredPath is the full path of the layered output whose primary has key k.
func (l Layout) LayeredPath(k ForcingFileKey) string {
	return filepath.Join(l.Dir(k), LayeredName(k))
}

// StageRoots maps each stage to the root directory its outputs live under.
type StageRoots map[Stage]string

// Path resolves the location of the file with key k at stage s. Raw files
// keep their upstream names under <root>/<YYYYMMDD>/.
func (r StageRoots) Path(s Stage, k ForcingFileKey) (string, error) {
	root, ok := r[s]
	if !ok || root == "" {
		return "", fmt.Errorf("no output root configured for %s stage of %s", s, k.Product)
	}
	switch s {
	case StageRaw:
		return filepath.Join(root, k.DateString(), Format(k)), nil
	case StageLayered:
		return Layout{Root: root}.LayeredPath(k), nil
	default:
		return Layout{Root: root}.Path(k), nil
	}
}
