// Command validate audits a stage tree against the canonical layout: every
// file must carry a canonical output name for the product (or the layered
// label), live in its <YYYYMMDD>/i<HH> subdirectory, respect the forecast
// limit and leave no gaps in a run's forecast hours.
//
// Usage:
//
//	go run ./cmd/validate -root /data/downscaled/HRRR -product HRRR -max-fh 18
//	go run ./cmd/validate -root /data/layered -product HRRR -layered
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/couchcryptid/forcing-engine/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// entry is a file that parsed as a canonical output name.
type entry struct {
	rel string
	key domain.ForcingFileKey
}

func main() {
	root := flag.String("root", "", "stage output root to audit")
	product := flag.String("product", "", "product the tree belongs to")
	layered := flag.Bool("layered", false, "expect Analysis-Assimilation layered names")
	maxFH := flag.Int("max-fh", 0, "exclusive forecast hour limit (0 disables the check)")
	flag.Parse()

	if *root == "" || *product == "" {
		flag.Usage()
		os.Exit(1)
	}
	p, err := domain.ParseProduct(*product)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, *root, p, *layered, *maxFH))
}

func run(w io.Writer, root string, p domain.Product, layered bool, maxFH int) int {
	fmt.Fprintf(w, "=== Forcing Tree Validation: %s ===\n\n", root)

	names := &phase{name: "Canonical names"}
	placement := &phase{name: "Subdirectory placement"}
	limits := &phase{name: "Forecast hour limit"}
	gaps := &phase{name: "Forecast hour continuity"}

	entries, err := scan(root, p, layered, names)
	if err != nil {
		fmt.Fprintf(w, "FATAL: scan %s: %v\n", root, err)
		return 1
	}
	checkPlacement(entries, placement)
	if maxFH > 0 {
		checkLimit(entries, maxFH, limits)
	}
	checkGaps(entries, p, gaps)

	phases := []*phase{names, placement, limits, gaps}
	allPassed := true
	for _, ph := range phases {
		status := "PASS"
		if !ph.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(ph.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-30s %s\n", ph.name, status)
	}
	fmt.Fprintf(w, "\nFiles: %d canonical\n", len(entries))

	for _, ph := range phases {
		if ph.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", ph.name)
		for i, e := range ph.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// scan walks root and parses every regular file name. Files that do not
// parse, or that belong to another product, are reported to names.
func scan(root string, p domain.Product, layered bool, names *phase) ([]entry, error) {
	wantLabel := p.String()
	if layered {
		wantLabel = domain.LayeredLabel
	}
	var entries []entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key, label, err := domain.ParseOutputName(d.Name())
		if err != nil {
			names.errorf("%s: %v", rel, err)
			return nil
		}
		if label != wantLabel {
			names.errorf("%s: label %q, want %q", rel, label, wantLabel)
			return nil
		}
		key.Product = p
		if err := key.Validate(); err != nil {
			names.errorf("%s: %v", rel, err)
			return nil
		}
		entries = append(entries, entry{rel: rel, key: key})
		return nil
	})
	return entries, err
}

func checkPlacement(entries []entry, ph *phase) {
	for _, e := range entries {
		if want := domain.Subdir(e.key); filepath.Dir(e.rel) != filepath.FromSlash(want) {
			ph.errorf("%s: expected under %s", e.rel, want)
		}
	}
}

func checkLimit(entries []entry, maxFH int, ph *phase) {
	for _, e := range entries {
		if e.key.ForecastHour >= maxFH {
			ph.errorf("%s: forecast hour %d not below limit %d", e.rel, e.key.ForecastHour, maxFH)
		}
	}
}

// checkGaps reports forecast hours missing between the lowest and highest
// present hour of each model run. Non-forecast products have nothing to check.
func checkGaps(entries []entry, p domain.Product, ph *phase) {
	if !p.IsForecast() {
		return
	}
	byRun := map[string][]int{}
	for _, e := range entries {
		run := domain.Subdir(e.key)
		byRun[run] = append(byRun[run], e.key.ForecastHour)
	}
	runs := make([]string, 0, len(byRun))
	for run := range byRun {
		runs = append(runs, run)
	}
	slices.Sort(runs)
	for _, run := range runs {
		hours := byRun[run]
		slices.Sort(hours)
		hours = slices.Compact(hours)
		for i := 1; i < len(hours); i++ {
			for missing := hours[i-1] + 1; missing < hours[i]; missing++ {
				ph.errorf("%s: missing forecast hour %d", run, missing)
			}
		}
	}
}
