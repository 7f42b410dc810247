// Command genmock creates an empty raw-input tree with grammar-conformant
// file names for dry runs, and optionally a JSON fixture of the matching
// file-arrival messages for the service.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -product RAP -date 20230101 -runs 0,6 -fh 0-3 \
//	  -out data/mock/raw/RAP \
//	  -arrivals data/mock/rap_arrivals.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/forcing-engine/internal/domain"
	"github.com/couchcryptid/forcing-engine/internal/fsutil"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	product := flag.String("product", "", "data product: MRMS, RAP, HRRR, GFS, NAM or CFS")
	date := flag.String("date", "", "model date as YYYYMMDD")
	runs := flag.String("runs", "0", "comma separated model run hours, or a range like 0-23")
	fh := flag.String("fh", "0", "comma separated forecast hours, or a range like 0-18")
	out := flag.String("out", "", "output directory; files go under <out>/<YYYYMMDD>/")
	arrivals := flag.String("arrivals", "", "optional output path for a JSON file-arrival fixture")
	flag.Parse()

	if *product == "" || *date == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -product, -date, -out")
	}

	keys, err := buildKeys(*product, *date, *runs, *fh)
	if err != nil {
		return err
	}

	var msgs []domain.FileArrival //nolint:prealloc // written only when -arrivals is set
	for _, k := range keys {
		name := domain.Format(k)
		path := filepath.Join(*out, k.DateString(), name)
		tr := fsutil.Transaction{}
		tr.MkDir(filepath.Dir(path))
		tr.Touch(path)
		if tr.Err != nil {
			return fmt.Errorf("create %s: %w", path, tr.Err)
		}
		msgs = append(msgs, domain.FileArrival{Product: k.Product, File: name})
	}
	log.Printf("%s: %d files under %s", *product, len(keys), *out)

	if *arrivals != "" {
		if err := writeJSON(*arrivals, msgs); err != nil {
			return fmt.Errorf("writing arrivals fixture: %w", err)
		}
		log.Printf("wrote arrivals fixture: %s", *arrivals)
	}
	return nil
}

// buildKeys expands the run and forecast hour lists into keys. Keys that do
// not validate for the product, such as forecast hours for MRMS, are an error.
func buildKeys(product, date, runs, fh string) ([]domain.ForcingFileKey, error) {
	p, err := domain.ParseProduct(product)
	if err != nil {
		return nil, err
	}
	day, err := time.Parse("20060102", date)
	if err != nil {
		return nil, fmt.Errorf("invalid -date %q: %w", date, err)
	}
	runHours, err := parseHours(runs)
	if err != nil {
		return nil, fmt.Errorf("invalid -runs: %w", err)
	}
	fhs, err := parseHours(fh)
	if err != nil {
		return nil, fmt.Errorf("invalid -fh: %w", err)
	}

	keys := make([]domain.ForcingFileKey, 0, len(runHours)*len(fhs))
	for _, r := range runHours {
		for _, f := range fhs {
			k, err := domain.NewKey(p, day, r, f)
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// parseHours accepts "3", "0,6,12" or "0-3".
func parseHours(s string) ([]int, error) {
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, err
		}
		b, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, err
		}
		if b < a {
			return nil, fmt.Errorf("empty range %q", s)
		}
		out := make([]int, 0, b-a+1)
		for h := a; h <= b; h++ {
			out = append(out, h)
		}
		return out, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		h, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
