// Command forcing runs the forcing stages for a list of raw input files of
// one product, or a layering pass over the downscaled trees.
//
// Usage:
//
//	go run ./cmd/forcing -config forcing.toml -product HRRR -regrid-downscale \
//	  20230101_i06_f001_HRRR.grb2 20230101_i06_f002_HRRR.grb2
//
//	go run ./cmd/forcing -config forcing.toml -layer
//
// -bias on its own runs only bias correction on the existing downscaled
// outputs of the named files; no regridding or downscaling tool is run.
// -product is not needed for a -layer run: the layering products come from
// the parameter file.
//
// Exit status is 0 when every file succeeded or was skipped, 1 on usage or
// configuration errors and 2 when at least one file failed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/forcing-engine/internal/config"
	"github.com/couchcryptid/forcing-engine/internal/domain"
	"github.com/couchcryptid/forcing-engine/internal/observability"
	"github.com/couchcryptid/forcing-engine/internal/pipeline"
	"github.com/couchcryptid/forcing-engine/internal/tool"
)

const (
	exitOK       = 0
	exitUsage    = 1
	exitFailures = 2
)

type options struct {
	configPath      string
	product         domain.Product
	regridDownscale bool
	bias            bool
	layer           bool
	workers         int
	logFile         string
	logFormat       string
	files           []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("forcing", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", os.Getenv("FORCING_CONFIG"), "TOML parameter file (default $FORCING_CONFIG)")
	fs.TextVar(&opts.product, "product", domain.Product(0), "input data product: MRMS, RAP, HRRR, GFS, NAM or CFS")
	fs.BoolVar(&opts.regridDownscale, "regrid-downscale", false, "regrid and downscale the input files")
	fs.BoolVar(&opts.bias, "bias", false, "bias correct the input files")
	fs.BoolVar(&opts.layer, "layer", false, "layer primary and secondary products")
	fs.IntVar(&opts.workers, "workers", 0, "concurrent files (default exe.max_concurrent)")
	fs.StringVar(&opts.logFile, "log-file", "", "append logs to this file instead of stderr")
	fs.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.files = fs.Args()

	switch {
	case opts.configPath == "":
		return opts, errors.New("-config is required")
	case !opts.regridDownscale && !opts.bias && !opts.layer:
		return opts, errors.New("no action was requested: use -regrid-downscale, -bias or -layer")
	case (opts.regridDownscale || opts.bias) && !opts.product.Valid():
		return opts, errors.New("-product is required")
	case (opts.regridDownscale || opts.bias) && len(opts.files) == 0:
		return opts, errors.New("no input files given")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "forcing:", err)
		}
		return exitUsage
	}

	params, err := config.LoadParams(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, "forcing:", err)
		return exitUsage
	}
	forcing, err := config.LoadForcing(params, os.LookupEnv)
	if err != nil {
		fmt.Fprintln(stderr, "forcing:", err)
		return exitUsage
	}

	logOut := stderr
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(stderr, "forcing: open log file:", err)
			return exitUsage
		}
		defer f.Close()
		logOut = f
	}
	logger := observability.NewLogger(logOut, forcing.LogLevel, opts.logFormat)
	// No /metrics endpoint in batch mode, so collectors stay unregistered.
	metrics := observability.NewMetricsForTesting()

	runner := tool.NewExecRunner(forcing.Env, forcing.ToolTimeout, logger, metrics)
	orch := pipeline.NewOrchestrator(forcing, runner, logger, metrics,
		pipeline.WithWorkers(opts.workers),
		pipeline.WithLayering(opts.layer && opts.regridDownscale),
	)

	arrivals := make([]domain.FileArrival, len(opts.files))
	for i, f := range opts.files {
		arrivals[i] = domain.FileArrival{Product: opts.product, File: f}
	}

	var results []pipeline.Result
	switch {
	case opts.regridDownscale:
		results = orch.ProcessAll(ctx, arrivals)
	case opts.bias:
		results = orch.BiasCorrectAll(ctx, arrivals)
	}

	if opts.layer && !opts.regridDownscale {
		layered, err := orch.LayerAll(ctx)
		results = append(results, layered...)
		if err != nil {
			fmt.Fprintln(stderr, "forcing: layering:", err)
			if pipeline.ErrorKind(err) == pipeline.KindConfig {
				return exitUsage
			}
			report(stderr, results)
			return exitFailures
		}
	}

	if !report(stderr, results) {
		return exitFailures
	}
	return exitOK
}

// report prints one line per non-successful file and a summary. It returns
// false if any file failed.
func report(w io.Writer, results []pipeline.Result) bool {
	for _, r := range results {
		if r.Status == pipeline.StatusDone {
			continue
		}
		line := fmt.Sprintf("%-7s %s", r.Status, r.Input)
		if r.Err != nil {
			line += fmt.Sprintf(" [%s at %s] %v", pipeline.ErrorKind(r.Err), r.Step, r.Err)
		}
		fmt.Fprintln(w, line)
	}
	rep := pipeline.Summarize(results)
	fmt.Fprintf(w, "done=%d skipped=%d failed=%d\n", rep.Done, rep.Skipped, rep.Failed)
	return rep.OK()
}
