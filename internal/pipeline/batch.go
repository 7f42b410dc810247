package pipeline

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/couchcryptid/forcing-engine/internal/config"
	"github.com/couchcryptid/forcing-engine/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ProcessAll processes arrivals on a pool of at most Workers goroutines.
// Results are returned in input order. One file's failure never stops the
// others.
func (o *Orchestrator) ProcessAll(ctx context.Context, arrivals []domain.FileArrival) []Result {
	return o.each(ctx, arrivals, o.Process)
}

// BiasCorrectAll runs BiasCorrect on every arrival, like ProcessAll.
func (o *Orchestrator) BiasCorrectAll(ctx context.Context, arrivals []domain.FileArrival) []Result {
	return o.each(ctx, arrivals, o.BiasCorrect)
}

func (o *Orchestrator) each(ctx context.Context, arrivals []domain.FileArrival, fn func(context.Context, domain.FileArrival) Result) []Result {
	results := make([]Result, len(arrivals))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, a := range arrivals {
		g.Go(func() error {
			results[i] = fn(ctx, a)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// LayerAll pairs every primary-product file under the layering primary
// directory with its secondary and layers the pairs on the worker pool.
// Results are sorted by primary path. A primary file whose name does not
// parse stops the walk: pairs already started still complete and the
// *domain.NamingError is returned alongside their results.
func (o *Orchestrator) LayerAll(ctx context.Context) ([]Result, error) {
	l := o.cfg.Layering
	if !l.Enabled {
		return nil, &config.ConfigError{Namespace: "layering", Key: "output_dir", Reason: "layering not configured"}
	}
	pairer := domain.Pairer{
		Primary:   l.Primary,
		Secondary: l.Secondary,
		Exists:    o.exists,
		Logger:    o.logger,
	}

	var (
		mu      sync.Mutex
		results []Result
		walkErr error
		g       errgroup.Group
	)
	g.SetLimit(o.workers)
	for pair, err := range pairer.Pair(l.PrimaryDir, l.SecondaryDir) {
		if err != nil {
			walkErr = err
			break
		}
		if err := ctx.Err(); err != nil {
			walkErr = err
			break
		}
		g.Go(func() error {
			r := o.layerOne(ctx, pair)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(results, func(a, b Result) int { return strings.Compare(a.Input, b.Input) })
	if walkErr != nil {
		o.logger.Error("layering walk stopped", "dir", l.PrimaryDir, "error_kind", ErrorKind(walkErr), "error", walkErr)
	}
	return results, walkErr
}

func (o *Orchestrator) layerOne(ctx context.Context, pair domain.LayeringPair) Result {
	res := Result{
		Product: pair.Key.Product,
		Input:   pair.Primary,
		File:    domain.ForcingFile{Key: pair.Key, Stage: domain.StageDownscaled, Path: pair.Primary},
	}
	logger := o.logger.With("product", pair.Key.Product.String(), "file", pair.Primary)
	out, err := o.layerPair(ctx, pair)
	if err != nil {
		return o.finish(logger, res, "layer", err)
	}
	if out != "" {
		res.File = res.File.Advance(domain.StageLayered, out)
	}
	return o.finish(logger, res, "", nil)
}
