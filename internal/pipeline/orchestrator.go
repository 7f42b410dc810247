package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/forcing-engine/internal/config"
	"github.com/couchcryptid/forcing-engine/internal/domain"
	"github.com/couchcryptid/forcing-engine/internal/fsutil"
	"github.com/couchcryptid/forcing-engine/internal/observability"
	"github.com/couchcryptid/forcing-engine/internal/tool"
)

// Orchestrator drives input files through regrid, downscale, bias correction
// and layering. It is safe for concurrent use; the only shared state is the
// set of layered outputs being written.
type Orchestrator struct {
	cfg     *config.Forcing
	runner  tool.Runner
	logger  *slog.Logger
	metrics *observability.Metrics
	exists  func(path string) bool
	layer   bool
	workers int

	// layering holds the output paths of pairs currently being layered.
	layering sync.Map
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLayering enables layering as soon as either side of a pair is
// downscaled and the other side is already on disk. Layering must also be
// configured in the parameter file.
func WithLayering(enabled bool) Option {
	return func(o *Orchestrator) { o.layer = enabled }
}

// WithWorkers overrides the configured concurrency cap when n is positive.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// NewOrchestrator creates an Orchestrator running tools through runner.
func NewOrchestrator(cfg *config.Forcing, runner tool.Runner, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		runner:  runner,
		logger:  logger,
		metrics: metrics,
		exists:  fsutil.IsFile,
		workers: cfg.MaxConcurrent,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers <= 0 {
		o.workers = 1
	}
	return o
}

// step advances a file by at most one stage. Steps that do not apply to the
// file return it unchanged.
type step struct {
	name string
	run  func(ctx context.Context, pc config.ProductConfig, f domain.ForcingFile) (domain.ForcingFile, error)
}

func (o *Orchestrator) steps() []step {
	return []step{
		{"regrid", o.regrid},
		{"downscale", o.downscale},
		{"bias_correct", o.biasCorrect},
		{"layer", o.layerFile},
	}
}

// Process runs one input file through every applicable stage. Failures are
// contained in the returned Result; Process never panics on bad input.
func (o *Orchestrator) Process(ctx context.Context, arrival domain.FileArrival) Result {
	return o.process(ctx, arrival, func(pc config.ProductConfig, key domain.ForcingFileKey) (domain.ForcingFile, []step, error) {
		return domain.ForcingFile{Key: key, Stage: domain.StageRaw, Path: rawPath(pc, key, arrival.File)}, o.steps(), nil
	})
}

// BiasCorrect runs only the bias correction step on the file's existing
// final output: the downscaled file, or the regridded one for products that
// are not downscaled. No tool is invoked. A missing output fails the file
// with a *domain.MissingOutputError.
func (o *Orchestrator) BiasCorrect(ctx context.Context, arrival domain.FileArrival) Result {
	return o.process(ctx, arrival, func(pc config.ProductConfig, key domain.ForcingFileKey) (domain.ForcingFile, []step, error) {
		stage := domain.StageDownscaled
		if !pc.Product.Downscaled() {
			stage = domain.StageRegridded
		}
		path, err := pc.Roots().Path(stage, key)
		if err != nil {
			return domain.ForcingFile{}, nil, err
		}
		if !o.exists(path) {
			return domain.ForcingFile{}, nil, &domain.MissingOutputError{Stage: stage, Key: key, Path: path}
		}
		return domain.ForcingFile{Key: key, Stage: stage, Path: path}, []step{{"bias_correct", o.biasCorrect}}, nil
	})
}

// startFunc locates the file a run starts from and the steps it goes through.
type startFunc func(pc config.ProductConfig, key domain.ForcingFileKey) (domain.ForcingFile, []step, error)

func (o *Orchestrator) process(ctx context.Context, arrival domain.FileArrival, start startFunc) Result {
	res := Result{Product: arrival.Product, Input: arrival.File}
	logger := o.logger.With("product", arrival.Product.String(), "file", arrival.File)

	pc, err := o.cfg.Product(arrival.Product)
	if err != nil {
		return o.finish(logger, res, "configure", err)
	}

	key, err := domain.Parse(arrival.Product, filepath.Base(arrival.File))
	if err != nil {
		return o.finish(logger, res, "parse", err)
	}
	if !domain.IsEligible(key.Product, key.ForecastHour, o.cfg) {
		logger.Info("forecast hour outside processing window, skipping", "forecast_hour", key.ForecastHour)
		res.File = domain.ForcingFile{Key: key, Stage: domain.StageRaw, Path: rawPath(pc, key, arrival.File)}
		res.Status = StatusSkipped
		res.Step = "eligibility"
		o.record(res)
		return res
	}

	file, steps, err := start(pc, key)
	if err != nil {
		res.File = domain.ForcingFile{Key: key, Stage: domain.StageRaw, Path: rawPath(pc, key, arrival.File)}
		return o.finish(logger, res, "locate", err)
	}
	res.File = file
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return o.finish(logger, res, s.name, err)
		}
		next, err := s.run(ctx, pc, res.File)
		if err != nil {
			return o.finish(logger, res, s.name, err)
		}
		if next.Stage != res.File.Stage {
			logger.Info("stage complete", "stage", next.Stage.String(), "path", next.Path)
		}
		res.File = next
	}
	return o.finish(logger, res, "", nil)
}

// rawPath resolves a bare input name under the product's data directory.
// Inputs with a directory component are used as given.
func rawPath(pc config.ProductConfig, key domain.ForcingFileKey, input string) string {
	if filepath.Base(input) != input {
		return input
	}
	return filepath.Join(pc.DataDir, key.DateString(), input)
}

func (o *Orchestrator) regrid(ctx context.Context, pc config.ProductConfig, in domain.ForcingFile) (domain.ForcingFile, error) {
	out, err := pc.Roots().Path(domain.StageRegridded, in.Key)
	if err != nil {
		return in, err
	}
	if err := fsutil.EnsureDir(filepath.Dir(out)); err != nil {
		return in, err
	}

	// Defective zero-hour files are not regridded. A placeholder keeps the
	// regridded tree complete until the substitute is installed.
	if domain.NeedsSubstitute(in.Key) {
		tr := fsutil.Transaction{}
		tr.Touch(out)
		if tr.Err != nil {
			return in, tr.Err
		}
		return in.Advance(domain.StageRegridded, out), nil
	}

	if err := o.runner.Run(ctx, regridInvocation(o.cfg, pc, in.Path, out)); err != nil {
		return in, err
	}
	if !o.exists(out) {
		return in, &domain.MissingOutputError{Stage: domain.StageRegridded, Key: in.Key, Path: out}
	}
	return in.Advance(domain.StageRegridded, out), nil
}

func (o *Orchestrator) downscale(ctx context.Context, pc config.ProductConfig, in domain.ForcingFile) (domain.ForcingFile, error) {
	if !pc.Product.Downscaled() {
		return in, nil
	}
	out, err := pc.Roots().Path(domain.StageDownscaled, in.Key)
	if err != nil {
		return in, err
	}
	if err := fsutil.EnsureDir(filepath.Dir(out)); err != nil {
		return in, err
	}

	if domain.NeedsSubstitute(in.Key) {
		return o.substitute(pc, in, out)
	}

	if err := o.runner.Run(ctx, downscaleInvocation(o.cfg, pc, in.Path, out)); err != nil {
		return in, err
	}
	if o.cfg.Shortwave {
		if err := o.runner.Run(ctx, shortwaveInvocation(o.cfg, pc, out)); err != nil {
			return in, err
		}
	}
	if !o.exists(out) {
		return in, &domain.MissingOutputError{Stage: domain.StageDownscaled, Key: in.Key, Path: out}
	}
	return in.Advance(domain.StageDownscaled, out), nil
}

// substitute installs an earlier run's downscaled output at out in place of
// the downscale tool's output and removes the regridded placeholder.
func (o *Orchestrator) substitute(pc config.ProductConfig, in domain.ForcingFile, out string) (domain.ForcingFile, error) {
	resolver := domain.SubstitutionResolver{
		Lookback: o.cfg.Lookback,
		Limits:   o.cfg,
		Exists:   o.exists,
	}
	sub, err := resolver.FindSubstitute(in.Key, domain.Layout{Root: pc.DownscaleOutputDir})
	if err != nil {
		o.metrics.Substitutions.WithLabelValues(pc.Product.String(), "not_found").Inc()
		return in, err
	}

	tr := fsutil.Transaction{}
	tr.Copy(sub.Path, out)
	tr.RmFile(in.Path)
	if tr.Err != nil {
		return in, tr.Err
	}

	o.metrics.Substitutions.WithLabelValues(pc.Product.String(), "found").Inc()
	o.logger.Info("installed zero-hour substitute",
		"product", pc.Product.String(),
		"target", in.Key.String(),
		"substitute", sub.Path,
	)
	return in.Advance(domain.StageDownscaled, out), nil
}

// biasCorrect is a pass-through until a correction method is chosen.
func (o *Orchestrator) biasCorrect(_ context.Context, _ config.ProductConfig, in domain.ForcingFile) (domain.ForcingFile, error) {
	o.logger.Debug("bias correction not implemented, passing through", "path", in.Path)
	return in, nil
}

// layerFile layers a freshly downscaled file of either layering product
// when its counterpart is already on disk. Whichever side is downscaled last
// triggers the layering; if the counterpart never shows up the pair waits
// for the next LayerAll pass.
func (o *Orchestrator) layerFile(ctx context.Context, _ config.ProductConfig, in domain.ForcingFile) (domain.ForcingFile, error) {
	l := o.cfg.Layering
	if !o.layer || !l.Enabled || in.Stage != domain.StageDownscaled {
		return in, nil
	}

	var pair domain.LayeringPair
	switch in.Key.Product {
	case l.Primary:
		pair = domain.LayeringPair{
			Key:       in.Key,
			Primary:   in.Path,
			Secondary: domain.Layout{Root: l.SecondaryDir}.Path(in.Key.WithProduct(l.Secondary)),
		}
	case l.Secondary:
		key := in.Key.WithProduct(l.Primary)
		primary, err := l.Roots().Path(domain.StageDownscaled, key)
		if err != nil {
			return in, err
		}
		pair = domain.LayeringPair{Key: key, Primary: primary, Secondary: in.Path}
	default:
		return in, nil
	}
	pair.OutputName = domain.LayeredName(pair.Key)

	counterpart := pair.Secondary
	if in.Key.Product == l.Secondary {
		counterpart = pair.Primary
	}
	if !o.exists(counterpart) {
		o.logger.Info("layering counterpart not on disk yet, layering deferred",
			"file", in.Path,
			"counterpart", counterpart,
		)
		return in, nil
	}

	out, err := o.layerPair(ctx, pair)
	if err != nil {
		return in, err
	}
	if out == "" {
		return in, nil
	}
	return in.Advance(domain.StageLayered, out), nil
}

// layerPair runs the layering tool on pair and returns the layered path. It
// returns "" without running anything when the same pair is already being
// layered by another goroutine.
func (o *Orchestrator) layerPair(ctx context.Context, pair domain.LayeringPair) (string, error) {
	out, err := o.cfg.Layering.Roots().Path(domain.StageLayered, pair.Key)
	if err != nil {
		return "", err
	}
	if _, busy := o.layering.LoadOrStore(out, struct{}{}); busy {
		o.logger.Info("pair already being layered", "output", out)
		return "", nil
	}
	defer o.layering.Delete(out)

	if err := fsutil.EnsureDir(filepath.Dir(out)); err != nil {
		return "", err
	}
	for _, indexFlag := range []bool{false, true} {
		if err := o.runner.Run(ctx, layerInvocation(o.cfg, pair, out, indexFlag)); err != nil {
			return "", err
		}
	}
	if !o.exists(out) {
		return "", &domain.MissingOutputError{Stage: domain.StageLayered, Key: pair.Key, Path: out}
	}
	o.metrics.LayeredPairs.Inc()
	return out, nil
}

// finish sets the result status from err, logs it and records metrics.
// A missing substitute is reported but counts as a skip, not a failure.
func (o *Orchestrator) finish(logger *slog.Logger, res Result, stepName string, err error) Result {
	res.Err = err
	var subErr *domain.SubstitutionNotFoundError
	switch {
	case err == nil:
		res.Status = StatusDone
		logger.Info("file processed", "stage", res.File.Stage.String(), "path", res.File.Path)
	case errors.As(err, &subErr):
		res.Status = StatusSkipped
		res.Step = stepName
		logger.Warn("no zero-hour substitute found, skipping",
			"stage", res.File.Stage.String(),
			"tried", subErr.Tried,
		)
	default:
		res.Status = StatusFailed
		res.Step = stepName
		logger.Error("file failed",
			"stage", res.File.Stage.String(),
			"step", stepName,
			"error_kind", ErrorKind(err),
			"error", err,
		)
	}
	o.record(res)
	return res
}

func (o *Orchestrator) record(res Result) {
	o.metrics.FilesProcessed.WithLabelValues(res.Product.String(), string(res.Status)).Inc()
	if res.Err != nil {
		o.metrics.FileErrors.WithLabelValues(res.Product.String(), ErrorKind(res.Err)).Inc()
	}
}
