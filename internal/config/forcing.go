package config

import (
	"errors"
	"time"

	"github.com/couchcryptid/forcing-engine/internal/domain"
	"github.com/couchcryptid/forcing-engine/internal/tool"
)

// Parameter namespaces.
const (
	nsExe          = "exe"
	nsRegridding   = "regridding"
	nsDownscaling  = "downscaling"
	nsLayering     = "layering"
	nsFcsthrMax    = "fcsthr_max"
	nsDataDir      = "data_dir"
	nsEnv          = "default_env_vars"
	nsLogLevel     = "log_level"
	nsSubstitution = "substitution"
)

const (
	defaultToolTimeout   = time.Hour
	defaultMaxConcurrent = 4
)

// ProductConfig is the static configuration of one product: where its files
// live at each stage, which tool scripts process it and its forecast limit.
type ProductConfig struct {
	Product domain.Product
	// MaxForecastHour is the exclusive upper bound on processed forecast
	// hours. Zero for analyses.
	MaxForecastHour int

	DataDir            string
	RegridScript       string
	WeightFile         string
	DstGridName        string
	RegridOutputDir    string
	DownscaleScript    string
	HgtData            string
	GeoData            string
	DownscaleOutputDir string
}

// Roots maps stages to the directories holding this product's files.
func (pc ProductConfig) Roots() domain.StageRoots {
	roots := domain.StageRoots{
		domain.StageRaw:       pc.DataDir,
		domain.StageRegridded: pc.RegridOutputDir,
	}
	if pc.DownscaleOutputDir != "" {
		roots[domain.StageDownscaled] = pc.DownscaleOutputDir
	}
	return roots
}

// LayeringConfig describes the analysis-assimilation layering of a primary
// product's downscaled outputs with a secondary product's.
type LayeringConfig struct {
	Enabled      bool
	Script       string
	Primary      domain.Product
	Secondary    domain.Product
	PrimaryDir   string
	SecondaryDir string
	OutputDir    string
}

// Roots maps stages to the directories holding the primary product's
// layering inputs and the layered outputs. Layered files are keyed by the
// primary file's key.
func (l LayeringConfig) Roots() domain.StageRoots {
	return domain.StageRoots{
		domain.StageDownscaled: l.PrimaryDir,
		domain.StageLayered:    l.OutputDir,
	}
}

// Forcing is the typed, read-only configuration of the forcing engine.
type Forcing struct {
	NCLExe        string
	LapseRateFile string
	Shortwave     bool
	ShortwaveExe  string
	ToolTimeout   time.Duration
	MaxConcurrent int
	Lookback      int
	LogLevel      string
	// Env is passed to every tool invocation.
	Env      tool.Env
	Products map[domain.Product]ProductConfig
	Layering LayeringConfig
}

// MaxForecastHour implements domain.ForecastLimits.
func (f *Forcing) MaxForecastHour(p domain.Product) (int, bool) {
	pc, ok := f.Products[p]
	if !ok || !p.IsForecast() {
		return 0, false
	}
	return pc.MaxForecastHour, true
}

// Product returns the configuration of p or a ConfigError when p has none.
func (f *Forcing) Product(p domain.Product) (ProductConfig, error) {
	pc, ok := f.Products[p]
	if !ok {
		return ProductConfig{}, &ConfigError{Namespace: nsRegridding, Key: p.String() + "_output_dir", Reason: "product not configured"}
	}
	return pc, nil
}

// LookupEnv reports the value of an environment variable, like os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// LoadForcing builds the typed configuration from the parameter store.
// lookupEnv supplies the process environment used to decide whether
// NCARG_ROOT is already set.
func LoadForcing(p *Params, lookupEnv LookupEnv) (*Forcing, error) {
	var (
		f   = &Forcing{Products: map[domain.Product]ProductConfig{}}
		err error
	)

	if f.ToolTimeout, err = p.DurationOr(nsExe, "tool_timeout", defaultToolTimeout); err != nil {
		return nil, err
	}
	if f.MaxConcurrent, err = p.IntOr(nsExe, "max_concurrent", defaultMaxConcurrent); err != nil {
		return nil, err
	}
	if f.MaxConcurrent <= 0 {
		return nil, &ConfigError{Namespace: nsExe, Key: "max_concurrent", Reason: "must be positive"}
	}
	if f.Lookback, err = p.IntOr(nsSubstitution, "lookback_runs", domain.DefaultLookback); err != nil {
		return nil, err
	}
	if f.Lookback <= 0 {
		return nil, &ConfigError{Namespace: nsSubstitution, Key: "lookback_runs", Reason: "must be positive"}
	}
	if f.LogLevel, err = p.StringOr(nsLogLevel, "forcing_engine_log_level", "INFO"); err != nil {
		return nil, err
	}
	if f.Env, err = loadEnv(p, lookupEnv); err != nil {
		return nil, err
	}

	for _, prod := range domain.Products() {
		if !p.Has(nsRegridding, prod.String()+"_output_dir") {
			continue
		}
		pc, err := loadProduct(p, prod)
		if err != nil {
			return nil, err
		}
		f.Products[prod] = pc
	}
	if len(f.Products) == 0 {
		return nil, &ConfigError{Namespace: nsRegridding, Key: "<PRODUCT>_output_dir", Reason: "no product configured"}
	}

	if f.NCLExe, err = p.String(nsExe, "ncl_exe"); err != nil {
		return nil, err
	}
	if f.anyDownscaled() {
		if f.LapseRateFile, err = p.String(nsDownscaling, "lapse_rate_file"); err != nil {
			return nil, err
		}
	}
	if f.Shortwave, err = p.BoolOr(nsDownscaling, "shortwave", false); err != nil {
		return nil, err
	}
	if f.Shortwave {
		if f.ShortwaveExe, err = p.String(nsExe, "shortwave_downscaling_exe"); err != nil {
			return nil, err
		}
	}

	if p.Has(nsLayering, "output_dir") {
		if f.Layering, err = loadLayering(p); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Forcing) anyDownscaled() bool {
	for prod := range f.Products {
		if prod.Downscaled() {
			return true
		}
	}
	return false
}

// field binds a required string parameter to its destination.
type field struct {
	ns, key string
	dst     *string
}

func loadProduct(p *Params, prod domain.Product) (ProductConfig, error) {
	name := prod.String()
	pc := ProductConfig{Product: prod}

	required := []field{
		{nsRegridding, name + "_output_dir", &pc.RegridOutputDir},
		{nsRegridding, name + "_wgt_bilinear", &pc.WeightFile},
		{nsRegridding, name + "_dst_grid_name", &pc.DstGridName},
		{nsExe, name + "_regridding_exe", &pc.RegridScript},
		{nsDataDir, name + "_data", &pc.DataDir},
	}
	if prod.Downscaled() {
		required = append(required, []field{
			{nsExe, name + "_downscaling_exe", &pc.DownscaleScript},
			{nsDownscaling, name + "_hgt_data", &pc.HgtData},
			{nsDownscaling, name + "_geo_data", &pc.GeoData},
			{nsDownscaling, name + "_downscale_output_dir", &pc.DownscaleOutputDir},
		}...)
	}
	for _, r := range required {
		v, err := p.String(r.ns, r.key)
		if err != nil {
			return ProductConfig{}, err
		}
		*r.dst = v
	}

	if prod.IsForecast() {
		limit, err := p.Int(nsFcsthrMax, name+"_fcsthr_max")
		if err != nil {
			return ProductConfig{}, err
		}
		if limit <= 0 {
			return ProductConfig{}, &ConfigError{Namespace: nsFcsthrMax, Key: name + "_fcsthr_max", Reason: "must be positive"}
		}
		pc.MaxForecastHour = limit
	}
	return pc, nil
}

func loadLayering(p *Params) (LayeringConfig, error) {
	l := LayeringConfig{Enabled: true}
	var err error
	if l.Script, err = p.String(nsExe, "Analysis_Assimilation_layering"); err != nil {
		return LayeringConfig{}, err
	}
	if l.PrimaryDir, err = p.String(nsLayering, "analysis_assimilation_primary"); err != nil {
		return LayeringConfig{}, err
	}
	if l.SecondaryDir, err = p.String(nsLayering, "analysis_assimilation_secondary"); err != nil {
		return LayeringConfig{}, err
	}
	if l.OutputDir, err = p.String(nsLayering, "output_dir"); err != nil {
		return LayeringConfig{}, err
	}
	if l.Primary, err = productParam(p, "primary_product", domain.HRRR); err != nil {
		return LayeringConfig{}, err
	}
	if l.Secondary, err = productParam(p, "secondary_product", domain.RAP); err != nil {
		return LayeringConfig{}, err
	}
	if l.Primary == l.Secondary {
		return LayeringConfig{}, &ConfigError{Namespace: nsLayering, Key: "secondary_product", Reason: "must differ from primary_product"}
	}
	return l, nil
}

func productParam(p *Params, key string, def domain.Product) (domain.Product, error) {
	s, err := p.StringOr(nsLayering, key, def.String())
	if err != nil {
		return 0, err
	}
	prod, err := domain.ParseProduct(s)
	if err != nil {
		return 0, &ConfigError{Namespace: nsLayering, Key: key, Reason: err.Error()}
	}
	return prod, nil
}

// loadEnv resolves the variables the NCL runtime needs. NCARG_ROOT keeps a
// value already present in the process environment; NCL_DEF_LIB_DIR always
// comes from the parameter file.
func loadEnv(p *Params, lookupEnv LookupEnv) (tool.Env, error) {
	if lookupEnv == nil {
		return nil, errors.New("config: nil environment lookup")
	}
	env := tool.Env{}
	if v, ok := lookupEnv("NCARG_ROOT"); ok && v != "" {
		env["NCARG_ROOT"] = v
	} else {
		root, err := p.String(nsEnv, "ncarg_root")
		if err != nil {
			return nil, err
		}
		env["NCARG_ROOT"] = root
	}
	lib, err := p.String(nsEnv, "ncl_def_lib_dir")
	if err != nil {
		return nil, err
	}
	env["NCL_DEF_LIB_DIR"] = lib
	return env, nil
}
